package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// X402Version is the only supported protocol version.
const X402Version = 2

// HTTP header names carrying the x402 protocol payloads. All values are
// base64-encoded JSON so the protocol can be layered over arbitrary
// resource types.
const (
	HeaderPaymentSignature = "payment-signature"
	HeaderPaymentRequired  = "payment-required"
	HeaderPaymentResponse  = "payment-response"
)

// CAIP-2 identifiers for the two supported Stacks networks.
const (
	NetworkMainnet = "stacks:1"
	NetworkTestnet = "stacks:2147483648"
)

// SchemeExact is the only supported payment scheme: the transfer amount
// must equal the required amount exactly.
const SchemeExact = "exact"

// DefaultMaxTimeoutSeconds is the ledger-side settlement timeout issued
// with every challenge.
const DefaultMaxTimeoutSeconds = 300

// Stable error reason tags surfaced by the facilitator and the paywall.
const (
	ReasonInvalidPayload        = "invalid_payload"
	ReasonInvalidRequirements   = "invalid_payment_requirements"
	ReasonInvalidTransaction    = "invalid_transaction_state"
	ReasonInvalidVersion        = "invalid_x402_version"
	ReasonBroadcastFailed       = "broadcast_failed"
	ReasonReplayDetected        = "replay_detected"
	ReasonUnexpectedSettleError = "unexpected_settle_error"
	ReasonUnexpectedVerifyError = "unexpected_verify_error"
	ReasonDeserializationFailed = "transaction_deserialization_failed"
)

// PaymentRequirement is one accepted way to pay for a resource. Immutable
// once issued in a challenge.
type PaymentRequirement struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	Amount            string `json:"amount"` // atomic units (microSTX)
	Asset             string `json:"asset"`
	PayTo             string `json:"payTo"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds"`
}

// ResourceInfo describes the protected resource in a challenge.
type ResourceInfo struct {
	URL         string `json:"url"`
	Method      string `json:"method"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// PaymentRequiredChallenge is the 402 response body. Created fresh per
// request, never persisted.
type PaymentRequiredChallenge struct {
	X402Version int                  `json:"x402Version"`
	Resource    ResourceInfo         `json:"resource"`
	Accepts     []PaymentRequirement `json:"accepts"`
}

// PaymentPayload is the client's proof of intent to pay, carried in the
// payment-signature header and discarded after settlement.
type PaymentPayload struct {
	X402Version int                `json:"x402Version"`
	Resource    ResourceInfo       `json:"resource"`
	Accepted    PaymentRequirement `json:"accepted"`
	Payload     TransactionPayload `json:"payload"`
}

// TransactionPayload wraps the signed-but-unbroadcast transaction hex.
type TransactionPayload struct {
	Transaction string `json:"transaction"`
}

// SettlementResult describes the outcome of one settlement attempt.
type SettlementResult struct {
	Success     bool   `json:"success"`
	Payer       string `json:"payer,omitempty"`
	Transaction string `json:"transaction,omitempty"`
	Network     string `json:"network,omitempty"`
	ErrorReason string `json:"errorReason,omitempty"`
}

// VerificationResult is the outcome of a non-broadcasting pre-flight check.
type VerificationResult struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SupportedKind advertises one (version, scheme, network) triple the
// facilitator can settle.
type SupportedKind struct {
	X402Version int    `json:"x402Version"`
	Scheme      string `json:"scheme"`
	Network     string `json:"network"`
}

// EncodeBase64 serializes the challenge for the payment-required header.
func (c *PaymentRequiredChallenge) EncodeBase64() (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode challenge: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeChallenge parses a base64 payment-required header value.
func DecodeChallenge(encoded string) (*PaymentRequiredChallenge, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode challenge: %w", err)
	}
	var c PaymentRequiredChallenge
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("failed to parse challenge: %w", err)
	}
	return &c, nil
}

// EncodeBase64 serializes the payload for the payment-signature header.
func (p *PaymentPayload) EncodeBase64() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode payment payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodePaymentPayload parses a base64 payment-signature header value.
// Fails closed: any decode or parse error is an invalid payload.
func DecodePaymentPayload(encoded string) (*PaymentPayload, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode payment payload: %w", err)
	}
	var p PaymentPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to parse payment payload: %w", err)
	}
	return &p, nil
}

// EncodeBase64 serializes the settlement receipt for the payment-response
// header. Only the receipt subset is carried: success, payer, transaction,
// network.
func (r *SettlementResult) EncodeBase64() (string, error) {
	receipt := SettlementResult{
		Success:     r.Success,
		Payer:       r.Payer,
		Transaction: r.Transaction,
		Network:     r.Network,
	}
	raw, err := json.Marshal(&receipt)
	if err != nil {
		return "", fmt.Errorf("failed to encode settlement receipt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
