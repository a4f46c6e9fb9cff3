package facilitator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/patrickmn/go-cache"
	"github.com/recurro/recurro/internal/models"
	"github.com/recurro/recurro/pkg/logger"
	"github.com/recurro/recurro/pkg/validation"
)

const (
	// settledCacheTTL is how long a settled transaction hash is remembered
	// for replay rejection. Long enough to cover any plausible retry of
	// the same signed transaction.
	settledCacheTTL = 30 * time.Minute

	// payerLookupInterval and payerLookupRetries bound the best-effort
	// payer resolution while the node indexes the mempool.
	payerLookupInterval = 500 * time.Millisecond
	payerLookupRetries  = 4
)

// Facilitator decides whether a client's payment proof results in a real,
// broadcast transaction, and describes what happened.
type Facilitator struct {
	logger  *logger.Logger
	ledger  models.LedgerService
	network string

	// settled caches sha256 hashes of already-broadcast transactions so a
	// replayed payload is rejected before it reaches the ledger.
	settled *cache.Cache
}

// NewFacilitator creates a new Facilitator instance.
func NewFacilitator(ledger models.LedgerService, network string, log *logger.Logger) *Facilitator {
	return &Facilitator{
		logger:  log,
		ledger:  ledger,
		network: network,
		settled: cache.New(settledCacheTTL, settledCacheTTL/3),
	}
}

// SupportedKinds advertises the facilitator's static capabilities. Callers
// also use it as a liveness probe.
func (f *Facilitator) SupportedKinds() []models.SupportedKind {
	return []models.SupportedKind{
		{X402Version: models.X402Version, Scheme: models.SchemeExact, Network: models.NetworkMainnet},
		{X402Version: models.X402Version, Scheme: models.SchemeExact, Network: models.NetworkTestnet},
	}
}

// Settle broadcasts the payload's signed transaction and reports the
// outcome. A rejected broadcast is an expected outcome, not a fault: it
// comes back as a structured negative result, never as a panic or an
// error escaping this boundary.
func (f *Facilitator) Settle(ctx context.Context, payload *models.PaymentPayload, req *models.PaymentRequirement) *models.SettlementResult {
	network := f.network
	if req != nil && req.Network != "" {
		network = req.Network
	}

	txHex := ""
	if payload != nil {
		txHex = payload.Payload.Transaction
	}
	if err := validation.ValidateTransactionHex(txHex); err != nil {
		f.logger.Debug("Settle rejected payload ", "error ", err)
		return &models.SettlementResult{
			Success:     false,
			Network:     network,
			ErrorReason: models.ReasonInvalidPayload,
		}
	}

	key := txHash(txHex)
	if _, seen := f.settled.Get(key); seen {
		f.logger.Warn("Replayed payment payload rejected ", "hash ", key)
		return &models.SettlementResult{
			Success:     false,
			Network:     network,
			ErrorReason: models.ReasonReplayDetected,
		}
	}

	txID, err := f.ledger.Broadcast(ctx, txHex)
	if err != nil {
		f.logger.Info("Broadcast failed ", "error ", err)
		return &models.SettlementResult{
			Success:     false,
			Network:     network,
			ErrorReason: fmt.Sprintf("%s: %s", models.ReasonBroadcastFailed, err),
		}
	}

	f.settled.SetDefault(key, txID)

	// Best-effort payer resolution; the node needs indexing time after
	// broadcast, and an unknown payer does not invalidate settlement.
	payer := f.resolvePayer(ctx, txID)

	return &models.SettlementResult{
		Success:     true,
		Payer:       payer,
		Transaction: txID,
		Network:     network,
	}
}

// Verify is a non-broadcasting pre-flight check. It does not guarantee the
// transaction will ever confirm.
func (f *Facilitator) Verify(ctx context.Context, payload *models.PaymentPayload, req *models.PaymentRequirement) *models.VerificationResult {
	if payload == nil || payload.Payload.Transaction == "" {
		return &models.VerificationResult{IsValid: false, InvalidReason: models.ReasonInvalidPayload}
	}

	if err := validation.ValidateTransactionHex(payload.Payload.Transaction); err != nil {
		return &models.VerificationResult{IsValid: false, InvalidReason: models.ReasonInvalidTransaction}
	}

	if req == nil || req.PayTo == "" || req.Amount == "" {
		return &models.VerificationResult{IsValid: false, InvalidReason: models.ReasonInvalidRequirements}
	}

	// The transaction is wallet-signed; a full facilitator would
	// deserialize it here to confirm it is structurally a transfer and
	// recover the signer.
	return &models.VerificationResult{IsValid: true}
}

func (f *Facilitator) resolvePayer(ctx context.Context, txID string) string {
	payer := ""
	lookup := func() error {
		status, err := f.ledger.GetTransactionStatus(ctx, txID)
		if err != nil {
			return err
		}
		if status.SenderAddress == "" {
			return errors.New("sender not indexed yet")
		}
		payer = status.SenderAddress
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(payerLookupInterval), payerLookupRetries),
		ctx,
	)
	if err := backoff.Retry(lookup, b); err != nil {
		f.logger.Debug("Payer resolution gave up ", "tx ", txID, " error ", err)
		return ""
	}
	return payer
}

func txHash(txHex string) string {
	sum := sha256.Sum256([]byte(validation.NormalizeHex(txHex)))
	return hex.EncodeToString(sum[:])
}
