package facilitator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/recurro/recurro/internal/models"
	"github.com/recurro/recurro/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validTxHex = strings.Repeat("ab", 60)

type stubLedger struct {
	broadcasts  int
	broadcastFn func(txHex string) (string, error)
	statusFn    func(txID string) (*models.TxStatus, error)
}

func (s *stubLedger) Broadcast(ctx context.Context, signedTxHex string) (string, error) {
	s.broadcasts++
	return s.broadcastFn(signedTxHex)
}

func (s *stubLedger) GetTransactionStatus(ctx context.Context, txID string) (*models.TxStatus, error) {
	return s.statusFn(txID)
}

func (s *stubLedger) GetNodeInfo(ctx context.Context) (*models.NodeInfo, error) {
	return nil, errors.New("not implemented")
}

func payloadWithTx(tx string) *models.PaymentPayload {
	return &models.PaymentPayload{
		X402Version: models.X402Version,
		Payload:     models.TransactionPayload{Transaction: tx},
	}
}

func TestSettleRejectsInvalidPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload *models.PaymentPayload
	}{
		{name: "nil payload", payload: nil},
		{name: "empty transaction", payload: payloadWithTx("")},
		{name: "non-hex transaction", payload: payloadWithTx(strings.Repeat("zz", 60))},
		{name: "too short", payload: payloadWithTx("abcdef")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &stubLedger{}
			f := NewFacilitator(ledger, models.NetworkTestnet, logger.NewNop())

			result := f.Settle(context.Background(), tt.payload, nil)
			assert.False(t, result.Success)
			assert.Equal(t, models.ReasonInvalidPayload, result.ErrorReason)
			assert.Zero(t, ledger.broadcasts, "invalid payloads must never reach the ledger")
		})
	}
}

func TestSettleBroadcastFailure(t *testing.T) {
	ledger := &stubLedger{
		broadcastFn: func(string) (string, error) {
			return "", errors.New("ConflictingNonceInMempool")
		},
	}
	f := NewFacilitator(ledger, models.NetworkTestnet, logger.NewNop())

	result := f.Settle(context.Background(), payloadWithTx(validTxHex), nil)
	assert.False(t, result.Success)
	assert.True(t, strings.HasPrefix(result.ErrorReason, models.ReasonBroadcastFailed+": "))
	assert.Contains(t, result.ErrorReason, "ConflictingNonceInMempool")
	assert.Equal(t, 1, ledger.broadcasts)
}

func TestSettleSuccess(t *testing.T) {
	ledger := &stubLedger{
		broadcastFn: func(string) (string, error) { return "0xdeadbeef", nil },
		statusFn: func(string) (*models.TxStatus, error) {
			return &models.TxStatus{TxStatus: "pending", SenderAddress: "ST2CY5V39NHDPWSXMW9QDT3HC3GD6Q6XX4CFRK9AG"}, nil
		},
	}
	f := NewFacilitator(ledger, models.NetworkTestnet, logger.NewNop())

	result := f.Settle(context.Background(), payloadWithTx(validTxHex), nil)
	require.True(t, result.Success)
	assert.Equal(t, "0xdeadbeef", result.Transaction)
	assert.Equal(t, "ST2CY5V39NHDPWSXMW9QDT3HC3GD6Q6XX4CFRK9AG", result.Payer)
	assert.Equal(t, models.NetworkTestnet, result.Network)
	assert.Empty(t, result.ErrorReason)
}

func TestSettleSuccessWithUnresolvedPayer(t *testing.T) {
	ledger := &stubLedger{
		broadcastFn: func(string) (string, error) { return "0xdeadbeef", nil },
		statusFn: func(string) (*models.TxStatus, error) {
			return nil, errors.New("transaction not found")
		},
	}
	f := NewFacilitator(ledger, models.NetworkTestnet, logger.NewNop())

	// Payer resolution failing does not invalidate the settlement.
	result := f.Settle(context.Background(), payloadWithTx(validTxHex), nil)
	require.True(t, result.Success)
	assert.Equal(t, "0xdeadbeef", result.Transaction)
	assert.Empty(t, result.Payer)
}

func TestSettleRejectsReplay(t *testing.T) {
	ledger := &stubLedger{
		broadcastFn: func(string) (string, error) { return "0xdeadbeef", nil },
		statusFn: func(string) (*models.TxStatus, error) {
			return &models.TxStatus{SenderAddress: "ST2CY5V39NHDPWSXMW9QDT3HC3GD6Q6XX4CFRK9AG"}, nil
		},
	}
	f := NewFacilitator(ledger, models.NetworkTestnet, logger.NewNop())

	first := f.Settle(context.Background(), payloadWithTx(validTxHex), nil)
	require.True(t, first.Success)

	second := f.Settle(context.Background(), payloadWithTx(validTxHex), nil)
	assert.False(t, second.Success)
	assert.Equal(t, models.ReasonReplayDetected, second.ErrorReason)
	assert.Equal(t, 1, ledger.broadcasts, "a replayed transaction must not be rebroadcast")

	// A 0x-prefixed rendition of the same bytes is still a replay.
	third := f.Settle(context.Background(), payloadWithTx("0x"+validTxHex), nil)
	assert.Equal(t, models.ReasonReplayDetected, third.ErrorReason)
}

func TestSettleUsesRequirementNetwork(t *testing.T) {
	ledger := &stubLedger{}
	f := NewFacilitator(ledger, models.NetworkTestnet, logger.NewNop())

	req := &models.PaymentRequirement{Network: models.NetworkMainnet}
	result := f.Settle(context.Background(), nil, req)
	assert.Equal(t, models.NetworkMainnet, result.Network)
}

func TestVerify(t *testing.T) {
	validReq := &models.PaymentRequirement{
		Scheme:  models.SchemeExact,
		Network: models.NetworkTestnet,
		Amount:  "1000000",
		Asset:   models.CurrencySTX,
		PayTo:   "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7",
	}

	tests := []struct {
		name       string
		payload    *models.PaymentPayload
		req        *models.PaymentRequirement
		wantValid  bool
		wantReason string
	}{
		{name: "nil payload", payload: nil, req: validReq, wantReason: models.ReasonInvalidPayload},
		{name: "empty transaction", payload: payloadWithTx(""), req: validReq, wantReason: models.ReasonInvalidPayload},
		{name: "malformed transaction", payload: payloadWithTx("nothex"), req: validReq, wantReason: models.ReasonInvalidTransaction},
		{name: "nil requirements", payload: payloadWithTx(validTxHex), req: nil, wantReason: models.ReasonInvalidRequirements},
		{name: "missing payTo", payload: payloadWithTx(validTxHex), req: &models.PaymentRequirement{Amount: "1000"}, wantReason: models.ReasonInvalidRequirements},
		{name: "valid", payload: payloadWithTx(validTxHex), req: validReq, wantValid: true},
	}

	f := NewFacilitator(&stubLedger{}, models.NetworkTestnet, logger.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Verify(context.Background(), tt.payload, tt.req)
			assert.Equal(t, tt.wantValid, result.IsValid)
			assert.Equal(t, tt.wantReason, result.InvalidReason)
		})
	}
}

func TestSupportedKinds(t *testing.T) {
	f := NewFacilitator(&stubLedger{}, models.NetworkTestnet, logger.NewNop())
	kinds := f.SupportedKinds()
	require.Len(t, kinds, 2)
	for _, kind := range kinds {
		assert.Equal(t, models.X402Version, kind.X402Version)
		assert.Equal(t, models.SchemeExact, kind.Scheme)
	}
}
