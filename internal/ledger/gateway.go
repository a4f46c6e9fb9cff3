package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/recurro/recurro/internal/models"
	"github.com/recurro/recurro/pkg/logger"
	"github.com/recurro/recurro/pkg/validation"
)

const (
	// requestTimeout bounds a single call to the ledger node.
	requestTimeout = 10 * time.Second
	// readRetryMax applies to idempotent status/info lookups only.
	readRetryMax = 3
)

// ErrTxNotFound is returned when the ledger node has no record of the
// transaction. Shortly after broadcast this usually means the node has
// not indexed it yet.
var ErrTxNotFound = errors.New("transaction not found")

// BroadcastError carries the ledger node's rejection of a transaction.
type BroadcastError struct {
	StatusCode int
	Detail     string
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("broadcast rejected (status %d): %s", e.StatusCode, e.Detail)
}

// Gateway is a thin client to a Stacks node's HTTP API.
type Gateway struct {
	logger *logger.Logger
	apiURL string

	// broadcastClient performs the transaction submission POST. Broadcast
	// mutates ledger state irreversibly, so it must never be retried.
	broadcastClient *http.Client
	// readClient serves idempotent status and info lookups with retries.
	readClient *http.Client
}

// NewGateway creates a new Gateway instance.
func NewGateway(apiURL string, log *logger.Logger) *Gateway {
	rc := retryablehttp.NewClient()
	rc.RetryMax = readRetryMax
	rc.HTTPClient.Timeout = requestTimeout
	rc.Logger = nil

	return &Gateway{
		logger:          log,
		apiURL:          strings.TrimRight(apiURL, "/"),
		broadcastClient: &http.Client{Timeout: requestTimeout},
		readClient:      rc.StandardClient(),
	}
}

// Broadcast submits a hex-encoded signed transaction to the node and
// returns the transaction id. A failed broadcast is terminal for the
// settlement attempt; the caller decides what to do next.
func (g *Gateway) Broadcast(ctx context.Context, signedTxHex string) (string, error) {
	raw, err := validation.DecodeTransactionHex(signedTxHex)
	if err != nil {
		return "", err
	}

	url := g.apiURL + "/v2/transactions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to build broadcast request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := g.broadcastClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach ledger node: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read broadcast response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		g.logger.Debug("Broadcast rejected by ledger node ", "status ", resp.StatusCode, " body ", string(body))
		return "", &BroadcastError{StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(body))}
	}

	// The node returns the txid as a quoted JSON string.
	txID := strings.TrimSpace(strings.Trim(strings.TrimSpace(string(body)), `"`))
	if txID == "" {
		return "", fmt.Errorf("ledger node returned empty transaction id")
	}
	return txID, nil
}

// GetTransactionStatus looks up a broadcast transaction. Used both to
// resolve the payer address and to check for on-chain confirmation.
func (g *Gateway) GetTransactionStatus(ctx context.Context, txID string) (*models.TxStatus, error) {
	url := fmt.Sprintf("%s/extended/v1/tx/%s", g.apiURL, txID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}

	resp, err := g.readClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach ledger node: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTxNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from transaction lookup", resp.StatusCode)
	}

	var status models.TxStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to parse transaction status: %w", err)
	}
	return &status, nil
}

// GetNodeInfo fetches basic chain info from the node, surfaced by the
// status endpoint.
func (g *Gateway) GetNodeInfo(ctx context.Context) (*models.NodeInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiURL+"/v2/info", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build info request: %w", err)
	}

	resp, err := g.readClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach ledger node: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from node info", resp.StatusCode)
	}

	var info models.NodeInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to parse node info: %w", err)
	}
	return &info, nil
}
