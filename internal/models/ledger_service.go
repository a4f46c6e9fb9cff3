package models

import "context"

// TxStatus is the ledger node's view of a broadcast transaction.
type TxStatus struct {
	TxStatus      string `json:"tx_status"`
	SenderAddress string `json:"sender_address"`
}

// IsConfirmed reports whether the transaction reached the terminal
// success state on chain.
func (s *TxStatus) IsConfirmed() bool {
	return s.TxStatus == "success"
}

// NodeInfo is a subset of the ledger node's /v2/info response.
type NodeInfo struct {
	NetworkID       int64  `json:"network_id"`
	StacksTipHeight uint64 `json:"stacks_tip_height"`
	ServerVersion   string `json:"server_version"`
}

// LedgerService is a thin client to the external ledger node. Broadcast
// mutates ledger state irreversibly; implementations must not retry it.
type LedgerService interface {
	Broadcast(ctx context.Context, signedTxHex string) (string, error)
	GetTransactionStatus(ctx context.Context, txID string) (*TxStatus, error)
	GetNodeInfo(ctx context.Context) (*NodeInfo, error)
}
