package gateway

import (
	"context"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Call identifies one contract method invocation: target contract address,
// method name, positional arguments, and the submitting account for
// estimation purposes. Encoding to the ledger's wire format is the node's
// concern, not ours.
type Call struct {
	Contract string `json:"contract"`
	Method   string `json:"method"`
	Args     []any  `json:"args"`
	From     string `json:"from,omitempty"`
}

// Budget is the resource limit and unit price the ledger requires for a
// submitted action.
type Budget struct {
	Limit uint64   `json:"limit"`
	Price *big.Int `json:"price"`
}

// SignedAction is one in-flight mutation: the call, its budget, and the
// signed payload. It exists only for the duration of one orchestrated
// action and is never persisted.
type SignedAction struct {
	ID        uuid.UUID `json:"id"`
	Call      Call      `json:"call"`
	Budget    Budget    `json:"budget"`
	Payload   []byte    `json:"payload"`
	Signature []byte    `json:"signature"`
	SignerID  string    `json:"signerId"`
}

// Status is the terminal settlement status reported by the ledger.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// LogEntry is one structured log record emitted during settlement. Values
// are positional, decimal/string encoded; the outcome decoder applies a
// typed schema to them.
type LogEntry struct {
	Origin string   `json:"origin"`
	Values []string `json:"values"`
}

// SettlementRecord is the ledger-confirmed result of a submitted action.
type SettlementRecord struct {
	TxHash    string     `json:"txHash"`
	Status    Status     `json:"status"`
	Reason    string     `json:"reason,omitempty"`
	Logs      []LogEntry `json:"logs"`
	SettledAt time.Time  `json:"settledAt"`
}

// Client is the ledger gateway. Submit blocks until terminal settlement;
// cancellation and timeouts come from the caller's context. Read and
// CurrentTime are retry-safe; Submit is not (resubmission can
// double-execute).
type Client interface {
	Read(ctx context.Context, call Call, out any) error
	EstimateBudget(ctx context.Context, call Call) (Budget, error)
	Submit(ctx context.Context, action SignedAction) (SettlementRecord, error)
	CurrentTime(ctx context.Context) (uint64, error)
}
