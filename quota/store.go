package quota

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/planning-engine/generic"
)

// =============================================================================
// LEDGER TRANSACTIONS - Append-only record of balance changes
// =============================================================================

type TxType string

const (
	TxTransferOut TxType = "transfer_out"
	TxTransferIn  TxType = "transfer_in"
	TxAdjustment  TxType = "adjustment"
)

// Transaction is one immutable balance change. The balance row is a
// running total kept in step with the ledger inside the same transaction.
type Transaction struct {
	ID             string
	UserID         generic.UserID
	PeriodID       generic.PeriodID
	LeaveType      LeaveType
	Delta          decimal.Decimal
	Type           TxType
	ReferenceID    string
	Reason         string
	IdempotencyKey string
	CreatedAt      time.Time
}

// =============================================================================
// TRANSFERS - Committed or pending requests
// =============================================================================

type TransferStatus string

const (
	TransferPending  TransferStatus = "pending"
	TransferApproved TransferStatus = "approved"
	TransferRejected TransferStatus = "rejected"
)

// Transfer is a committed transfer request and its workflow state.
type Transfer struct {
	ID              string
	Request         TransferRequest
	RuleID          string
	ResultingDays   decimal.Decimal
	ConversionRate  decimal.Decimal
	Status          TransferStatus
	RequestedBy     string
	DecidedBy       string
	RejectionReason string
	IdempotencyKey  string
	CreatedAt       time.Time
	DecidedAt       *time.Time
}

// =============================================================================
// STORE
// =============================================================================

// Store persists quota reference data, balances, the ledger and transfers.
type Store interface {
	// GetBalance returns nil, nil when no balance row exists.
	GetBalance(ctx context.Context, key BalanceKey) (*Balance, error)
	ListBalances(ctx context.Context, userID generic.UserID, periodID generic.PeriodID) ([]Balance, error)
	SaveBalance(ctx context.Context, b Balance) error

	// ActiveTransferRule returns nil, nil when no active rule covers the pair.
	ActiveTransferRule(ctx context.Context, from, to LeaveType) (*TransferRule, error)
	ListTransferRules(ctx context.Context) ([]TransferRule, error)
	SaveTransferRule(ctx context.Context, r TransferRule) error

	// ActiveCarryOverRule returns nil, nil when no active rule covers the type.
	ActiveCarryOverRule(ctx context.Context, lt LeaveType) (*CarryOverRule, error)
	SaveCarryOverRule(ctx context.Context, r CarryOverRule) error

	// AppendTransactions writes ledger entries atomically. A reused
	// idempotency key fails with generic.ErrDuplicateIdempotencyKey.
	AppendTransactions(ctx context.Context, txs []Transaction) error
	ListTransactions(ctx context.Context, userID generic.UserID, periodID generic.PeriodID) ([]Transaction, error)

	// GetTransfer returns nil, nil when the transfer does not exist.
	GetTransfer(ctx context.Context, id string) (*Transfer, error)
	// SaveTransfer fails with generic.ErrDuplicateIdempotencyKey when a
	// different transfer already holds the same idempotency key.
	SaveTransfer(ctx context.Context, t Transfer) error
	ListTransfers(ctx context.Context, status TransferStatus) ([]Transfer, error)
}

// TxStore runs fn atomically. Concurrent WithTx calls are serialized,
// which is the lock a commit needs on its balance keys.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
