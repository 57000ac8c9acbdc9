/*
transfer.go - Committing quota transfers

PURPOSE:
  Applies a transfer the user previewed with Simulate. Everything happens
  inside one store transaction: reload balances, re-simulate, then either
  park the transfer for approval or apply it to the ledger.

TRANSFER FLOW:
  ┌──────────┐   re-simulate   ┌────────────────────┐
  │  Commit  │ ──────────────▶ │ requiresApproval?  │
  └──────────┘                 └────────────────────┘
                                  │ yes         │ no
                                  ▼             ▼
                             ┌─────────┐   ┌──────────┐
                             │ pending │   │ approved │──▶ transfer_out / transfer_in
                             └─────────┘   └──────────┘
                               │      │
                       Approve │      │ Reject
                               ▼      ▼
                        approved    rejected (no ledger entry)

IDEMPOTENCY:
  A caller-supplied idempotency key is stored on the transfer; a retry
  with the same key fails with ErrDuplicateIdempotencyKey. Ledger entries
  carry "{transferID}-out" / "{transferID}-in" keys, so a transfer is
  never applied twice.

SEE ALSO:
  - simulate.go: The pure check re-run here
  - store.go: Ledger and transfer persistence
*/
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/planning-engine/generic"
)

// TransferService commits, approves and rejects transfers.
type TransferService struct {
	store  TxStore
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

// NewTransferService creates a service over a transactional store.
func NewTransferService(store TxStore, logger zerolog.Logger) *TransferService {
	return &TransferService{
		store:  store,
		logger: logger.With().Str("component", "quota_transfer").Logger(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// CommitResult carries the simulation the commit was based on. Transfer is
// nil when the simulation refused the request.
type CommitResult struct {
	Transfer   *Transfer
	Simulation SimulationResult
}

// Preview loads the balance and rule for a request and simulates it.
func (ts *TransferService) Preview(ctx context.Context, req TransferRequest) (SimulationResult, error) {
	if err := req.Validate(); err != nil {
		return SimulationResult{}, err
	}
	bal, rule, err := loadInputs(ctx, ts.store, req)
	if err != nil {
		return SimulationResult{}, err
	}
	return Simulate(req, bal, rule), nil
}

// Commit re-simulates the request against fresh balances and applies it,
// or records it as pending when the rule requires approval.
func (ts *TransferService) Commit(ctx context.Context, req TransferRequest, actor, idempotencyKey string) (*CommitResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var result CommitResult
	err := ts.store.WithTx(ctx, func(s Store) error {
		bal, rule, err := loadInputs(ctx, s, req)
		if err != nil {
			return err
		}

		result.Simulation = Simulate(req, bal, rule)
		if !result.Simulation.IsValid {
			return nil
		}

		at := ts.now().UTC()
		t := Transfer{
			ID:             ts.newID(),
			Request:        req,
			RuleID:         rule.ID,
			ResultingDays:  result.Simulation.ResultingDays,
			ConversionRate: result.Simulation.ConversionRate,
			Status:         TransferPending,
			RequestedBy:    actor,
			IdempotencyKey: idempotencyKey,
			CreatedAt:      at,
		}

		if rule.RequiresApproval {
			if err := s.SaveTransfer(ctx, t); err != nil {
				return err
			}
		} else {
			if err := ts.apply(ctx, s, &t, "system", at); err != nil {
				return err
			}
		}
		result.Transfer = &t
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Transfer == nil {
		ts.logger.Info().
			Str("user_id", string(req.UserID)).
			Str("from", string(req.FromType)).
			Str("to", string(req.ToType)).
			Str("reason", result.Simulation.Message).
			Msg("transfer refused")
		return &result, nil
	}

	ts.logger.Info().
		Str("transfer_id", result.Transfer.ID).
		Str("user_id", string(req.UserID)).
		Str("days", req.Days.String()).
		Str("status", string(result.Transfer.Status)).
		Msg("transfer committed")
	return &result, nil
}

// Approve applies a pending transfer after re-checking it against the
// balance as it stands now.
func (ts *TransferService) Approve(ctx context.Context, id, approver string) (*Transfer, error) {
	var out Transfer
	err := ts.store.WithTx(ctx, func(s Store) error {
		t, err := loadPending(ctx, s, id, "approve")
		if err != nil {
			return err
		}

		bal, rule, err := loadInputs(ctx, s, t.Request)
		if err != nil {
			return err
		}
		sim := Simulate(t.Request, bal, rule)
		if !sim.IsValid {
			return &generic.InvalidActionError{Action: "approve", Reason: sim.Message}
		}
		t.ResultingDays = sim.ResultingDays
		t.ConversionRate = sim.ConversionRate

		if err := ts.apply(ctx, s, t, approver, ts.now().UTC()); err != nil {
			return err
		}
		out = *t
		return nil
	})
	if err != nil {
		return nil, err
	}

	ts.logger.Info().Str("transfer_id", id).Str("approver", approver).Msg("transfer approved")
	return &out, nil
}

// Reject closes a pending transfer without touching any balance.
func (ts *TransferService) Reject(ctx context.Context, id, approver, reason string) (*Transfer, error) {
	var out Transfer
	err := ts.store.WithTx(ctx, func(s Store) error {
		t, err := loadPending(ctx, s, id, "reject")
		if err != nil {
			return err
		}
		at := ts.now().UTC()
		t.Status = TransferRejected
		t.DecidedBy = approver
		t.DecidedAt = &at
		t.RejectionReason = reason
		if err := s.SaveTransfer(ctx, *t); err != nil {
			return err
		}
		out = *t
		return nil
	})
	if err != nil {
		return nil, err
	}

	ts.logger.Info().Str("transfer_id", id).Str("approver", approver).Str("reason", reason).Msg("transfer rejected")
	return &out, nil
}

// apply writes both ledger entries, moves the balances and marks the
// transfer approved.
func (ts *TransferService) apply(ctx context.Context, s Store, t *Transfer, decidedBy string, at time.Time) error {
	req := t.Request

	src, err := s.GetBalance(ctx, req.SourceKey())
	if err != nil {
		return fmt.Errorf("failed to load source balance: %w", err)
	}
	if src == nil || src.CurrentBalance.LessThan(req.Days) {
		return generic.ErrInsufficientBalance
	}
	dst, err := s.GetBalance(ctx, req.DestinationKey())
	if err != nil {
		return fmt.Errorf("failed to load destination balance: %w", err)
	}
	if dst == nil {
		dst = &Balance{UserID: req.UserID, PeriodID: req.PeriodID, LeaveType: req.ToType, CurrentBalance: decimal.Zero}
	}

	txs := []Transaction{
		{
			ID:             t.ID + "-out",
			UserID:         req.UserID,
			PeriodID:       req.PeriodID,
			LeaveType:      req.FromType,
			Delta:          req.Days.Neg(),
			Type:           TxTransferOut,
			ReferenceID:    t.ID,
			Reason:         fmt.Sprintf("transfer to %s", req.ToType),
			IdempotencyKey: t.ID + "-out",
			CreatedAt:      at,
		},
		{
			ID:             t.ID + "-in",
			UserID:         req.UserID,
			PeriodID:       req.PeriodID,
			LeaveType:      req.ToType,
			Delta:          t.ResultingDays,
			Type:           TxTransferIn,
			ReferenceID:    t.ID,
			Reason:         fmt.Sprintf("transfer from %s at rate %s", req.FromType, t.ConversionRate.String()),
			IdempotencyKey: t.ID + "-in",
			CreatedAt:      at,
		},
	}
	if err := s.AppendTransactions(ctx, txs); err != nil {
		return fmt.Errorf("failed to record transfer transactions: %w", err)
	}

	src.CurrentBalance = src.CurrentBalance.Sub(req.Days)
	src.UpdatedAt = at
	dst.CurrentBalance = dst.CurrentBalance.Add(t.ResultingDays)
	dst.UpdatedAt = at
	if err := s.SaveBalance(ctx, *src); err != nil {
		return fmt.Errorf("failed to update source balance: %w", err)
	}
	if err := s.SaveBalance(ctx, *dst); err != nil {
		return fmt.Errorf("failed to update destination balance: %w", err)
	}

	t.Status = TransferApproved
	t.DecidedBy = decidedBy
	t.DecidedAt = &at
	return s.SaveTransfer(ctx, *t)
}

func loadInputs(ctx context.Context, s Store, req TransferRequest) (Balance, *TransferRule, error) {
	bal := Balance{UserID: req.UserID, PeriodID: req.PeriodID, LeaveType: req.FromType, CurrentBalance: decimal.Zero}
	stored, err := s.GetBalance(ctx, req.SourceKey())
	if err != nil {
		return Balance{}, nil, fmt.Errorf("failed to load balance: %w", err)
	}
	if stored != nil {
		bal = *stored
	}
	rule, err := s.ActiveTransferRule(ctx, req.FromType, req.ToType)
	if err != nil {
		return Balance{}, nil, fmt.Errorf("failed to load transfer rule: %w", err)
	}
	return bal, rule, nil
}

func loadPending(ctx context.Context, s Store, id, action string) (*Transfer, error) {
	t, err := s.GetTransfer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load transfer: %w", err)
	}
	if t == nil {
		return nil, &generic.NotFoundError{Kind: "transfer", ID: id}
	}
	if t.Status != TransferPending {
		return nil, &generic.InvalidActionError{Action: action,
			Reason: fmt.Sprintf("transfer is %s, not pending", t.Status)}
	}
	return t, nil
}

// PreviewCarryOver loads the balance and rule for a carry-over and simulates it.
func PreviewCarryOver(ctx context.Context, s Store, req CarryOverRequest) (CarryOverResult, error) {
	if err := req.Validate(); err != nil {
		return CarryOverResult{}, err
	}
	bal := Balance{UserID: req.UserID, PeriodID: req.PeriodID, LeaveType: req.LeaveType, CurrentBalance: decimal.Zero}
	stored, err := s.GetBalance(ctx, BalanceKey{UserID: req.UserID, PeriodID: req.PeriodID, LeaveType: req.LeaveType})
	if err != nil {
		return CarryOverResult{}, fmt.Errorf("failed to load balance: %w", err)
	}
	if stored != nil {
		bal = *stored
	}
	rule, err := s.ActiveCarryOverRule(ctx, req.LeaveType)
	if err != nil {
		return CarryOverResult{}, fmt.Errorf("failed to load carry-over rule: %w", err)
	}
	return SimulateCarryOver(req, bal, rule), nil
}
