package quota_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/planning-engine/generic"
	"github.com/warp/planning-engine/quota"
	"github.com/warp/planning-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestTransferService(t *testing.T, rule quota.TransferRule, balances ...quota.Balance) (*quota.TransferService, *sqlite.QuotaStore) {
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := db.Quota()
	ctx := context.Background()
	require.NoError(t, store.SaveTransferRule(ctx, rule))
	for _, b := range balances {
		require.NoError(t, store.SaveBalance(ctx, b))
	}
	return quota.NewTransferService(store, zerolog.Nop()), store
}

func currentBalance(t *testing.T, store quota.Store, lt quota.LeaveType) string {
	b, err := store.GetBalance(context.Background(), quota.BalanceKey{UserID: "u1", PeriodID: "2025", LeaveType: lt})
	require.NoError(t, err)
	if b == nil {
		return "none"
	}
	return b.CurrentBalance.String()
}

// =============================================================================
// COMMIT
// =============================================================================

func TestCommit_NoApproval_AppliesImmediately(t *testing.T) {
	// GIVEN: 15 RTT days, a 0.5 rate with no approval step
	svc, store := newTestTransferService(t, *halfRateRule(), balance("15"))
	ctx := context.Background()

	// WHEN: Moving 4 days
	result, err := svc.Commit(ctx, request("4"), "u1", "req-1")

	// THEN: Balances move and the ledger holds both legs
	require.NoError(t, err)
	require.NotNil(t, result.Transfer)
	assert.Equal(t, quota.TransferApproved, result.Transfer.Status)
	assert.Equal(t, "11", currentBalance(t, store, quota.LeaveRTT))
	assert.Equal(t, "2", currentBalance(t, store, quota.LeaveAnnual))

	txs, err := store.ListTransactions(ctx, "u1", "2025")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, quota.TxTransferOut, txs[0].Type)
	assert.Equal(t, "-4", txs[0].Delta.String())
	assert.Equal(t, quota.TxTransferIn, txs[1].Type)
	assert.Equal(t, "2", txs[1].Delta.String())
	assert.Equal(t, result.Transfer.ID, txs[1].ReferenceID)
}

func TestCommit_Refused_WritesNothing(t *testing.T) {
	svc, store := newTestTransferService(t, *halfRateRule(), balance("3"))

	result, err := svc.Commit(context.Background(), request("4"), "u1", "")

	require.NoError(t, err, "a business refusal is data, not an error")
	assert.Nil(t, result.Transfer)
	assert.Equal(t, quota.MsgInsufficientBalance, result.Simulation.Message)
	assert.Equal(t, "3", currentBalance(t, store, quota.LeaveRTT))
	assert.Equal(t, "none", currentBalance(t, store, quota.LeaveAnnual))
}

func TestCommit_InvalidRequest_ClientError(t *testing.T) {
	svc, _ := newTestTransferService(t, *halfRateRule(), balance("3"))

	_, err := svc.Commit(context.Background(), request("0"), "u1", "")

	assert.True(t, generic.IsClientError(err))
}

func TestCommit_SameIdempotencyKey_AppliedOnce(t *testing.T) {
	// GIVEN: A committed transfer
	svc, store := newTestTransferService(t, *halfRateRule(), balance("15"))
	ctx := context.Background()
	_, err := svc.Commit(ctx, request("4"), "u1", "req-1")
	require.NoError(t, err)

	// WHEN: The client retries with the same key
	_, err = svc.Commit(ctx, request("4"), "u1", "req-1")

	// THEN: The retry is rejected and balances moved once
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)
	assert.Equal(t, "11", currentBalance(t, store, quota.LeaveRTT))
}

// =============================================================================
// APPROVAL WORKFLOW
// =============================================================================

func TestCommit_RequiresApproval_Pending(t *testing.T) {
	rule := *halfRateRule()
	rule.RequiresApproval = true
	svc, store := newTestTransferService(t, rule, balance("15"))

	result, err := svc.Commit(context.Background(), request("4"), "u1", "")

	require.NoError(t, err)
	require.NotNil(t, result.Transfer)
	assert.Equal(t, quota.TransferPending, result.Transfer.Status)
	assert.Equal(t, "15", currentBalance(t, store, quota.LeaveRTT), "pending transfers do not move days")
}

func TestApprove_AppliesPendingTransfer(t *testing.T) {
	rule := *halfRateRule()
	rule.RequiresApproval = true
	svc, store := newTestTransferService(t, rule, balance("15"))
	ctx := context.Background()
	result, err := svc.Commit(ctx, request("4"), "u1", "")
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, result.Transfer.ID, "manager")

	require.NoError(t, err)
	assert.Equal(t, quota.TransferApproved, approved.Status)
	assert.Equal(t, "manager", approved.DecidedBy)
	require.NotNil(t, approved.DecidedAt)
	assert.Equal(t, "11", currentBalance(t, store, quota.LeaveRTT))
	assert.Equal(t, "2", currentBalance(t, store, quota.LeaveAnnual))

	// A decided transfer cannot be decided again
	_, err = svc.Approve(ctx, result.Transfer.ID, "manager")
	assert.ErrorIs(t, err, generic.ErrInvalidAction)
}

func TestApprove_BalanceDroppedSinceCommit_Refused(t *testing.T) {
	// GIVEN: A pending 4-day transfer, then the balance falls to 2
	rule := *halfRateRule()
	rule.RequiresApproval = true
	svc, store := newTestTransferService(t, rule, balance("15"))
	ctx := context.Background()
	result, err := svc.Commit(ctx, request("4"), "u1", "")
	require.NoError(t, err)
	require.NoError(t, store.SaveBalance(ctx, balance("2")))

	// WHEN
	_, err = svc.Approve(ctx, result.Transfer.ID, "manager")

	// THEN: Re-simulation refuses it, nothing moves
	assert.ErrorIs(t, err, generic.ErrInvalidAction)
	assert.Equal(t, "2", currentBalance(t, store, quota.LeaveRTT))
	pending, err := store.ListTransfers(ctx, quota.TransferPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestReject_ClosesWithoutLedgerEntries(t *testing.T) {
	rule := *halfRateRule()
	rule.RequiresApproval = true
	svc, store := newTestTransferService(t, rule, balance("15"))
	ctx := context.Background()
	result, err := svc.Commit(ctx, request("4"), "u1", "")
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, result.Transfer.ID, "manager", "peak season")

	require.NoError(t, err)
	assert.Equal(t, quota.TransferRejected, rejected.Status)
	assert.Equal(t, "peak season", rejected.RejectionReason)
	txs, err := store.ListTransactions(ctx, "u1", "")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestApprove_UnknownTransfer_NotFound(t *testing.T) {
	svc, _ := newTestTransferService(t, *halfRateRule())

	_, err := svc.Approve(context.Background(), "nope", "manager")

	assert.True(t, generic.IsNotFound(err))
}

// =============================================================================
// PREVIEW
// =============================================================================

func TestPreview_MissingBalanceCountsAsZero(t *testing.T) {
	svc, _ := newTestTransferService(t, *halfRateRule())

	result, err := svc.Preview(context.Background(), request("1"))

	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, quota.MsgInsufficientBalance, result.Message)
}

func TestPreview_UsesStoredRule(t *testing.T) {
	svc, _ := newTestTransferService(t, *halfRateRule(), balance("15"))

	result, err := svc.Preview(context.Background(), request("5"))

	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Equal(t, "2.5", result.ResultingDays.String())
}

func TestPreview_UnruledPair(t *testing.T) {
	svc, _ := newTestTransferService(t, *halfRateRule(), balance("15"))
	req := request("1")
	req.ToType = quota.LeaveTraining

	result, err := svc.Preview(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, quota.MsgNoRule, result.Message)
}

// =============================================================================
// CARRY-OVER
// =============================================================================

func TestSimulateCarryOver(t *testing.T) {
	annual := quota.Balance{UserID: "u1", PeriodID: "2025", LeaveType: quota.LeaveAnnual, CurrentBalance: d("7")}
	req := quota.CarryOverRequest{UserID: "u1", PeriodID: "2025", LeaveType: quota.LeaveAnnual, ToYear: 2026}

	tests := []struct {
		name   string
		rule   quota.CarryOverRule
		amount string
	}{
		{"percentage floors", quota.CarryOverRule{RuleType: quota.CarryOverPercentage, Value: d("50")}, "3"},
		{"fixed caps", quota.CarryOverRule{RuleType: quota.CarryOverFixed, Value: d("5")}, "5"},
		{"fixed above remaining", quota.CarryOverRule{RuleType: quota.CarryOverMaxDays, Value: d("10")}, "7"},
		{"all", quota.CarryOverRule{RuleType: quota.CarryOverAll}, "7"},
		{"all with max", quota.CarryOverRule{RuleType: quota.CarryOverAll, MaxCarryOverDays: generic.IntPtr(4)}, "4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := tt.rule
			rule.ID, rule.LeaveType, rule.IsActive = "c1", quota.LeaveAnnual, true

			result := quota.SimulateCarryOver(req, annual, &rule)

			assert.True(t, result.IsValid)
			assert.Equal(t, tt.amount, result.CarryOverAmount.String())
			assert.Equal(t, "7", result.OriginalRemaining.String())
			assert.Nil(t, result.ExpiryDate)
		})
	}
}

func TestSimulateCarryOver_Expiry(t *testing.T) {
	annual := quota.Balance{UserID: "u1", PeriodID: "2025", LeaveType: quota.LeaveAnnual, CurrentBalance: d("7")}
	req := quota.CarryOverRequest{UserID: "u1", PeriodID: "2025", LeaveType: quota.LeaveAnnual, ToYear: 2026}
	rule := quota.CarryOverRule{ID: "c1", LeaveType: quota.LeaveAnnual, RuleType: quota.CarryOverAll, ExpiryMonths: 3, IsActive: true}

	result := quota.SimulateCarryOver(req, annual, &rule)

	require.NotNil(t, result.ExpiryDate)
	assert.Equal(t, time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC), *result.ExpiryDate)
}

func TestSimulateCarryOver_NoRule(t *testing.T) {
	req := quota.CarryOverRequest{UserID: "u1", PeriodID: "2025", LeaveType: quota.LeaveAnnual, ToYear: 2026}

	result := quota.SimulateCarryOver(req, quota.Balance{CurrentBalance: d("7")}, nil)

	assert.False(t, result.IsValid)
	assert.True(t, result.CarryOverAmount.IsZero())
	assert.Empty(t, result.RuleID)
}

func TestPreviewCarryOver_FromStore(t *testing.T) {
	_, store := newTestTransferService(t, *halfRateRule())
	ctx := context.Background()
	require.NoError(t, store.SaveBalance(ctx, quota.Balance{UserID: "u1", PeriodID: "2025", LeaveType: quota.LeaveAnnual, CurrentBalance: d("9")}))
	require.NoError(t, store.SaveCarryOverRule(ctx, quota.CarryOverRule{
		ID: "c1", LeaveType: quota.LeaveAnnual, RuleType: quota.CarryOverPercentage, Value: d("50"), IsActive: true,
	}))

	result, err := quota.PreviewCarryOver(ctx, store, quota.CarryOverRequest{
		UserID: "u1", PeriodID: "2025", LeaveType: quota.LeaveAnnual, ToYear: 2026,
	})

	require.NoError(t, err)
	assert.Equal(t, "4", result.CarryOverAmount.String())
	assert.Equal(t, "c1", result.RuleID)
}
