package memory

import (
	"context"

	"github.com/warp/planning-engine/generic"
	"github.com/warp/planning-engine/quota"
	"github.com/warp/planning-engine/rules"
)

// =============================================================================
// RULE STORE (rules.TxStore interface)
// =============================================================================

type RuleStore struct {
	m *Memory
}

var _ rules.TxStore = (*RuleStore)(nil)

func (rs *RuleStore) WithTx(ctx context.Context, fn func(rules.Store) error) error {
	return rs.m.withTx(func(s *state) error { return fn(s) })
}

func (rs *RuleStore) GetRule(ctx context.Context, id string) (r *rules.Rule, err error) {
	rs.m.read(func(s *state) error { r, err = s.GetRule(ctx, id); return nil })
	return
}

func (rs *RuleStore) ListRules(ctx context.Context) (out []rules.Rule, err error) {
	rs.m.read(func(s *state) error { out, err = s.ListRules(ctx); return nil })
	return
}

func (rs *RuleStore) SaveRule(ctx context.Context, r rules.Rule) error {
	return rs.m.write(func(s *state) error { return s.SaveRule(ctx, r) })
}

func (rs *RuleStore) DeleteRule(ctx context.Context, id string) error {
	return rs.m.write(func(s *state) error { return s.DeleteRule(ctx, id) })
}

func (rs *RuleStore) GetResolution(ctx context.Context, conflictID string) (r *rules.Resolution, err error) {
	rs.m.read(func(s *state) error { r, err = s.GetResolution(ctx, conflictID); return nil })
	return
}

func (rs *RuleStore) SaveResolution(ctx context.Context, res rules.Resolution) error {
	return rs.m.write(func(s *state) error { return s.SaveResolution(ctx, res) })
}

func (rs *RuleStore) ListResolutions(ctx context.Context) (out []rules.Resolution, err error) {
	rs.m.read(func(s *state) error { out, err = s.ListResolutions(ctx); return nil })
	return
}

// =============================================================================
// QUOTA STORE (quota.TxStore interface)
// =============================================================================

type QuotaStore struct {
	m *Memory
}

var _ quota.TxStore = (*QuotaStore)(nil)

func (qs *QuotaStore) WithTx(ctx context.Context, fn func(quota.Store) error) error {
	return qs.m.withTx(func(s *state) error { return fn(s) })
}

func (qs *QuotaStore) GetBalance(ctx context.Context, key quota.BalanceKey) (b *quota.Balance, err error) {
	qs.m.read(func(s *state) error { b, err = s.GetBalance(ctx, key); return nil })
	return
}

func (qs *QuotaStore) ListBalances(ctx context.Context, userID generic.UserID, periodID generic.PeriodID) (out []quota.Balance, err error) {
	qs.m.read(func(s *state) error { out, err = s.ListBalances(ctx, userID, periodID); return nil })
	return
}

func (qs *QuotaStore) SaveBalance(ctx context.Context, b quota.Balance) error {
	return qs.m.write(func(s *state) error { return s.SaveBalance(ctx, b) })
}

func (qs *QuotaStore) ActiveTransferRule(ctx context.Context, from, to quota.LeaveType) (r *quota.TransferRule, err error) {
	qs.m.read(func(s *state) error { r, err = s.ActiveTransferRule(ctx, from, to); return nil })
	return
}

func (qs *QuotaStore) ListTransferRules(ctx context.Context) (out []quota.TransferRule, err error) {
	qs.m.read(func(s *state) error { out, err = s.ListTransferRules(ctx); return nil })
	return
}

func (qs *QuotaStore) SaveTransferRule(ctx context.Context, r quota.TransferRule) error {
	return qs.m.write(func(s *state) error { return s.SaveTransferRule(ctx, r) })
}

func (qs *QuotaStore) ActiveCarryOverRule(ctx context.Context, lt quota.LeaveType) (r *quota.CarryOverRule, err error) {
	qs.m.read(func(s *state) error { r, err = s.ActiveCarryOverRule(ctx, lt); return nil })
	return
}

func (qs *QuotaStore) SaveCarryOverRule(ctx context.Context, r quota.CarryOverRule) error {
	return qs.m.write(func(s *state) error { return s.SaveCarryOverRule(ctx, r) })
}

func (qs *QuotaStore) AppendTransactions(ctx context.Context, txs []quota.Transaction) error {
	return qs.m.write(func(s *state) error { return s.AppendTransactions(ctx, txs) })
}

func (qs *QuotaStore) ListTransactions(ctx context.Context, userID generic.UserID, periodID generic.PeriodID) (out []quota.Transaction, err error) {
	qs.m.read(func(s *state) error { out, err = s.ListTransactions(ctx, userID, periodID); return nil })
	return
}

func (qs *QuotaStore) GetTransfer(ctx context.Context, id string) (t *quota.Transfer, err error) {
	qs.m.read(func(s *state) error { t, err = s.GetTransfer(ctx, id); return nil })
	return
}

func (qs *QuotaStore) SaveTransfer(ctx context.Context, t quota.Transfer) error {
	return qs.m.write(func(s *state) error { return s.SaveTransfer(ctx, t) })
}

func (qs *QuotaStore) ListTransfers(ctx context.Context, status quota.TransferStatus) (out []quota.Transfer, err error) {
	qs.m.read(func(s *state) error { out, err = s.ListTransfers(ctx, status); return nil })
	return
}
