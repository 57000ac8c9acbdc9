// Package memory provides in-memory Store implementations (for testing/dev).
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/planning-engine/generic"
	"github.com/warp/planning-engine/quota"
	"github.com/warp/planning-engine/rules"
)

// =============================================================================
// MEMORY STORE - Shared state behind two views
// =============================================================================

// Memory holds the whole dataset. Rules() and Quota() expose it through the
// rules.TxStore and quota.TxStore interfaces; both views share one lock.
type Memory struct {
	mu   sync.RWMutex
	data *state
}

func New() *Memory {
	return &Memory{data: newState()}
}

func (m *Memory) Rules() *RuleStore  { return &RuleStore{m: m} }
func (m *Memory) Quota() *QuotaStore { return &QuotaStore{m: m} }

// withTx runs fn on a copy of the state and keeps it only on success.
func (m *Memory) withTx(fn func(*state) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	draft := m.data.clone()
	if err := fn(draft); err != nil {
		return err
	}
	m.data = draft
	return nil
}

func (m *Memory) read(fn func(*state) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(m.data)
}

func (m *Memory) write(fn func(*state) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.data)
}

// =============================================================================
// STATE - Unlocked operations
// =============================================================================

type state struct {
	rules       map[string]rules.Rule
	resolutions map[string]rules.Resolution

	balances      map[quota.BalanceKey]quota.Balance
	transferRules map[string]quota.TransferRule
	carryRules    map[string]quota.CarryOverRule
	transactions  []quota.Transaction
	txKeys        map[string]bool
	transfers     map[string]quota.Transfer
	transferKeys  map[string]string // idempotency key -> transfer ID
}

func newState() *state {
	return &state{
		rules:         make(map[string]rules.Rule),
		resolutions:   make(map[string]rules.Resolution),
		balances:      make(map[quota.BalanceKey]quota.Balance),
		transferRules: make(map[string]quota.TransferRule),
		carryRules:    make(map[string]quota.CarryOverRule),
		txKeys:        make(map[string]bool),
		transfers:     make(map[string]quota.Transfer),
		transferKeys:  make(map[string]string),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.rules {
		c.rules[k] = v
	}
	for k, v := range s.resolutions {
		c.resolutions[k] = v
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.transferRules {
		c.transferRules[k] = v
	}
	for k, v := range s.carryRules {
		c.carryRules[k] = v
	}
	c.transactions = append([]quota.Transaction(nil), s.transactions...)
	for k, v := range s.txKeys {
		c.txKeys[k] = v
	}
	for k, v := range s.transfers {
		c.transfers[k] = v
	}
	for k, v := range s.transferKeys {
		c.transferKeys[k] = v
	}
	return c
}

// Rules

func (s *state) GetRule(_ context.Context, id string) (*rules.Rule, error) {
	r, ok := s.rules[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *state) ListRules(_ context.Context) ([]rules.Rule, error) {
	out := make([]rules.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *state) SaveRule(_ context.Context, r rules.Rule) error {
	s.rules[r.ID] = r
	return nil
}

func (s *state) DeleteRule(_ context.Context, id string) error {
	if _, ok := s.rules[id]; !ok {
		return &generic.NotFoundError{Kind: "rule", ID: id}
	}
	delete(s.rules, id)
	return nil
}

func (s *state) GetResolution(_ context.Context, conflictID string) (*rules.Resolution, error) {
	r, ok := s.resolutions[conflictID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *state) SaveResolution(_ context.Context, res rules.Resolution) error {
	if _, ok := s.resolutions[res.ConflictID]; ok {
		return generic.ErrAlreadyResolved
	}
	s.resolutions[res.ConflictID] = res
	return nil
}

func (s *state) ListResolutions(_ context.Context) ([]rules.Resolution, error) {
	out := make([]rules.Resolution, 0, len(s.resolutions))
	for _, r := range s.resolutions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResolvedAt.Before(out[j].ResolvedAt) })
	return out, nil
}

// Quota

func (s *state) GetBalance(_ context.Context, key quota.BalanceKey) (*quota.Balance, error) {
	b, ok := s.balances[key]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *state) ListBalances(_ context.Context, userID generic.UserID, periodID generic.PeriodID) ([]quota.Balance, error) {
	var out []quota.Balance
	for k, b := range s.balances {
		if k.UserID == userID && (periodID == "" || k.PeriodID == periodID) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PeriodID != out[j].PeriodID {
			return out[i].PeriodID < out[j].PeriodID
		}
		return out[i].LeaveType < out[j].LeaveType
	})
	return out, nil
}

func (s *state) SaveBalance(_ context.Context, b quota.Balance) error {
	s.balances[b.Key()] = b
	return nil
}

func (s *state) ActiveTransferRule(_ context.Context, from, to quota.LeaveType) (*quota.TransferRule, error) {
	for _, r := range sortedTransferRules(s.transferRules) {
		if r.IsActive && r.FromType == from && r.ToType == to {
			return &r, nil
		}
	}
	return nil, nil
}

func (s *state) ListTransferRules(_ context.Context) ([]quota.TransferRule, error) {
	return sortedTransferRules(s.transferRules), nil
}

func (s *state) SaveTransferRule(_ context.Context, r quota.TransferRule) error {
	s.transferRules[r.ID] = r
	return nil
}

func (s *state) ActiveCarryOverRule(_ context.Context, lt quota.LeaveType) (*quota.CarryOverRule, error) {
	ids := make([]string, 0, len(s.carryRules))
	for id := range s.carryRules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		r := s.carryRules[id]
		if r.IsActive && r.LeaveType == lt {
			return &r, nil
		}
	}
	return nil, nil
}

func (s *state) SaveCarryOverRule(_ context.Context, r quota.CarryOverRule) error {
	s.carryRules[r.ID] = r
	return nil
}

func (s *state) AppendTransactions(_ context.Context, txs []quota.Transaction) error {
	batch := make(map[string]bool)
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		if s.txKeys[tx.IdempotencyKey] || batch[tx.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		batch[tx.IdempotencyKey] = true
	}
	for k := range batch {
		s.txKeys[k] = true
	}
	s.transactions = append(s.transactions, txs...)
	return nil
}

func (s *state) ListTransactions(_ context.Context, userID generic.UserID, periodID generic.PeriodID) ([]quota.Transaction, error) {
	var out []quota.Transaction
	for _, tx := range s.transactions {
		if tx.UserID == userID && (periodID == "" || tx.PeriodID == periodID) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *state) GetTransfer(_ context.Context, id string) (*quota.Transfer, error) {
	t, ok := s.transfers[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *state) SaveTransfer(_ context.Context, t quota.Transfer) error {
	if t.IdempotencyKey != "" {
		if owner, ok := s.transferKeys[t.IdempotencyKey]; ok && owner != t.ID {
			return generic.ErrDuplicateIdempotencyKey
		}
		s.transferKeys[t.IdempotencyKey] = t.ID
	}
	s.transfers[t.ID] = t
	return nil
}

func (s *state) ListTransfers(_ context.Context, status quota.TransferStatus) ([]quota.Transfer, error) {
	var out []quota.Transfer
	for _, t := range s.transfers {
		if status == "" || t.Status == status {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func sortedTransferRules(m map[string]quota.TransferRule) []quota.TransferRule {
	out := make([]quota.TransferRule, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
