package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/planning-engine/generic"
	"github.com/warp/planning-engine/quota"
)

// =============================================================================
// QUOTA STORE (quota.TxStore interface)
// =============================================================================

// QuotaStore is the leave-quota view of a Store.
type QuotaStore struct {
	s *Store
}

var _ quota.TxStore = (*QuotaStore)(nil)

// WithTx runs fn inside one SQL transaction under the store write lock.
func (qs *QuotaStore) WithTx(ctx context.Context, fn func(quota.Store) error) error {
	return qs.s.withTx(ctx, func(q *queries) error { return fn(q) })
}

func (qs *QuotaStore) GetBalance(ctx context.Context, key quota.BalanceKey) (*quota.Balance, error) {
	qs.s.mu.RLock()
	defer qs.s.mu.RUnlock()
	return qs.s.direct().GetBalance(ctx, key)
}

func (qs *QuotaStore) ListBalances(ctx context.Context, userID generic.UserID, periodID generic.PeriodID) ([]quota.Balance, error) {
	qs.s.mu.RLock()
	defer qs.s.mu.RUnlock()
	return qs.s.direct().ListBalances(ctx, userID, periodID)
}

func (qs *QuotaStore) SaveBalance(ctx context.Context, b quota.Balance) error {
	qs.s.mu.Lock()
	defer qs.s.mu.Unlock()
	return qs.s.direct().SaveBalance(ctx, b)
}

func (qs *QuotaStore) ActiveTransferRule(ctx context.Context, from, to quota.LeaveType) (*quota.TransferRule, error) {
	qs.s.mu.RLock()
	defer qs.s.mu.RUnlock()
	return qs.s.direct().ActiveTransferRule(ctx, from, to)
}

func (qs *QuotaStore) ListTransferRules(ctx context.Context) ([]quota.TransferRule, error) {
	qs.s.mu.RLock()
	defer qs.s.mu.RUnlock()
	return qs.s.direct().ListTransferRules(ctx)
}

func (qs *QuotaStore) SaveTransferRule(ctx context.Context, r quota.TransferRule) error {
	qs.s.mu.Lock()
	defer qs.s.mu.Unlock()
	return qs.s.direct().SaveTransferRule(ctx, r)
}

func (qs *QuotaStore) ActiveCarryOverRule(ctx context.Context, lt quota.LeaveType) (*quota.CarryOverRule, error) {
	qs.s.mu.RLock()
	defer qs.s.mu.RUnlock()
	return qs.s.direct().ActiveCarryOverRule(ctx, lt)
}

func (qs *QuotaStore) SaveCarryOverRule(ctx context.Context, r quota.CarryOverRule) error {
	qs.s.mu.Lock()
	defer qs.s.mu.Unlock()
	return qs.s.direct().SaveCarryOverRule(ctx, r)
}

// AppendTransactions writes the batch in its own transaction so that a
// duplicate key leaves nothing behind.
func (qs *QuotaStore) AppendTransactions(ctx context.Context, txs []quota.Transaction) error {
	return qs.s.withTx(ctx, func(q *queries) error { return q.AppendTransactions(ctx, txs) })
}

func (qs *QuotaStore) ListTransactions(ctx context.Context, userID generic.UserID, periodID generic.PeriodID) ([]quota.Transaction, error) {
	qs.s.mu.RLock()
	defer qs.s.mu.RUnlock()
	return qs.s.direct().ListTransactions(ctx, userID, periodID)
}

func (qs *QuotaStore) GetTransfer(ctx context.Context, id string) (*quota.Transfer, error) {
	qs.s.mu.RLock()
	defer qs.s.mu.RUnlock()
	return qs.s.direct().GetTransfer(ctx, id)
}

func (qs *QuotaStore) SaveTransfer(ctx context.Context, t quota.Transfer) error {
	qs.s.mu.Lock()
	defer qs.s.mu.Unlock()
	return qs.s.direct().SaveTransfer(ctx, t)
}

func (qs *QuotaStore) ListTransfers(ctx context.Context, status quota.TransferStatus) ([]quota.Transfer, error) {
	qs.s.mu.RLock()
	defer qs.s.mu.RUnlock()
	return qs.s.direct().ListTransfers(ctx, status)
}

// =============================================================================
// BALANCES
// =============================================================================

func (q *queries) GetBalance(ctx context.Context, key quota.BalanceKey) (*quota.Balance, error) {
	var amount, updatedAt string
	err := q.q.QueryRowContext(ctx, `
		SELECT current_balance, updated_at FROM leave_balances
		WHERE user_id = ? AND period_id = ? AND leave_type = ?`,
		string(key.UserID), string(key.PeriodID), string(key.LeaveType),
	).Scan(&amount, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	current, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt balance %q: %w", amount, err)
	}
	return &quota.Balance{
		UserID:         key.UserID,
		PeriodID:       key.PeriodID,
		LeaveType:      key.LeaveType,
		CurrentBalance: current,
		UpdatedAt:      parseTime(updatedAt),
	}, nil
}

// ListBalances returns a user's balances; an empty periodID means every period.
func (q *queries) ListBalances(ctx context.Context, userID generic.UserID, periodID generic.PeriodID) ([]quota.Balance, error) {
	query := "SELECT period_id, leave_type, current_balance, updated_at FROM leave_balances WHERE user_id = ?"
	args := []any{string(userID)}
	if periodID != "" {
		query += " AND period_id = ?"
		args = append(args, string(periodID))
	}
	query += " ORDER BY period_id, leave_type"

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []quota.Balance
	for rows.Next() {
		var period, leaveType, amount, updatedAt string
		if err := rows.Scan(&period, &leaveType, &amount, &updatedAt); err != nil {
			return nil, err
		}
		current, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt balance %q: %w", amount, err)
		}
		out = append(out, quota.Balance{
			UserID:         userID,
			PeriodID:       generic.PeriodID(period),
			LeaveType:      quota.LeaveType(leaveType),
			CurrentBalance: current,
			UpdatedAt:      parseTime(updatedAt),
		})
	}
	return out, rows.Err()
}

func (q *queries) SaveBalance(ctx context.Context, b quota.Balance) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO leave_balances (user_id, period_id, leave_type, current_balance, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, period_id, leave_type) DO UPDATE SET
			current_balance = excluded.current_balance,
			updated_at = excluded.updated_at`,
		string(b.UserID), string(b.PeriodID), string(b.LeaveType),
		b.CurrentBalance.String(), formatTime(b.UpdatedAt),
	)
	return err
}

// =============================================================================
// TRANSFER & CARRY-OVER RULES
// =============================================================================

const transferRuleColumns = `id, from_type, to_type, conversion_rate, max_transfer_days,
	max_transfer_percentage, minimum_remaining_days, requires_approval, is_active`

func (q *queries) ActiveTransferRule(ctx context.Context, from, to quota.LeaveType) (*quota.TransferRule, error) {
	rules, err := q.queryTransferRules(ctx,
		"SELECT "+transferRuleColumns+" FROM transfer_rules WHERE from_type = ? AND to_type = ? AND is_active = 1 ORDER BY id LIMIT 1",
		string(from), string(to))
	if err != nil || len(rules) == 0 {
		return nil, err
	}
	return &rules[0], nil
}

func (q *queries) ListTransferRules(ctx context.Context) ([]quota.TransferRule, error) {
	return q.queryTransferRules(ctx, "SELECT "+transferRuleColumns+" FROM transfer_rules ORDER BY id")
}

func (q *queries) SaveTransferRule(ctx context.Context, r quota.TransferRule) error {
	var pct sql.NullString
	if r.MaxTransferPercentage != nil {
		pct = sql.NullString{String: r.MaxTransferPercentage.String(), Valid: true}
	}
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO transfer_rules (`+transferRuleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			from_type = excluded.from_type,
			to_type = excluded.to_type,
			conversion_rate = excluded.conversion_rate,
			max_transfer_days = excluded.max_transfer_days,
			max_transfer_percentage = excluded.max_transfer_percentage,
			minimum_remaining_days = excluded.minimum_remaining_days,
			requires_approval = excluded.requires_approval,
			is_active = excluded.is_active`,
		r.ID, string(r.FromType), string(r.ToType), r.ConversionRate.String(),
		nullInt(r.MaxTransferDays), pct, nullInt(r.MinimumRemainingDays),
		boolInt(r.RequiresApproval), boolInt(r.IsActive),
	)
	return err
}

func (q *queries) queryTransferRules(ctx context.Context, query string, args ...any) ([]quota.TransferRule, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []quota.TransferRule
	for rows.Next() {
		var r quota.TransferRule
		var from, to, rate string
		var maxDays, minRemaining sql.NullInt64
		var pct sql.NullString
		var approval, active int

		if err := rows.Scan(&r.ID, &from, &to, &rate, &maxDays, &pct, &minRemaining, &approval, &active); err != nil {
			return nil, err
		}
		r.FromType = quota.LeaveType(from)
		r.ToType = quota.LeaveType(to)
		if r.ConversionRate, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("corrupt conversion rate on rule %s: %w", r.ID, err)
		}
		r.MaxTransferDays = intPtr(maxDays)
		r.MinimumRemainingDays = intPtr(minRemaining)
		if pct.Valid {
			p, err := decimal.NewFromString(pct.String)
			if err != nil {
				return nil, fmt.Errorf("corrupt percentage on rule %s: %w", r.ID, err)
			}
			r.MaxTransferPercentage = &p
		}
		r.RequiresApproval = approval == 1
		r.IsActive = active == 1
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *queries) ActiveCarryOverRule(ctx context.Context, lt quota.LeaveType) (*quota.CarryOverRule, error) {
	var r quota.CarryOverRule
	var ruleType, value string
	var maxDays sql.NullInt64
	var approval, active int

	err := q.q.QueryRowContext(ctx, `
		SELECT id, leave_type, rule_type, value, max_carryover_days, expiry_months, requires_approval, is_active
		FROM carryover_rules WHERE leave_type = ? AND is_active = 1 ORDER BY id LIMIT 1`,
		string(lt),
	).Scan(&r.ID, &r.LeaveType, &ruleType, &value, &maxDays, &r.ExpiryMonths, &approval, &active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r.RuleType = quota.CarryOverRuleType(ruleType)
	if r.Value, err = decimal.NewFromString(value); err != nil {
		return nil, fmt.Errorf("corrupt value on carry-over rule %s: %w", r.ID, err)
	}
	r.MaxCarryOverDays = intPtr(maxDays)
	r.RequiresApproval = approval == 1
	r.IsActive = active == 1
	return &r, nil
}

func (q *queries) SaveCarryOverRule(ctx context.Context, r quota.CarryOverRule) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO carryover_rules (id, leave_type, rule_type, value, max_carryover_days, expiry_months, requires_approval, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			leave_type = excluded.leave_type,
			rule_type = excluded.rule_type,
			value = excluded.value,
			max_carryover_days = excluded.max_carryover_days,
			expiry_months = excluded.expiry_months,
			requires_approval = excluded.requires_approval,
			is_active = excluded.is_active`,
		r.ID, string(r.LeaveType), string(r.RuleType), r.Value.String(), nullInt(r.MaxCarryOverDays),
		r.ExpiryMonths, boolInt(r.RequiresApproval), boolInt(r.IsActive),
	)
	return err
}

// =============================================================================
// LEDGER
// =============================================================================

func (q *queries) AppendTransactions(ctx context.Context, txs []quota.Transaction) error {
	for _, tx := range txs {
		_, err := q.q.ExecContext(ctx, `
			INSERT INTO quota_transactions
			(id, user_id, period_id, leave_type, delta, tx_type, reference_id, reason, idempotency_key, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tx.ID, string(tx.UserID), string(tx.PeriodID), string(tx.LeaveType), tx.Delta.String(),
			string(tx.Type), nullString(tx.ReferenceID), nullString(tx.Reason),
			nullString(tx.IdempotencyKey), formatTime(tx.CreatedAt),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return generic.ErrDuplicateIdempotencyKey
			}
			return fmt.Errorf("failed to insert transaction %s: %w", tx.ID, err)
		}
	}
	return nil
}

func (q *queries) ListTransactions(ctx context.Context, userID generic.UserID, periodID generic.PeriodID) ([]quota.Transaction, error) {
	query := `SELECT id, period_id, leave_type, delta, tx_type, reference_id, reason, idempotency_key, created_at
		FROM quota_transactions WHERE user_id = ?`
	args := []any{string(userID)}
	if periodID != "" {
		query += " AND period_id = ?"
		args = append(args, string(periodID))
	}
	query += " ORDER BY created_at, rowid"

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []quota.Transaction
	for rows.Next() {
		tx := quota.Transaction{UserID: userID}
		var period, leaveType, delta, txType, createdAt string
		var ref, reason, key sql.NullString

		if err := rows.Scan(&tx.ID, &period, &leaveType, &delta, &txType, &ref, &reason, &key, &createdAt); err != nil {
			return nil, err
		}
		if tx.Delta, err = decimal.NewFromString(delta); err != nil {
			return nil, fmt.Errorf("corrupt delta on transaction %s: %w", tx.ID, err)
		}
		tx.PeriodID = generic.PeriodID(period)
		tx.LeaveType = quota.LeaveType(leaveType)
		tx.Type = quota.TxType(txType)
		tx.ReferenceID = ref.String
		tx.Reason = reason.String
		tx.IdempotencyKey = key.String
		tx.CreatedAt = parseTime(createdAt)
		out = append(out, tx)
	}
	return out, rows.Err()
}

// =============================================================================
// TRANSFERS
// =============================================================================

const transferColumns = `id, user_id, period_id, from_type, to_type, days, rule_id, resulting_days,
	conversion_rate, status, requested_by, decided_by, rejection_reason, idempotency_key, created_at, decided_at`

func (q *queries) GetTransfer(ctx context.Context, id string) (*quota.Transfer, error) {
	out, err := q.queryTransfers(ctx, "SELECT "+transferColumns+" FROM quota_transfers WHERE id = ?", id)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}

func (q *queries) SaveTransfer(ctx context.Context, t quota.Transfer) error {
	var decidedAt sql.NullString
	if t.DecidedAt != nil {
		decidedAt = sql.NullString{String: formatTime(*t.DecidedAt), Valid: true}
	}
	req := t.Request

	_, err := q.q.ExecContext(ctx, `
		INSERT INTO quota_transfers (`+transferColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			resulting_days = excluded.resulting_days,
			conversion_rate = excluded.conversion_rate,
			status = excluded.status,
			decided_by = excluded.decided_by,
			rejection_reason = excluded.rejection_reason,
			decided_at = excluded.decided_at`,
		t.ID, string(req.UserID), string(req.PeriodID), string(req.FromType), string(req.ToType),
		req.Days.String(), t.RuleID, t.ResultingDays.String(), t.ConversionRate.String(),
		string(t.Status), nullString(t.RequestedBy), nullString(t.DecidedBy),
		nullString(t.RejectionReason), nullString(t.IdempotencyKey), formatTime(t.CreatedAt), decidedAt,
	)
	if isUniqueConstraintError(err) {
		return generic.ErrDuplicateIdempotencyKey
	}
	return err
}

// ListTransfers filters by status; an empty status returns every transfer.
func (q *queries) ListTransfers(ctx context.Context, status quota.TransferStatus) ([]quota.Transfer, error) {
	if status == "" {
		return q.queryTransfers(ctx, "SELECT "+transferColumns+" FROM quota_transfers ORDER BY created_at, id")
	}
	return q.queryTransfers(ctx,
		"SELECT "+transferColumns+" FROM quota_transfers WHERE status = ? ORDER BY created_at, id", string(status))
}

func (q *queries) queryTransfers(ctx context.Context, query string, args ...any) ([]quota.Transfer, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []quota.Transfer
	for rows.Next() {
		var t quota.Transfer
		var user, period, from, to, days, resulting, rate, status, createdAt string
		var requestedBy, decidedBy, reason, key, decidedAt sql.NullString

		if err := rows.Scan(&t.ID, &user, &period, &from, &to, &days, &t.RuleID, &resulting, &rate,
			&status, &requestedBy, &decidedBy, &reason, &key, &createdAt, &decidedAt); err != nil {
			return nil, err
		}

		t.Request = quota.TransferRequest{
			UserID:   generic.UserID(user),
			PeriodID: generic.PeriodID(period),
			FromType: quota.LeaveType(from),
			ToType:   quota.LeaveType(to),
		}
		if t.Request.Days, err = decimal.NewFromString(days); err != nil {
			return nil, fmt.Errorf("corrupt days on transfer %s: %w", t.ID, err)
		}
		if t.ResultingDays, err = decimal.NewFromString(resulting); err != nil {
			return nil, fmt.Errorf("corrupt resulting days on transfer %s: %w", t.ID, err)
		}
		if t.ConversionRate, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("corrupt rate on transfer %s: %w", t.ID, err)
		}
		t.Status = quota.TransferStatus(status)
		t.RequestedBy = requestedBy.String
		t.DecidedBy = decidedBy.String
		t.RejectionReason = reason.String
		t.IdempotencyKey = key.String
		t.CreatedAt = parseTime(createdAt)
		if decidedAt.Valid {
			at := parseTime(decidedAt.String)
			t.DecidedAt = &at
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
