package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/warp/planning-engine/generic"
	"github.com/warp/planning-engine/rules"
)

// =============================================================================
// RULE STORE (rules.TxStore interface)
// =============================================================================

// RuleStore is the rules view of a Store.
type RuleStore struct {
	s *Store
}

var _ rules.TxStore = (*RuleStore)(nil)

// WithTx runs fn inside one SQL transaction under the store write lock.
func (rs *RuleStore) WithTx(ctx context.Context, fn func(rules.Store) error) error {
	return rs.s.withTx(ctx, func(q *queries) error { return fn(q) })
}

func (rs *RuleStore) GetRule(ctx context.Context, id string) (*rules.Rule, error) {
	rs.s.mu.RLock()
	defer rs.s.mu.RUnlock()
	return rs.s.direct().GetRule(ctx, id)
}

func (rs *RuleStore) ListRules(ctx context.Context) ([]rules.Rule, error) {
	rs.s.mu.RLock()
	defer rs.s.mu.RUnlock()
	return rs.s.direct().ListRules(ctx)
}

func (rs *RuleStore) SaveRule(ctx context.Context, r rules.Rule) error {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()
	return rs.s.direct().SaveRule(ctx, r)
}

func (rs *RuleStore) DeleteRule(ctx context.Context, id string) error {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()
	return rs.s.direct().DeleteRule(ctx, id)
}

func (rs *RuleStore) GetResolution(ctx context.Context, conflictID string) (*rules.Resolution, error) {
	rs.s.mu.RLock()
	defer rs.s.mu.RUnlock()
	return rs.s.direct().GetResolution(ctx, conflictID)
}

func (rs *RuleStore) SaveResolution(ctx context.Context, res rules.Resolution) error {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()
	return rs.s.direct().SaveResolution(ctx, res)
}

func (rs *RuleStore) ListResolutions(ctx context.Context) ([]rules.Resolution, error) {
	rs.s.mu.RLock()
	defer rs.s.mu.RUnlock()
	return rs.s.direct().ListResolutions(ctx)
}

// =============================================================================
// RULES
// =============================================================================

func (q *queries) GetRule(ctx context.Context, id string) (*rules.Rule, error) {
	var def, createdAt, updatedAt string
	err := q.q.QueryRowContext(ctx,
		"SELECT definition_json, created_at, updated_at FROM rules WHERE id = ?", id,
	).Scan(&def, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return q.decodeRule(def, createdAt, updatedAt)
}

func (q *queries) ListRules(ctx context.Context) ([]rules.Rule, error) {
	rows, err := q.q.QueryContext(ctx,
		"SELECT definition_json, created_at, updated_at FROM rules ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rules.Rule
	for rows.Next() {
		var def, createdAt, updatedAt string
		if err := rows.Scan(&def, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		r, err := q.decodeRule(def, createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (q *queries) SaveRule(ctx context.Context, r rules.Rule) error {
	def, err := json.Marshal(q.rules.ToJSON(r))
	if err != nil {
		return fmt.Errorf("failed to encode rule %s: %w", r.ID, err)
	}

	query := `
		INSERT INTO rules (id, name, category, status, priority, definition_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			status = excluded.status,
			priority = excluded.priority,
			definition_json = excluded.definition_json,
			updated_at = excluded.updated_at
	`
	_, err = q.q.ExecContext(ctx, query,
		r.ID, r.Name, string(r.Category()), string(r.Status), r.Priority, string(def),
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	return err
}

func (q *queries) DeleteRule(ctx context.Context, id string) error {
	res, err := q.q.ExecContext(ctx, "DELETE FROM rules WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &generic.NotFoundError{Kind: "rule", ID: id}
	}
	return nil
}

func (q *queries) decodeRule(def, createdAt, updatedAt string) (*rules.Rule, error) {
	r, err := q.rules.ParseRule(def)
	if err != nil {
		return nil, fmt.Errorf("stored rule is corrupt: %w", err)
	}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}

// =============================================================================
// RESOLUTIONS
// =============================================================================

const resolutionColumns = "conflict_id, rule_a, rule_b, strategy, severity, details_json, resolved_by, resolved_at"

func (q *queries) GetResolution(ctx context.Context, conflictID string) (*rules.Resolution, error) {
	rows, err := q.q.QueryContext(ctx,
		"SELECT "+resolutionColumns+" FROM conflict_resolutions WHERE conflict_id = ?", conflictID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	res, err := scanResolution(rows)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (q *queries) SaveResolution(ctx context.Context, res rules.Resolution) error {
	details, err := json.Marshal(res.Details)
	if err != nil {
		return fmt.Errorf("failed to encode resolution details: %w", err)
	}

	_, err = q.q.ExecContext(ctx,
		"INSERT INTO conflict_resolutions ("+resolutionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		res.ConflictID, res.RuleIDs[0], res.RuleIDs[1], string(res.Strategy), string(res.Severity),
		string(details), nullString(res.ResolvedBy), formatTime(res.ResolvedAt),
	)
	if isUniqueConstraintError(err) {
		return generic.ErrAlreadyResolved
	}
	return err
}

func (q *queries) ListResolutions(ctx context.Context) ([]rules.Resolution, error) {
	rows, err := q.q.QueryContext(ctx,
		"SELECT "+resolutionColumns+" FROM conflict_resolutions ORDER BY resolved_at, conflict_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rules.Resolution
	for rows.Next() {
		res, err := scanResolution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func scanResolution(rows *sql.Rows) (rules.Resolution, error) {
	var res rules.Resolution
	var strategy, severity, details, resolvedAt string
	var resolvedBy sql.NullString

	if err := rows.Scan(&res.ConflictID, &res.RuleIDs[0], &res.RuleIDs[1], &strategy, &severity,
		&details, &resolvedBy, &resolvedAt); err != nil {
		return res, err
	}
	if err := json.Unmarshal([]byte(details), &res.Details); err != nil {
		return res, fmt.Errorf("failed to decode resolution details: %w", err)
	}
	res.Strategy = rules.Strategy(strategy)
	res.Severity = rules.Severity(severity)
	res.ResolvedBy = resolvedBy.String
	res.ResolvedAt = parseTime(resolvedAt)
	return res, nil
}
