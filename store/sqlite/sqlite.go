/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements rules.TxStore and quota.TxStore on one SQLite database.
  Store.Rules() and Store.Quota() return views that share the connection
  and the write lock, so a resolution and a transfer never interleave.

INTERFACES IMPLEMENTED:
  rules.TxStore: Rule catalog and conflict resolutions
  quota.TxStore: Balances, transfer/carry-over rules, ledger, transfers

APPEND-ONLY ENFORCEMENT:
  - conflict_resolutions: one row per conflict ID, never updated. The
    primary key turns a second resolution into ErrAlreadyResolved.
  - quota_transactions: no UPDATE or DELETE. Balances are running totals
    written in the same transaction as their ledger entries.

KEY TABLES:
  rules:                Rule catalog (definition stored as factory JSON)
  conflict_resolutions: How each conflict was settled
  leave_balances:       Current days per (user, period, leave type)
  transfer_rules:       Conversion rules per (from, to) pair
  carryover_rules:      Year-end carry-over rules per leave type
  quota_transactions:   Immutable ledger of balance changes
  quota_transfers:      Committed transfers and their approval state

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole SQL transaction.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/planning.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  resolver := rules.NewResolver(store.Rules(), rules.NewDetector(nil), logger)
  transfers := quota.NewTransferService(store.Quota(), logger)

SEE ALSO:
  - rules/store.go, quota/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
  - factory/rule.go: Rule JSON representation
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/planning-engine/factory"
)

// Store owns the database connection and the lock shared by its views.
type Store struct {
	db    *sql.DB
	mu    sync.RWMutex
	rules *factory.RuleFactory
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, rules: factory.NewRuleFactory()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Rules() *RuleStore  { return &RuleStore{s: s} }
func (s *Store) Quota() *QuotaStore { return &QuotaStore{s: s} }

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Rule catalog
	CREATE TABLE IF NOT EXISTS rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		status TEXT NOT NULL,
		priority INTEGER NOT NULL DEFAULT 0,
		definition_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rules_status ON rules(status);

	-- Conflict resolutions (append-only, one per conflict)
	CREATE TABLE IF NOT EXISTS conflict_resolutions (
		conflict_id TEXT PRIMARY KEY,
		rule_a TEXT NOT NULL,
		rule_b TEXT NOT NULL,
		strategy TEXT NOT NULL,
		severity TEXT NOT NULL,
		details_json TEXT NOT NULL,
		resolved_by TEXT,
		resolved_at TEXT NOT NULL
	);

	-- Leave balances (running totals)
	CREATE TABLE IF NOT EXISTS leave_balances (
		user_id TEXT NOT NULL,
		period_id TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		current_balance TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, period_id, leave_type)
	);

	-- Transfer rules
	CREATE TABLE IF NOT EXISTS transfer_rules (
		id TEXT PRIMARY KEY,
		from_type TEXT NOT NULL,
		to_type TEXT NOT NULL,
		conversion_rate TEXT NOT NULL,
		max_transfer_days INTEGER,
		max_transfer_percentage TEXT,
		minimum_remaining_days INTEGER,
		requires_approval INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_transfer_rules_pair
		ON transfer_rules(from_type, to_type) WHERE is_active = 1;

	-- Carry-over rules
	CREATE TABLE IF NOT EXISTS carryover_rules (
		id TEXT PRIMARY KEY,
		leave_type TEXT NOT NULL,
		rule_type TEXT NOT NULL,
		value TEXT NOT NULL,
		max_carryover_days INTEGER,
		expiry_months INTEGER NOT NULL DEFAULT 0,
		requires_approval INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	-- Quota ledger (append-only)
	CREATE TABLE IF NOT EXISTS quota_transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		period_id TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		delta TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_quota_transactions_user_period
		ON quota_transactions(user_id, period_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_quota_transactions_reference
		ON quota_transactions(reference_id) WHERE reference_id IS NOT NULL;

	-- Transfers
	CREATE TABLE IF NOT EXISTS quota_transfers (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		period_id TEXT NOT NULL,
		from_type TEXT NOT NULL,
		to_type TEXT NOT NULL,
		days TEXT NOT NULL,
		rule_id TEXT NOT NULL,
		resulting_days TEXT NOT NULL,
		conversion_rate TEXT NOT NULL,
		status TEXT NOT NULL,
		requested_by TEXT,
		decided_by TEXT,
		rejection_reason TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL,
		decided_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_quota_transfers_status ON quota_transfers(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds the unlocked operations of both views, run against the
// database or an open transaction.
type queries struct {
	q     queryer
	rules *factory.RuleFactory
}

func (s *Store) direct() *queries {
	return &queries{q: s.db, rules: s.rules}
}

// withTx executes fn within a database transaction.
func (s *Store) withTx(ctx context.Context, fn func(*queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{q: sqlTx, rules: s.rules}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
