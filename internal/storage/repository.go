package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"totalx/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

// sqliteDSN enables WAL and a busy timeout so readers never fail on a
// concurrent writer.
func sqliteDSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := sqliteDSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer connection; per-store ordering is enforced above us.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Append implements MovementStore
func (r *SQLiteRepository) Append(ctx context.Context, key core.StoreKey, m core.Movement) (core.Movement, error) {
	if err := m.Validate(); err != nil {
		return core.Movement{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO movements (store_key, principal, amount_cents, created_at) VALUES (?, ?, ?, ?)`,
		key.String(), m.Principal.String(), m.Amount.Cents(), m.Timestamp.UTC().Format(TimeFormat))
	if err != nil {
		return core.Movement{}, fmt.Errorf("insert movement: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Movement{}, fmt.Errorf("movement id: %w", err)
	}
	m.ID = id

	slog.DebugContext(ctx, "Movement saved to SQLite",
		"id", m.ID,
		"store_key", key.String(),
		"principal", m.Principal,
		"amount_cents", m.Amount.Cents())

	return m, nil
}

// ReadAll implements MovementStore
func (r *SQLiteRepository) ReadAll(ctx context.Context, key core.StoreKey) ([]core.Movement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, principal, amount_cents, created_at FROM movements WHERE store_key = ? ORDER BY id`,
		key.String())
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	defer rows.Close()

	movements := make([]core.Movement, 0)
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movements: %w", err)
	}
	return movements, nil
}

// UndoLast implements MovementStore
func (r *SQLiteRepository) UndoLast(ctx context.Context, key core.StoreKey) (core.Movement, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Movement{}, false, fmt.Errorf("begin undo: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT id, principal, amount_cents, created_at FROM movements WHERE store_key = ? ORDER BY id DESC LIMIT 1`,
		key.String())
	m, err := scanMovement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Movement{}, false, nil
	}
	if err != nil {
		return core.Movement{}, false, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM movements WHERE id = ?`, m.ID); err != nil {
		return core.Movement{}, false, fmt.Errorf("delete movement: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Movement{}, false, fmt.Errorf("commit undo: %w", err)
	}

	slog.InfoContext(ctx, "Movement removed from SQLite", "id", m.ID, "store_key", key.String())
	return m, true, nil
}

// Reset implements MovementStore
func (r *SQLiteRepository) Reset(ctx context.Context, key core.StoreKey) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM movements WHERE store_key = ?`, key.String())
	if err != nil {
		return fmt.Errorf("delete movements: %w", err)
	}
	n, _ := res.RowsAffected()
	slog.InfoContext(ctx, "Store reset in SQLite", "store_key", key.String(), "removed", n)
	return nil
}

// Keys implements MovementStore
func (r *SQLiteRepository) Keys(ctx context.Context) ([]core.StoreKey, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT store_key FROM movements ORDER BY store_key`)
	if err != nil {
		return nil, fmt.Errorf("query store keys: %w", err)
	}
	defer rows.Close()

	var keys []core.StoreKey
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan store key: %w", err)
		}
		key, err := core.ParseStoreKey(raw)
		if err != nil {
			slog.WarnContext(ctx, "Skipping unparsable store key", "store_key", raw, "error", err)
			continue
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// ListAdmins implements AdminStore
func (r *SQLiteRepository) ListAdmins(ctx context.Context) ([]core.Identity, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT identity FROM admins ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query admins: %w", err)
	}
	defer rows.Close()

	var admins []core.Identity
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		admins = append(admins, core.Identity(raw))
	}
	return admins, rows.Err()
}

// AddAdmin implements AdminStore
func (r *SQLiteRepository) AddAdmin(ctx context.Context, id, grantedBy core.Identity) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admins (identity, granted_by, granted_at) VALUES (?, ?, ?) ON CONFLICT (identity) DO NOTHING`,
		id.String(), grantedBy.String(), time.Now().UTC().Format(TimeFormat))
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

// RemoveAdmin implements AdminStore
func (r *SQLiteRepository) RemoveAdmin(ctx context.Context, id core.Identity) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM admins WHERE identity = ?`, id.String()); err != nil {
		return fmt.Errorf("delete admin: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovement(row rowScanner) (core.Movement, error) {
	var (
		m         core.Movement
		principal string
		cents     int64
		createdAt string
	)
	if err := row.Scan(&m.ID, &principal, &cents, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Movement{}, err
		}
		return core.Movement{}, fmt.Errorf("scan movement: %w", err)
	}
	ts, err := time.Parse(TimeFormat, createdAt)
	if err != nil {
		return core.Movement{}, fmt.Errorf("parse movement timestamp %q: %w", createdAt, err)
	}
	m.Principal = core.Identity(principal)
	m.Amount = core.MoneyFromCents(cents)
	m.Timestamp = ts
	return m, nil
}
