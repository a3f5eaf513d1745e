// Package postgres is the PostgreSQL movement and admin store.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"totalx/internal/core"
	"totalx/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	db *sql.DB
}

var _ storage.Repository = (*Store)(nil)

// Open connects to dsn, runs the embedded migrations and returns the store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return New(db), nil
}

// New wraps an already migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func runMigrations(db *sql.DB) error {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Append(ctx context.Context, key core.StoreKey, m core.Movement) (core.Movement, error) {
	if err := m.Validate(); err != nil {
		return core.Movement{}, err
	}
	const query = `INSERT INTO movements (store_key, principal, amount_cents, created_at)
	VALUES ($1, $2, $3, $4) RETURNING id`

	err := s.db.QueryRowContext(ctx, query, key.String(), m.Principal.String(), m.Amount.Cents(), m.Timestamp.UTC()).Scan(&m.ID)
	if err != nil {
		return core.Movement{}, fmt.Errorf("insert movement: %w", err)
	}
	return m, nil
}

func (s *Store) ReadAll(ctx context.Context, key core.StoreKey) ([]core.Movement, error) {
	const query = `SELECT id, principal, amount_cents, created_at FROM movements
	WHERE store_key = $1 ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, key.String())
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

func (s *Store) UndoLast(ctx context.Context, key core.StoreKey) (core.Movement, bool, error) {
	// Single statement: the row is selected and deleted atomically.
	const query = `DELETE FROM movements WHERE id = (
		SELECT id FROM movements WHERE store_key = $1 ORDER BY id DESC LIMIT 1 FOR UPDATE
	) RETURNING id, principal, amount_cents, created_at`

	m, err := scanMovement(s.db.QueryRowContext(ctx, query, key.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Movement{}, false, nil
	}
	if err != nil {
		return core.Movement{}, false, err
	}
	slog.InfoContext(ctx, "Movement removed from PostgreSQL", "id", m.ID, "store_key", key.String())
	return m, true, nil
}

func (s *Store) Reset(ctx context.Context, key core.StoreKey) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM movements WHERE store_key = $1`, key.String()); err != nil {
		return fmt.Errorf("delete movements: %w", err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context) ([]core.StoreKey, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT store_key FROM movements ORDER BY store_key`)
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

func (s *Store) ListAdmins(ctx context.Context) ([]core.Identity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT identity FROM admins ORDER BY seq`)
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

func (s *Store) AddAdmin(ctx context.Context, id, grantedBy core.Identity) error {
	const query = `INSERT INTO admins (identity, granted_by, granted_at) VALUES ($1, $2, $3)
	ON CONFLICT (identity) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query, id.String(), grantedBy.String(), time.Now().UTC()); err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

func (s *Store) RemoveAdmin(ctx context.Context, id core.Identity) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM admins WHERE identity = $1`, id.String()); err != nil {
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
	)
	if err := row.Scan(&m.ID, &principal, &cents, &m.Timestamp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Movement{}, err
		}
		return core.Movement{}, fmt.Errorf("scan movement: %w", err)
	}
	m.Principal = core.Identity(principal)
	m.Amount = core.MoneyFromCents(cents)
	return m, nil
}
