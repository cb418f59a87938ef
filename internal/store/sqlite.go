package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/ykvlv/cf-streak-bot/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct {
	db        *sql.DB
	defaultTZ string
}

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path, defaultTZ string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db, defaultTZ: defaultTZ}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// Persist checkpoints the WAL into the main database file. Individual writes are
// already durable on commit.
func (r *SQLiteRepo) Persist(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE);")
	return err
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Get returns a user's record by id or ErrNotFound.
func (r *SQLiteRepo) Get(ctx context.Context, userID string) (*domain.UserRecord, error) {
	return r.get(ctx, r.db, userID)
}

func (r *SQLiteRepo) get(ctx context.Context, q queryer, userID string) (*domain.UserRecord, error) {
	var (
		handle    sql.NullString
		tz        string
		createdAt int64
		updatedAt int64
	)
	err := q.QueryRowContext(ctx, `
		SELECT handle, timezone, created_at, updated_at
		FROM users
		WHERE user_id = ?`,
		userID,
	).Scan(&handle, &tz, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	u := domain.NewUserRecord(tz)
	if u.Timezone == "" {
		u.Timezone = r.defaultTZ
	}
	u.Handle = handle.String
	u.CreatedAt = fromUnix(createdAt)
	u.UpdatedAt = fromUnix(updatedAt)

	rows, err := q.QueryContext(ctx, `SELECT slot, day FROM last_notified WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var slot, day string
		if err := rows.Scan(&slot, &day); err != nil {
			return nil, err
		}
		u.LastNotified[slot] = day
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return u, nil
}

// Upsert reads the current row, applies mutate and writes it back in one transaction.
func (r *SQLiteRepo) Upsert(ctx context.Context, userID string, mutate Mutator) (*domain.UserRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	u, err := r.get(ctx, tx, userID)
	if errors.Is(err, ErrNotFound) {
		u = domain.NewUserRecord(r.defaultTZ)
		u.CreatedAt = now
	} else if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(u)
	}
	u.UpdatedAt = now

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (user_id, handle, timezone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			handle     = excluded.handle,
			timezone   = excluded.timezone,
			updated_at = excluded.updated_at`,
		userID, toNullString(u.Handle), u.Timezone, u.CreatedAt.Unix(), u.UpdatedAt.Unix(),
	); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM last_notified WHERE user_id = ?`, userID); err != nil {
		return nil, fmt.Errorf("reset last_notified: %w", err)
	}
	for slot, day := range u.LastNotified {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO last_notified (user_id, slot, day) VALUES (?, ?, ?)`,
			userID, slot, day,
		); err != nil {
			return nil, fmt.Errorf("insert last_notified: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return u, nil
}

// All returns every record ordered by user id.
func (r *SQLiteRepo) All(ctx context.Context) ([]domain.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, handle, timezone, created_at, updated_at
		FROM users
		ORDER BY user_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		res   []domain.Entry
		index = map[string]*domain.UserRecord{}
	)
	for rows.Next() {
		var (
			id        string
			handle    sql.NullString
			tz        string
			createdAt int64
			updatedAt int64
		)
		if err := rows.Scan(&id, &handle, &tz, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		u := domain.NewUserRecord(tz)
		if u.Timezone == "" {
			u.Timezone = r.defaultTZ
		}
		u.Handle = handle.String
		u.CreatedAt = fromUnix(createdAt)
		u.UpdatedAt = fromUnix(updatedAt)
		index[id] = u
		res = append(res, domain.Entry{UserID: id, Record: u})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slots, err := r.db.QueryContext(ctx, `SELECT user_id, slot, day FROM last_notified`)
	if err != nil {
		return nil, err
	}
	defer slots.Close()
	for slots.Next() {
		var id, slot, day string
		if err := slots.Scan(&id, &slot, &day); err != nil {
			return nil, err
		}
		if u, ok := index[id]; ok {
			u.LastNotified[slot] = day
		}
	}
	if err := slots.Err(); err != nil {
		return nil, err
	}
	return res, nil
}
