package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ykvlv/cf-streak-bot/internal/domain"
)

// JSONRepo keeps all records in memory and rewrites one JSON snapshot file on every
// mutation. Fine for a few thousand users; every write costs O(users).
type JSONRepo struct {
	path      string
	defaultTZ string

	mu    sync.Mutex
	users map[string]*domain.UserRecord
}

// OpenJSON loads the snapshot at path, or starts empty when the file does not exist.
func OpenJSON(path, defaultTZ string) (*JSONRepo, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	r := &JSONRepo{path: path, defaultTZ: defaultTZ, users: map[string]*domain.UserRecord{}}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return r, nil
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	case len(data) == 0:
		return r, nil
	}
	users, err := domain.UnmarshalSnapshot(data, defaultTZ)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	r.users = users
	return r, nil
}

// Close is a no-op; every mutation is already on disk.
func (r *JSONRepo) Close() error { return nil }

func (r *JSONRepo) Get(_ context.Context, userID string) (*domain.UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return u.Clone(), nil
}

func (r *JSONRepo) Upsert(_ context.Context, userID string, mutate Mutator) (*domain.UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, existed := r.users[userID]
	next := domain.NewUserRecord(r.defaultTZ)
	if existed {
		next = prev.Clone()
	}
	if mutate != nil {
		mutate(next)
	}
	r.users[userID] = next

	if err := r.writeLocked(); err != nil {
		if existed {
			r.users[userID] = prev
		} else {
			delete(r.users, userID)
		}
		return nil, err
	}
	return next.Clone(), nil
}

func (r *JSONRepo) All(_ context.Context) ([]domain.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Entry, 0, len(r.users))
	for id, u := range r.users {
		out = append(out, domain.Entry{UserID: id, Record: u.Clone()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r *JSONRepo) Persist(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeLocked()
}

// writeLocked replaces the snapshot file atomically: temp file in the same
// directory, fsync, rename.
func (r *JSONRepo) writeLocked() error {
	data, err := domain.MarshalSnapshot(r.users)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("persist: %w", err)
	}
	// CreateTemp opens with 0600; the snapshot keeps the usual 0644.
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("persist: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("persist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("persist: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		cleanup()
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}
