package revocation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrInvalidTokenID is returned for an empty jti.
var ErrInvalidTokenID = errors.New("invalid token id")

// Store is a deny list of token identifiers.
type Store interface {
	// IsRevoked reports whether jti is on the deny list.
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// Revoke adds jti until the given instant. A past instant is a no-op.
	Revoke(ctx context.Context, jti string, until time.Time) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryStore returns an empty store. A nil clock defaults to time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		entries: make(map[string]time.Time),
		now:     now,
	}
}

// IsRevoked reports whether jti is denied at the store clock's current time.
func (s *MemoryStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	until, ok := s.entries[jti]
	s.mu.RUnlock()
	return ok && s.now().Before(until), nil
}

// Revoke denies jti until the given time, keeping the later deadline if one exists.
func (s *MemoryStore) Revoke(ctx context.Context, jti string, until time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(jti) == "" {
		return ErrInvalidTokenID
	}
	now := s.now()
	if !until.After(now) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[jti]; !ok || until.After(cur) {
		s.entries[jti] = until
	}
	for id, exp := range s.entries {
		if !now.Before(exp) {
			delete(s.entries, id)
		}
	}
	return nil
}

// Len returns the number of entries, expired ones included until the next Revoke.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
