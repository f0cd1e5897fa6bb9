package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"quizplay/internal/domain"
)

// SnapshotStore is the single-slot local persistence for the identity (file, Redis, memory).
type SnapshotStore interface {
	Read(ctx context.Context) (domain.Identity, bool, error)
	Write(ctx context.Context, identity domain.Identity) error
	Erase(ctx context.Context) error
}

// IdentityService resolves the authoritative identity for a token.
type IdentityService interface {
	GetIdentity(ctx context.Context, id, token string) (domain.Identity, error)
}

// SessionStore owns the local mirror of the authenticated identity.
// It is the only writer of the snapshot store.
type SessionStore struct {
	snapshots  SnapshotStore
	identities IdentityService
	logger     *slog.Logger

	mu      sync.RWMutex
	current *domain.Identity
}

func NewSessionStore(snapshots SnapshotStore, identities IdentityService, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{snapshots: snapshots, identities: identities, logger: logger}
}

// Load reads the snapshot and reconciles it with the identity service.
// A rejected token or a missing user clears the snapshot and returns ErrSessionInvalid.
func (s *SessionStore) Load(ctx context.Context) (domain.Identity, error) {
	snapshot, ok, err := s.snapshots.Read(ctx)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("read snapshot: %w", err)
	}
	if !ok || !snapshot.Authenticated() {
		return domain.Identity{}, domain.ErrNotAuthenticated
	}

	fresh, err := s.identities.GetIdentity(ctx, snapshot.ID, snapshot.Token)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrNotFound) {
			s.logger.Info("stored session rejected, logging out", "user", snapshot.ID, "err", err)
			if clearErr := s.Clear(ctx); clearErr != nil {
				return domain.Identity{}, errors.Join(fmt.Errorf("%w: %v", domain.ErrSessionInvalid, err), clearErr)
			}
			return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrSessionInvalid, err)
		}
		return domain.Identity{}, fmt.Errorf("refresh identity: %w", err)
	}
	if fresh.Token == "" {
		fresh.Token = snapshot.Token
	}
	if err := s.Persist(ctx, fresh); err != nil {
		return domain.Identity{}, err
	}
	return fresh, nil
}

// Persist replaces the snapshot and the in-memory identity with identity.
// A failed snapshot write is returned, but the in-memory identity is still replaced.
func (s *SessionStore) Persist(ctx context.Context, identity domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx, identity)
}

// Clear removes the snapshot and forgets the in-memory identity.
func (s *SessionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	if err := s.snapshots.Erase(ctx); err != nil {
		return fmt.Errorf("erase snapshot: %w", err)
	}
	return nil
}

// Current returns the in-memory identity, if any.
func (s *SessionStore) Current() (domain.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return domain.Identity{}, false
	}
	return *s.current, true
}

// applyScore persists the current identity with only the score replaced by the server's value.
// The update is dropped when the session was cleared or now belongs to another user.
func (s *SessionStore) applyScore(ctx context.Context, userID string, score int) (domain.Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.ID != userID {
		return domain.Identity{}, false, nil
	}
	next := *s.current
	next.Score = score
	if err := s.persistLocked(ctx, next); err != nil {
		return domain.Identity{}, false, err
	}
	return next, true, nil
}

// persistLocked updates the in-memory identity even when the snapshot write fails.
func (s *SessionStore) persistLocked(ctx context.Context, identity domain.Identity) error {
	s.current = &identity
	if err := s.snapshots.Write(ctx, identity); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
