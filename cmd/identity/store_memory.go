package identity

import (
	"context"
	"sync"
)

// MemoryStore is a dev-only fallback when no database is configured.
type MemoryStore struct {
	mu         sync.RWMutex
	byID       map[string]User
	byUsername map[string]string
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[string]User),
		byUsername: make(map[string]string),
	}
}

func (s *MemoryStore) GetByUsername(ctx context.Context, username string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[NormalizeUsername(username)]
	if !ok {
		return User{}, notFound("identity.GetByUsername")
	}
	return s.byID[id], nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return User{}, notFound("identity.GetByID")
	}
	return u, nil
}

func (s *MemoryStore) Create(ctx context.Context, u User) (User, error) {
	const op = "identity.Create"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if u.ID == "" || u.PasswordHash == "" {
		return User{}, invalid(op, "id and password hash are required")
	}
	u.Username = NormalizeUsername(u.Username)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[u.ID]; ok {
		return User{}, conflict(op, "id")
	}
	if _, ok := s.byUsername[u.Username]; ok {
		return User{}, conflict(op, "username")
	}
	s.byID[u.ID] = u
	s.byUsername[u.Username] = u.ID
	return u, nil
}
