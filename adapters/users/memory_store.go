package users

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/webnote/core"
	"github.com/layer-3/webnote/ports"
)

// MemoryStore is an in-memory implementation of the UserStore interface
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]core.User
	order []string
	now   func() time.Time
}

// NewMemoryStore creates a new in-memory user store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]core.User),
		now:   time.Now,
	}
}

var _ ports.UserStore = (*MemoryStore)(nil)

func (s *MemoryStore) GetByID(ctx context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	return &u, nil
}

func (s *MemoryStore) GetByName(ctx context.Context, name string) (*core.User, error) {
	return s.find(func(u *core.User) bool { return u.Name == name })
}

func (s *MemoryStore) GetByExternalSubject(ctx context.Context, provider core.PrincipalType, subject string) (*core.User, error) {
	if subject == "" {
		return nil, core.ErrUserNotFound
	}
	return s.find(func(u *core.User) bool { return u.ExternalSubject(provider) == subject })
}

// Save inserts or updates the user
func (s *MemoryStore) Save(ctx context.Context, u *core.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range []core.PrincipalType{core.PrincipalOIDC, core.PrincipalGithub, core.PrincipalEthers} {
		subject := u.ExternalSubject(p)
		if subject == "" {
			continue
		}
		for id, other := range s.users {
			if id != u.ID && other.ExternalSubject(p) == subject {
				return "", fmt.Errorf("%s subject %q already linked to another user", p, subject)
			}
		}
	}

	now := s.now().UTC()
	if u.ID == "" {
		u.ID = uuid.NewString()
		u.CreatedAt = now
		s.order = append(s.order, u.ID)
	} else if _, ok := s.users[u.ID]; !ok {
		return "", fmt.Errorf("failed to update user: %w", core.ErrUserNotFound)
	}
	u.UpdatedAt = now

	s.users[u.ID] = *u
	return u.ID, nil
}

// find returns the oldest user matching fn
func (s *MemoryStore) find(fn func(*core.User) bool) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		u := s.users[id]
		if fn(&u) {
			return &u, nil
		}
	}
	return nil, core.ErrUserNotFound
}
