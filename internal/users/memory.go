package users

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryStore struct {
	mu       sync.RWMutex
	byName   map[string]User
	profiles map[string]Profile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byName:   make(map[string]User),
		profiles: make(map[string]Profile),
	}
}

func (s *MemoryStore) Create(_ context.Context, username string, passwordHash []byte) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[username]; ok {
		return User{}, ErrUsernameTaken
	}
	u := User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: append([]byte(nil), passwordHash...),
		CreatedAt:    time.Now().UTC(),
	}
	s.byName[username] = u
	s.profiles[u.ID] = Profile{UserID: u.ID}
	return u, nil
}

func (s *MemoryStore) ByUsername(_ context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byName[username]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) Profile(_ context.Context, userID string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return cloneProfile(p), nil
}

func (s *MemoryStore) SaveProfile(_ context.Context, p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.UserID]; !ok {
		return ErrNotFound
	}
	s.profiles[p.UserID] = cloneProfile(p)
	return nil
}

func cloneProfile(p Profile) Profile {
	if p.Budget != nil {
		b := *p.Budget
		p.Budget = &b
	}
	return p
}
