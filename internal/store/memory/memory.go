package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hubgate/hubgate/internal/store"
)

// Store is the in-memory adapter used in development and tests.
type Store struct {
	mu            sync.Mutex
	users         map[int64]*store.User
	installations map[int64]installation
	nextID        int
}

type installation struct {
	account store.Account
	status  string
}

func New() *Store {
	return &Store{
		users:         make(map[int64]*store.User),
		installations: make(map[int64]installation),
	}
}

func (s *Store) UpsertUser(_ context.Context, providerID int64, p store.Profile) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if u, ok := s.users[providerID]; ok {
		u.Login = p.Login
		u.Name = p.Name
		u.Email = p.Email
		u.AvatarURL = p.AvatarURL
		u.UpdatedAt = now
		cp := *u
		return &cp, nil
	}

	s.nextID++
	u := &store.User{
		ID:         fmt.Sprintf("user-%d", s.nextID),
		ProviderID: providerID,
		Login:      p.Login,
		Name:       p.Name,
		Email:      p.Email,
		AvatarURL:  p.AvatarURL,
		Tier:       "free",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.users[providerID] = u
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByProviderID(_ context.Context, providerID int64) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[providerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) UpsertInstallation(_ context.Context, installationID int64, account store.Account, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installations[installationID] = installation{account: account, status: status}
	return nil
}
