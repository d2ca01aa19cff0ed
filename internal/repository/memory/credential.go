// Package memory provides an in-process CredentialStore.
//
// It is what the client uses when no database path is configured (nothing
// survives a restart) and what most tests use.
package memory

import (
	"context"
	"sync"

	"github.com/sakif/clint-crypto/internal/repository"
)

var _ repository.CredentialStore = (*CredentialStore)(nil)

type CredentialStore struct {
	mu    sync.RWMutex
	token string
}

// NewCredentialStore returns a store pre-loaded with token ("" for empty).
func NewCredentialStore(token string) *CredentialStore {
	return &CredentialStore{token: token}
}

func (s *CredentialStore) Get(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *CredentialStore) Set(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *CredentialStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}
