// Package session remembers who is using the assistant between runs.
// The record is a convenience for the UI: nothing verifies it and no
// access control is built on it.
package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

const storeKey = "session"

// Identity is the remembered user record.
type Identity struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	Authenticated bool   `json:"isAuthenticated"`
}

// Persister is the slice of the persistence adapter the manager needs.
type Persister interface {
	Save(ctx context.Context, key string, value interface{}) error
	Load(ctx context.Context, key string, dest interface{}) (bool, error)
	Delete(ctx context.Context, key string) error
}

type Manager struct {
	persister Persister
	logger    *zap.SugaredLogger
}

func NewManager(persister Persister, logger *zap.SugaredLogger) *Manager {
	return &Manager{persister: persister, logger: logger}
}

// Login records the identity. Any submission succeeds; there is no
// credential to check.
func (m *Manager) Login(ctx context.Context, email, name string) (Identity, error) {
	id := Identity{Email: email, Name: name, Authenticated: true}
	if err := m.persister.Save(ctx, storeKey, id); err != nil {
		return Identity{}, fmt.Errorf("save session: %w", err)
	}
	m.logger.Infow("session started", "email", email)
	return id, nil
}

// Logout forgets the identity.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.persister.Delete(ctx, storeKey); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	m.logger.Infow("session ended")
	return nil
}

// Current returns the remembered identity. A missing or malformed
// record reads as absent.
func (m *Manager) Current(ctx context.Context) (Identity, bool, error) {
	var id Identity
	found, err := m.persister.Load(ctx, storeKey, &id)
	if err != nil {
		return Identity{}, false, fmt.Errorf("load session: %w", err)
	}
	return id, found, nil
}
