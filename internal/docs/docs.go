// Package docs holds the in-memory document collection that grounds chat
// responses, mirrored to local persistence on every mutation.
package docs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Key under which the whole collection is persisted.
const storeKey = "documents"

// Document statuses.
const (
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusError      = "error"
)

var ErrDuplicateID = errors.New("document id already exists")

// Document is one unit of grounding context. Embedding is carried for
// record compatibility but never populated.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`
	Type      string    `json:"type"`
	Size      int64     `json:"size"`
}

// Persister is the slice of the persistence adapter the store needs.
type Persister interface {
	Save(ctx context.Context, key string, value interface{}) error
	Load(ctx context.Context, key string, dest interface{}) (bool, error)
}

// Store keeps documents in insertion order and mirrors every mutation
// to the persistence adapter under a fixed key.
type Store struct {
	mu        sync.RWMutex
	documents []Document
	persister Persister
	logger    *zap.SugaredLogger
}

func NewStore(persister Persister, logger *zap.SugaredLogger) *Store {
	return &Store{
		persister: persister,
		logger:    logger,
	}
}

// Hydrate loads the persisted collection. An absent or malformed record
// leaves the store empty without error.
func (s *Store) Hydrate(ctx context.Context) error {
	var docs []Document
	found, err := s.persister.Load(ctx, storeKey, &docs)
	if err != nil {
		return fmt.Errorf("hydrate documents: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if found {
		s.documents = docs
	}
	s.logger.Infow("document store hydrated", "count", len(s.documents))
	return nil
}

// Add appends a document. The ID must be unique across the collection.
// A persistence failure is returned but the in-memory state is already
// updated; callers treat it as a degraded-mode warning.
func (s *Store) Add(ctx context.Context, doc Document) error {
	s.mu.Lock()
	for _, existing := range s.documents {
		if existing.ID == doc.ID {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrDuplicateID, doc.ID)
		}
	}
	s.documents = append(s.documents, doc)
	s.mu.Unlock()

	s.logger.Infow("document added",
		"id", doc.ID,
		"title", doc.Title,
		"status", doc.Status,
		"size", doc.Size,
	)
	return s.persist(ctx)
}

// Remove deletes the document with the given id. Removing an absent id
// is a no-op.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	kept := s.documents[:0]
	for _, doc := range s.documents {
		if doc.ID != id {
			kept = append(kept, doc)
		}
	}
	s.documents = kept
	s.mu.Unlock()

	s.logger.Infow("document removed", "id", id)
	return s.persist(ctx)
}

// Clear drops the whole collection.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.documents = nil
	s.mu.Unlock()

	s.logger.Infow("document store cleared")
	return s.persist(ctx)
}

func (s *Store) GetByID(id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doc := range s.documents {
		if doc.ID == id {
			return doc, true
		}
	}
	return Document{}, false
}

// List returns a copy of the collection in insertion order.
func (s *Store) List() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Document, len(s.documents))
	copy(out, s.documents)
	return out
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.RLock()
	docs := make([]Document, len(s.documents))
	copy(docs, s.documents)
	s.mu.RUnlock()

	if err := s.persister.Save(ctx, storeKey, docs); err != nil {
		s.logger.Warnw("failed to persist documents", "error", err)
		return fmt.Errorf("persist documents: %w", err)
	}
	return nil
}
