package results

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryRepo stores documents in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{docs: make(map[string]Document)}
}

// Put stores a copy of doc, replacing any previous one for the same user.
func (r *MemoryRepo) Put(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.UserID] = cloneDocument(doc)
	return nil
}

// Get returns the user's document or ErrNotFound.
func (r *MemoryRepo) Get(ctx context.Context, userID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[userID]
	if !ok {
		return Document{}, ErrNotFound
	}
	return cloneDocument(doc), nil
}

func cloneDocument(doc Document) Document {
	out := doc
	out.Results = make([]json.RawMessage, len(doc.Results))
	for i, raw := range doc.Results {
		out.Results[i] = append(json.RawMessage(nil), raw...)
	}
	return out
}

var _ Repo = (*MemoryRepo)(nil)
