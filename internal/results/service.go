package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"portfolio-backend/internal/shared/metrics"
	"portfolio-backend/internal/shared/telemetry"
)

// Write sources, used as metric labels.
const (
	SourceIngest   = "ingest"
	SourceSimulate = "simulate"
)

// Snapshot is one observation of a user's results document.
type Snapshot struct {
	Exists   bool
	Document Document
	Err      error
}

// Service owns reads, writes and change subscriptions for results documents.
type Service struct {
	Repo     Repo
	Notifier Notifier
	Now      func() time.Time
}

// NewService constructs a Service. A nil notifier gets an in-process Hub.
func NewService(repo Repo, notifier Notifier) *Service {
	if notifier == nil {
		notifier = NewHub()
	}
	return &Service{Repo: repo, Notifier: notifier, Now: time.Now}
}

// Write replaces the user's document with results, stamped with the server clock,
// and notifies subscribers.
func (s *Service) Write(ctx context.Context, userID string, results []json.RawMessage, source string) (Document, error) {
	if strings.TrimSpace(userID) == "" {
		return Document{}, ErrMissingUserID
	}
	if results == nil {
		results = []json.RawMessage{}
	}

	now := s.now()
	doc := Document{
		UserID:      userID,
		Results:     results,
		Timestamp:   now,
		ProcessedAt: isoMillis(now),
	}
	if err := s.Repo.Put(ctx, doc); err != nil {
		return Document{}, fmt.Errorf("store results: %w", err)
	}
	metrics.IncResultsWrite(source)

	if err := s.Notifier.Publish(ctx, userID); err != nil {
		telemetry.Warn("results.notify_failed", map[string]any{
			"userId":     userID,
			"err":        err,
			"request_id": telemetry.RequestID(ctx),
		})
	}
	telemetry.Info("results.stored", map[string]any{
		"userId":       userID,
		"resultsCount": len(results),
		"source":       source,
		"request_id":   telemetry.RequestID(ctx),
	})
	return doc, nil
}

// Get returns the user's document. The bool is false when none exists yet.
func (s *Service) Get(ctx context.Context, userID string) (Document, bool, error) {
	doc, err := s.Repo.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, err
	}
	return doc, true, nil
}

// Subscribe streams snapshots of the user's document: one immediately, then one after
// every change. The channel closes once ctx is done.
func (s *Service) Subscribe(ctx context.Context, userID string) (<-chan Snapshot, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingUserID
	}

	// Register before the first read so a write in between is not missed.
	changes, release := s.Notifier.Subscribe(userID)
	out := make(chan Snapshot, 1)
	metrics.SubscriberOpened()

	go func() {
		defer close(out)
		defer metrics.SubscriberClosed()
		defer release()

		if !s.emit(ctx, out, userID) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-changes:
				if !s.emit(ctx, out, userID) {
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *Service) emit(ctx context.Context, out chan<- Snapshot, userID string) bool {
	doc, exists, err := s.Get(ctx, userID)
	if err != nil && ctx.Err() != nil {
		return false
	}
	snap := Snapshot{Exists: exists, Document: doc, Err: err}
	select {
	case out <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
