package portfolio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"portfolio-backend/internal/dispatch"
	"portfolio-backend/internal/shared/metrics"
	"portfolio-backend/internal/shared/storage/object"
	"portfolio-backend/internal/shared/telemetry"
	"portfolio-backend/internal/shared/util"
)

const csvContentType = "text/csv"

// File is a portfolio upload as received from the client.
type File struct {
	Name    string
	Size    int64
	Content io.Reader
}

// Upload describes a stored portfolio file.
type Upload struct {
	Key        string
	FileName   string
	SizeBytes  int64
	UploadedAt time.Time
	// Dispatched is true when an analysis request was handed off. Its outcome is not tracked here.
	Dispatched bool
}

// Pipeline stores portfolio files and hands them to the analysis workflow.
// Storage failures fail the upload; dispatch failures are only logged.
type Pipeline struct {
	Store      object.ObjectStore
	Dispatcher dispatch.Dispatcher
	Now        func() time.Time

	inflight sync.WaitGroup
}

// NewPipeline constructs a Pipeline. dispatcher may be nil.
func NewPipeline(store object.ObjectStore, dispatcher dispatch.Dispatcher) *Pipeline {
	return &Pipeline{Store: store, Dispatcher: dispatcher, Now: time.Now}
}

// StorageKey returns portfolios/{userID}/{epochMillis}-{fileName}.
// Two uploads of the same name in the same millisecond share a key and the later one wins.
func StorageKey(userID string, at time.Time, fileName string) string {
	return fmt.Sprintf("portfolios/%s/%d-%s", userID, at.UnixMilli(), fileName)
}

// Upload validates, reads and stores f, then starts a detached analysis dispatch.
func (p *Pipeline) Upload(ctx context.Context, f File, userID string) (Upload, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		metrics.IncUpload(metrics.OutcomeRejected)
		return Upload{}, ErrUnauthenticated
	}
	if err := ValidateFile(FileInfo{Name: f.Name, Size: f.Size}); err != nil {
		metrics.IncUpload(metrics.OutcomeRejected)
		return Upload{}, err
	}
	name, err := util.SanitizeFileName(f.Name)
	if err != nil {
		metrics.IncUpload(metrics.OutcomeRejected)
		return Upload{}, ErrInvalidType
	}
	if f.Content == nil {
		metrics.IncUpload(metrics.OutcomeFailed)
		return Upload{}, fmt.Errorf("%w: no content", ErrRead)
	}

	// Read one byte past the limit so a lying Size still gets caught.
	data, err := io.ReadAll(io.LimitReader(f.Content, MaxFileSize+1))
	if err != nil {
		metrics.IncUpload(metrics.OutcomeFailed)
		return Upload{}, fmt.Errorf("%w: %v", ErrRead, err)
	}
	if int64(len(data)) > MaxFileSize {
		metrics.IncUpload(metrics.OutcomeRejected)
		return Upload{}, ErrTooLarge
	}

	now := p.now()
	key := StorageKey(userID, now, name)
	written, err := p.Store.Put(ctx, key, csvContentType, bytes.NewReader(data))
	if err != nil {
		metrics.IncUpload(metrics.OutcomeFailed)
		telemetry.Error("portfolio.store_failed", map[string]any{
			"request_id": telemetry.RequestID(ctx),
			"user_id":    userID,
			"key":        key,
			"err":        err,
		})
		return Upload{}, fmt.Errorf("%w: %v", ErrUpload, err)
	}
	metrics.IncUpload(metrics.OutcomeStored)
	telemetry.Info("portfolio.stored", map[string]any{
		"request_id": telemetry.RequestID(ctx),
		"user_id":    userID,
		"key":        key,
		"size_bytes": written,
	})

	up := Upload{Key: key, FileName: name, SizeBytes: written, UploadedAt: now}

	if p.Dispatcher == nil || !p.Dispatcher.Enabled() {
		metrics.IncDispatch(metrics.DispatchSkipped)
		telemetry.Info("webhook.skipped", map[string]any{
			"request_id": telemetry.RequestID(ctx),
			"user_id":    userID,
			"reason":     "webhook url not configured",
		})
		return up, nil
	}

	req := dispatch.NewRequest(userID, decodeText(data), p.now())
	p.inflight.Add(1)
	go p.dispatchAsync(telemetry.Detached(ctx), req)
	up.Dispatched = true
	return up, nil
}

// Wait blocks until in-flight dispatches finish or ctx is done.
func (p *Pipeline) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) dispatchAsync(ctx context.Context, req dispatch.Request) {
	defer p.inflight.Done()
	defer func() {
		if rec := recover(); rec != nil {
			metrics.IncDispatch(metrics.DispatchFailed)
			telemetry.Error("webhook.panic", map[string]any{
				"request_id": telemetry.RequestID(ctx),
				"user_id":    req.UserID,
				"error":      rec,
			})
		}
	}()

	start := time.Now()
	reply, err := p.Dispatcher.Dispatch(ctx, req)
	fields := map[string]any{
		"request_id":  telemetry.RequestID(ctx),
		"user_id":     req.UserID,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		metrics.IncDispatch(metrics.DispatchFailed)
		fields["err"] = err
		telemetry.Error("webhook.failed", fields)
		return
	}
	metrics.IncDispatch(metrics.DispatchSent)
	fields["reply"] = string(reply)
	telemetry.Info("webhook.sent", fields)
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// decodeText decodes data as UTF-8 the way a browser file reader does:
// a leading byte order mark is dropped and invalid bytes become U+FFFD.
func decodeText(data []byte) string {
	return strings.TrimPrefix(strings.ToValidUTF8(string(data), "\uFFFD"), "\uFEFF")
}
