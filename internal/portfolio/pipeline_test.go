package portfolio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-backend/internal/dispatch"
)

type putCall struct {
	Key         string
	ContentType string
	Data        []byte
}

type fakeStore struct {
	mu   sync.Mutex
	puts []putCall
	err  error
}

func (s *fakeStore) Put(_ context.Context, key, contentType string, r io.Reader) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts = append(s.puts, putCall{Key: key, ContentType: contentType, Data: data})
	return int64(len(data)), nil
}

func (s *fakeStore) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

type fakeDispatcher struct {
	mu       sync.Mutex
	disabled bool
	err      error
	calls    []dispatch.Request
}

func (d *fakeDispatcher) Enabled() bool { return !d.disabled }

func (d *fakeDispatcher) Dispatch(_ context.Context, req dispatch.Request) (json.RawMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, req)
	if d.err != nil {
		return nil, d.err
	}
	return json.RawMessage(`{"ok":true}`), nil
}

func (d *fakeDispatcher) Calls() []dispatch.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatch.Request(nil), d.calls...)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestPipeline(store *fakeStore, d dispatch.Dispatcher) *Pipeline {
	p := NewPipeline(store, d)
	p.Now = func() time.Time { return fixedNow }
	return p
}

func csvFile(name, content string) File {
	return File{Name: name, Size: int64(len(content)), Content: strings.NewReader(content)}
}

func waitDispatches(t *testing.T, p *Pipeline) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Wait(ctx))
}

func TestUploadStoresAndDispatches(t *testing.T) {
	store := &fakeStore{}
	d := &fakeDispatcher{}
	p := newTestPipeline(store, d)

	content := "ticker,shares\nAAPL,10\nMSFT,5\n"
	up, err := p.Upload(context.Background(), csvFile("holdings.csv", content), "google:1")
	require.NoError(t, err)
	waitDispatches(t, p)

	wantKey := "portfolios/google:1/1717243200000-holdings.csv"
	assert.Equal(t, wantKey, up.Key)
	assert.Equal(t, int64(len(content)), up.SizeBytes)
	assert.True(t, up.Dispatched)

	require.Len(t, store.puts, 1)
	assert.Equal(t, wantKey, store.puts[0].Key)
	assert.Equal(t, "text/csv", store.puts[0].ContentType)
	assert.Equal(t, content, string(store.puts[0].Data))

	calls := d.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "google:1", calls[0].UserID)
	assert.Equal(t, content, calls[0].CSVData)
	assert.Equal(t, "2024-06-01T12:00:00.000Z", calls[0].Timestamp)
}

func TestUploadDecodesLikeFileReader(t *testing.T) {
	d := &fakeDispatcher{}
	p := newTestPipeline(&fakeStore{}, d)

	content := "\xef\xbb\xbfticker,shares\nAAPL,10\n"
	_, err := p.Upload(context.Background(), csvFile("excel.csv", content), "google:1")
	require.NoError(t, err)
	waitDispatches(t, p)

	calls := d.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "ticker,shares\nAAPL,10\n", calls[0].CSVData)
}

func TestDecodeText(t *testing.T) {
	assert.Equal(t, "a,b", decodeText([]byte("\xef\xbb\xbfa,b")))
	assert.Equal(t, "a\uFFFDb", decodeText([]byte("a\xffb")))
	assert.Equal(t, "x,\uFEFFy", decodeText([]byte("x,\xef\xbb\xbfy")))
}

func TestUploadRequiresUser(t *testing.T) {
	store := &fakeStore{}
	d := &fakeDispatcher{}
	p := newTestPipeline(store, d)

	_, err := p.Upload(context.Background(), csvFile("holdings.csv", "a"), "  ")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Empty(t, store.puts)
	assert.Empty(t, d.Calls())
}

func TestUploadRejectsInvalidFile(t *testing.T) {
	store := &fakeStore{}
	d := &fakeDispatcher{}
	p := newTestPipeline(store, d)

	_, err := p.Upload(context.Background(), csvFile("holdings.xlsx", "a"), "google:1")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, store.puts)

	// Size header says small, body says otherwise.
	big := File{Name: "big.csv", Size: 10, Content: bytes.NewReader(make([]byte, MaxFileSize+1))}
	_, err = p.Upload(context.Background(), big, "google:1")
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Empty(t, store.puts)
	assert.Empty(t, d.Calls())
}

func TestUploadReadFailureAborts(t *testing.T) {
	store := &fakeStore{}
	d := &fakeDispatcher{}
	p := newTestPipeline(store, d)

	_, err := p.Upload(context.Background(), File{Name: "a.csv", Size: 3, Content: failingReader{}}, "google:1")
	assert.ErrorIs(t, err, ErrRead)
	assert.Empty(t, store.puts)
	assert.Empty(t, d.Calls())
}

func TestUploadStoreFailureSkipsDispatch(t *testing.T) {
	store := &fakeStore{err: errors.New("bucket unavailable")}
	d := &fakeDispatcher{}
	p := newTestPipeline(store, d)

	_, err := p.Upload(context.Background(), csvFile("holdings.csv", "a,b"), "google:1")
	assert.ErrorIs(t, err, ErrUpload)
	waitDispatches(t, p)
	assert.Empty(t, d.Calls())
}

func TestUploadSucceedsWhenDispatchFails(t *testing.T) {
	store := &fakeStore{}
	d := &fakeDispatcher{err: &dispatch.StatusError{StatusCode: http.StatusInternalServerError}}
	p := newTestPipeline(store, d)

	up, err := p.Upload(context.Background(), csvFile("holdings.csv", "a,b"), "google:1")
	require.NoError(t, err)
	waitDispatches(t, p)

	assert.True(t, up.Dispatched)
	assert.Len(t, store.puts, 1)
	assert.Len(t, d.Calls(), 1)
}

func TestUploadSkipsDisabledDispatcher(t *testing.T) {
	store := &fakeStore{}
	d := &fakeDispatcher{disabled: true}
	p := newTestPipeline(store, d)

	up, err := p.Upload(context.Background(), csvFile("holdings.csv", "a,b"), "google:1")
	require.NoError(t, err)
	waitDispatches(t, p)

	assert.False(t, up.Dispatched)
	assert.Len(t, store.puts, 1)
	assert.Empty(t, d.Calls())
}

func TestUploadFlattensPathSeparators(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(store, nil)

	up, err := p.Upload(context.Background(), csvFile("../../etc/x.csv", "a"), "google:1")
	require.NoError(t, err)
	assert.Equal(t, "portfolios/google:1/1717243200000-.._.._etc_x.csv", up.Key)
}

func TestUploadSurvivesRequestCancellation(t *testing.T) {
	var (
		mu       sync.Mutex
		received dispatch.Request
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		_ = json.NewDecoder(r.Body).Decode(&received)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	store := &fakeStore{}
	p := newTestPipeline(store, dispatch.NewWebhook(srv.URL, time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	_, err := p.Upload(ctx, csvFile("holdings.csv", "ticker\nNVDA\n"), "google:2")
	cancel()
	require.NoError(t, err)
	waitDispatches(t, p)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "google:2", received.UserID)
	assert.Equal(t, "ticker\nNVDA\n", received.CSVData)
}

func TestStorageKey(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "portfolios/u1/1700000000123-a.csv", StorageKey("u1", at, "a.csv"))
}
