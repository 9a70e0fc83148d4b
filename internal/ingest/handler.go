// Package ingest receives analysis results posted back by the workflow engine.
package ingest

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"portfolio-backend/internal/results"
	"portfolio-backend/internal/shared/telemetry"
)

// SecretHeader carries the optional shared secret.
const SecretHeader = "X-Webhook-Secret"

// DefaultMaxBodyBytes caps an inbound results payload.
const DefaultMaxBodyBytes int64 = 5 << 20

const (
	invalidBodyMessage = "Missing userId or results"
	storedMessage      = "Results stored successfully"
)

// ResultsWriter stores a user's results document.
type ResultsWriter interface {
	Write(ctx context.Context, userID string, items []json.RawMessage, source string) (results.Document, error)
}

// Option configures the ingest handler.
type Option func(*handler)

// WithSharedSecret requires callers to present secret in X-Webhook-Secret. Empty disables the check.
func WithSharedSecret(secret string) Option {
	return func(h *handler) {
		h.secret = []byte(secret)
	}
}

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(h *handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

type handler struct {
	writer   ResultsWriter
	validate *validator.Validate
	secret   []byte
	maxBody  int64
}

type payload struct {
	UserID  string            `json:"userId" validate:"required"`
	Results []json.RawMessage `json:"results" validate:"required"`
}

type successResponse struct {
	Success      bool   `json:"success"`
	UserID       string `json:"userId"`
	ResultsCount int    `json:"resultsCount"`
	Message      string `json:"message"`
}

type failureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewHandler returns the ingestion endpoint. It answers on any path so it can be
// mounted under a prefix or served on its own.
func NewHandler(writer ResultsWriter, opts ...Option) http.Handler {
	h := &handler{
		writer:   writer,
		validate: validator.New(),
		maxBody:  DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}

	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:     []string{"*"},
		AllowedMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:     []string{"Content-Type", SecretHeader},
		OptionsPassthrough: true,
	}))
	mux.HandleFunc("/", h.serve)
	mux.HandleFunc("/*", h.serve)
	return mux
}

func (h *handler) serve(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if len(h.secret) > 0 {
		given := []byte(r.Header.Get(SecretHeader))
		if subtle.ConstantTimeCompare(given, h.secret) != 1 {
			telemetry.Warn("ingest.unauthorized", map[string]any{"remote": r.RemoteAddr})
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	var body payload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		telemetry.Warn("ingest.invalid_body", map[string]any{"err": err})
		http.Error(w, invalidBodyMessage, http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(body); err != nil {
		telemetry.Warn("ingest.invalid_body", map[string]any{"err": err})
		http.Error(w, invalidBodyMessage, http.StatusBadRequest)
		return
	}

	doc, err := h.writer.Write(r.Context(), body.UserID, body.Results, results.SourceIngest)
	if errors.Is(err, results.ErrMissingUserID) {
		http.Error(w, invalidBodyMessage, http.StatusBadRequest)
		return
	}
	if err != nil {
		telemetry.Error("ingest.store_failed", map[string]any{"userId": body.UserID, "err": err})
		writeJSON(w, http.StatusInternalServerError, failureResponse{Success: false, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, successResponse{
		Success:      true,
		UserID:       doc.UserID,
		ResultsCount: len(doc.Results),
		Message:      storedMessage,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
