package results

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"portfolio-backend/internal/shared/server/middleware"
	"portfolio-backend/internal/shared/server/respond"
	"portfolio-backend/internal/shared/telemetry"
)

const (
	// SimulatePath is where clients fall back to when the live stream fails.
	SimulatePath = "/api/v1/results/simulate"

	simulateFailedMessage = "Failed to store analysis results."
	defaultHeartbeat      = 30 * time.Second
)

// Handler serves the results view, its live stream and the simulate fallback.
type Handler struct {
	Service   *Service
	Simulator *Simulator
	heartbeat time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHeartbeat sets the SSE heartbeat interval.
func WithHeartbeat(interval time.Duration) HandlerOption {
	return func(h *Handler) {
		if interval > 0 {
			h.heartbeat = interval
		}
	}
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, sim *Simulator, opts ...HandlerOption) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		Service:   svc,
		Simulator: sim,
		heartbeat: defaultHeartbeat,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes attaches results routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/results", h.get)
	rg.GET("/results/stream", h.stream)
	rg.POST("/results/simulate", h.simulate)
}

// Stop disconnects every open stream.
func (h *Handler) Stop() {
	h.cancel()
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthenticated", middleware.UnauthenticatedMessage, nil)
		return
	}
	doc, exists, err := h.Service.Get(c.Request.Context(), userID)
	view := NewView().Apply(Snapshot{Exists: exists, Document: doc, Err: err})
	respond.OK(c, view)
}

type streamError struct {
	Error    string `json:"error"`
	Fallback string `json:"fallback"`
}

func (h *Handler) stream(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthenticated", middleware.UnauthenticatedMessage, nil)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	stop := context.AfterFunc(h.ctx, cancel)
	defer stop()

	snapshots, err := h.Service.Subscribe(ctx, userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "subscribe_failed", LoadFailedMessage, nil)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	requestID := middleware.RequestIDFromContext(c)
	telemetry.Info("results.stream_opened", map[string]any{"userId": userID, "request_id": requestID})
	defer telemetry.Info("results.stream_closed", map[string]any{"userId": userID, "request_id": requestID})

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	view := NewView()
	var seq int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeEvent(c.Writer, "heartbeat", "", fmt.Sprintf(`{"timestamp":%d}`, time.Now().Unix()))
			c.Writer.Flush()
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			seq++
			view = view.Apply(snap)
			if snap.Err != nil {
				telemetry.Warn("results.stream_read_failed", map[string]any{
					"userId":     userID,
					"err":        snap.Err,
					"request_id": requestID,
				})
				data, _ := json.Marshal(streamError{Error: view.Error, Fallback: SimulatePath})
				writeEvent(c.Writer, "error", fmt.Sprint(seq), string(data))
			} else {
				data, err := json.Marshal(view)
				if err != nil {
					return
				}
				writeEvent(c.Writer, "results", fmt.Sprint(seq), string(data))
			}
			c.Writer.Flush()
		}
	}
}

func writeEvent(w io.Writer, event, id, data string) {
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

type simulateResponse struct {
	Success      bool `json:"success"`
	ResultsCount int  `json:"resultsCount"`
}

func (h *Handler) simulate(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthenticated", middleware.UnauthenticatedMessage, nil)
		return
	}
	count, err := h.Simulator.Run(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "store_failed", simulateFailedMessage, nil)
		return
	}
	respond.OK(c, simulateResponse{Success: true, ResultsCount: count})
}
