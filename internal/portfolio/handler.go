package portfolio

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"portfolio-backend/internal/shared/server/middleware"
	"portfolio-backend/internal/shared/server/respond"
)

// multipart framing on top of the file itself
const maxRequestSize = MaxFileSize + 1<<20

const (
	uploadFailedMessage  = "Failed to upload file. Please try again."
	uploadSuccessMessage = "File uploaded successfully! Analysis is in progress..."
)

// Handler wires HTTP handlers to the pipeline.
type Handler struct {
	Pipeline *Pipeline
}

// NewHandler constructs a Handler.
func NewHandler(p *Pipeline) *Handler {
	return &Handler{Pipeline: p}
}

// RegisterRoutes attaches portfolio routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/portfolios", h.upload)
}

type uploadResponse struct {
	Key        string    `json:"key"`
	FileName   string    `json:"fileName"`
	SizeBytes  int64     `json:"sizeBytes"`
	UploadedAt time.Time `json:"uploadedAt"`
	Dispatched bool      `json:"dispatched"`
	Message    string    `json:"message"`
}

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthenticated", middleware.UnauthenticatedMessage, nil)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestSize)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusBadRequest, "validation_error", ErrTooLarge.Reason, nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}

	// Reject before opening the part.
	if err := ValidateFile(FileInfo{Name: fileHeader.Filename, Size: fileHeader.Size}); err != nil {
		writeUploadError(c, err)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "upload_failed", uploadFailedMessage, nil)
		return
	}
	defer file.Close()

	up, err := h.Pipeline.Upload(c.Request.Context(), File{
		Name:    fileHeader.Filename,
		Size:    fileHeader.Size,
		Content: file,
	}, userID)
	if err != nil {
		writeUploadError(c, err)
		return
	}

	c.Set("uploadKey", up.Key)
	respond.JSON(c, http.StatusCreated, uploadResponse{
		Key:        up.Key,
		FileName:   up.FileName,
		SizeBytes:  up.SizeBytes,
		UploadedAt: up.UploadedAt.UTC(),
		Dispatched: up.Dispatched,
		Message:    uploadSuccessMessage,
	})
}

func writeUploadError(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		respond.Error(c, http.StatusBadRequest, "validation_error", verr.Reason, nil)
	case errors.Is(err, ErrUnauthenticated):
		respond.Error(c, http.StatusUnauthorized, "unauthenticated", middleware.UnauthenticatedMessage, nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "upload_failed", uploadFailedMessage, nil)
	}
}
