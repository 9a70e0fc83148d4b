package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"portfolio-backend/internal/shared/server/middleware"
	"portfolio-backend/internal/shared/server/respond"
	"portfolio-backend/internal/shared/telemetry"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
}

type meResponse struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	FirstName   string `json:"firstName"`
	Email       string `json:"email"`
	Picture     string `json:"picture"`
}

// Current returns the signed-in user. The stored profile wins; the session claims fill in
// when it is missing or unreadable.
func (h *Handler) Current(c *gin.Context) (User, bool) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		return User{}, false
	}
	user := User{
		ID:          userID,
		Email:       middleware.UserEmailFromContext(c),
		DisplayName: middleware.UserNameFromContext(c),
		PictureURL:  middleware.UserPictureFromContext(c),
	}
	if h.Svc == nil {
		return user, true
	}
	stored, err := h.Svc.GetByID(c.Request.Context(), userID)
	switch {
	case err == nil:
		return stored, true
	case errors.Is(err, ErrNotFound):
	default:
		telemetry.Warn("users.lookup_failed", map[string]any{
			"userId":     userID,
			"err":        err,
			"request_id": middleware.RequestIDFromContext(c),
		})
	}
	return user, true
}

func (h *Handler) me(c *gin.Context) {
	user, ok := h.Current(c)
	if !ok {
		respond.Error(c, http.StatusUnauthorized, "unauthenticated", middleware.UnauthenticatedMessage, nil)
		return
	}
	respond.JSON(c, http.StatusOK, meResponse{
		UID:         user.ID,
		DisplayName: user.DisplayName,
		FirstName:   user.FirstName(),
		Email:       user.Email,
		Picture:     user.PictureURL,
	})
}
