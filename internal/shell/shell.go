// Package shell serves the browser entry point and picks the login or dashboard view.
package shell

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"

	"portfolio-backend/internal/shared/server/respond"
	"portfolio-backend/internal/users"
)

// Views.
const (
	ViewLogin     = "login"
	ViewDashboard = "dashboard"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// CurrentUserFunc resolves the signed-in user for a request.
type CurrentUserFunc func(c *gin.Context) (users.User, bool)

// Handler renders the shell.
type Handler struct {
	current CurrentUserFunc
	apiBase string
}

// NewHandler constructs a Handler. apiBase is the prefix the browser uses for API calls.
func NewHandler(current CurrentUserFunc, apiBase string) *Handler {
	return &Handler{current: current, apiBase: apiBase}
}

// RegisterPages attaches the HTML entry point.
func (h *Handler) RegisterPages(r gin.IRoutes) {
	r.GET("/", h.index)
}

// RegisterRoutes attaches the session API.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/session", h.session)
}

type pageData struct {
	User      users.User
	SignInURL string
	APIBase   string
}

func (h *Handler) index(c *gin.Context) {
	user, ok := h.current(c)
	data := pageData{
		User:      user,
		SignInURL: h.apiBase + "/auth/google/start",
		APIBase:   h.apiBase,
	}
	name := ViewLogin
	if ok {
		name = ViewDashboard
	}
	c.Header("Cache-Control", "no-store")
	c.Render(http.StatusOK, render.HTML{Template: pages, Name: name, Data: data})
}

type sessionUser struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	FirstName   string `json:"firstName"`
	Email       string `json:"email"`
	Picture     string `json:"picture"`
}

type sessionResponse struct {
	View string       `json:"view"`
	User *sessionUser `json:"user,omitempty"`
}

func (h *Handler) session(c *gin.Context) {
	user, ok := h.current(c)
	if !ok {
		respond.OK(c, sessionResponse{View: ViewLogin})
		return
	}
	respond.OK(c, sessionResponse{
		View: ViewDashboard,
		User: &sessionUser{
			UID:         user.ID,
			DisplayName: user.DisplayName,
			FirstName:   user.FirstName(),
			Email:       user.Email,
			Picture:     user.PictureURL,
		},
	})
}
