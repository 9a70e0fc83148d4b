package shell

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-backend/internal/users"
)

func newShellRouter(user *users.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	current := func(*gin.Context) (users.User, bool) {
		if user == nil {
			return users.User{}, false
		}
		return *user, true
	}
	h := NewHandler(current, "/api/v1")
	r := gin.New()
	h.RegisterPages(r)
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestIndexShowsLoginWhenAnonymous(t *testing.T) {
	w := get(newShellRouter(nil), "/")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Sign in with Google")
	assert.Contains(t, w.Body.String(), `href="/api/v1/auth/google/start"`)
	assert.NotContains(t, w.Body.String(), "Upload portfolio")
}

func TestIndexShowsDashboardWhenSignedIn(t *testing.T) {
	w := get(newShellRouter(&users.User{ID: "google:1", DisplayName: "Ada Lovelace", Email: "ada@example.com"}), "/")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Welcome, Ada")
	assert.Contains(t, w.Body.String(), "Upload portfolio")
	assert.NotContains(t, w.Body.String(), "Sign in with Google")
}

func TestIndexEscapesProfileFields(t *testing.T) {
	w := get(newShellRouter(&users.User{ID: "google:1", DisplayName: "<script>x</script>"}), "/")
	assert.NotContains(t, w.Body.String(), "Welcome, <script>")
}

func TestSessionEndpoint(t *testing.T) {
	w := get(newShellRouter(nil), "/api/v1/session")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"view":"login"}`, w.Body.String())

	w = get(newShellRouter(&users.User{ID: "google:1"}), "/api/v1/session")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"view":"dashboard","user":{"uid":"google:1","displayName":"","firstName":"User","email":"","picture":""}}`, w.Body.String())
}
