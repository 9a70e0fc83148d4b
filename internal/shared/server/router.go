package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	googleauth "portfolio-backend/internal/auth"
	"portfolio-backend/internal/portfolio"
	"portfolio-backend/internal/results"
	"portfolio-backend/internal/services/health"
	"portfolio-backend/internal/shared/auth"
	"portfolio-backend/internal/shared/config"
	"portfolio-backend/internal/shared/metrics"
	"portfolio-backend/internal/shared/server/middleware"
	"portfolio-backend/internal/shared/server/respond"
	"portfolio-backend/internal/shell"
	"portfolio-backend/internal/users"
)

const (
	// APIPrefix is where the JSON API lives.
	APIPrefix = "/api/v1"
	// IngestPath receives analysis results from the workflow engine.
	IngestPath = "/receiveAnalysisResults"
)

// Rate limit groups.
const (
	RateGroupUpload   = "UPLOAD"
	RateGroupSimulate = "SIMULATE"
	RateGroupDefault  = "DEFAULT"
)

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Config           config.Config
	Signer           *auth.Signer
	Revocations      auth.RevocationList
	GoogleAuth       *googleauth.GoogleService
	UsersHandler     *users.Handler
	PortfolioHandler *portfolio.Handler
	ResultsHandler   *results.Handler
	ShellHandler     *shell.Handler
	Ingest           http.Handler
	RateLimiter      *middleware.RateLimiter
	Health           *health.Service
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
	)

	healthHandler := healthCheck(deps.Health)
	r.GET("/health", healthHandler)
	r.GET("/metrics", metrics.Handler())

	// The workflow engine calls this from anywhere; it brings its own CORS policy.
	if deps.Ingest != nil {
		r.Any(IngestPath, gin.WrapH(deps.Ingest))
	}

	authMW := middleware.Auth(deps.Signer, deps.Revocations)

	if deps.ShellHandler != nil {
		pages := r.Group("/", authMW)
		deps.ShellHandler.RegisterPages(pages)
	}

	api := r.Group(APIPrefix,
		middleware.CORS(deps.Config.CORSAllowOrigin),
		authMW,
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:        DefaultRateLimitRules(),
			DefaultGroup: RateGroupDefault,
			GroupFor:     rateGroupFor,
			Limiter:      deps.RateLimiter,
		}),
	)
	api.GET("/health", healthHandler)
	// Preflights have no matching route otherwise; CORS answers them before this runs.
	api.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}
	if deps.UsersHandler != nil {
		deps.UsersHandler.RegisterRoutes(api)
	}
	if deps.ShellHandler != nil {
		deps.ShellHandler.RegisterRoutes(api)
	}
	if deps.PortfolioHandler != nil {
		deps.PortfolioHandler.RegisterRoutes(api)
	}
	if deps.ResultsHandler != nil {
		deps.ResultsHandler.RegisterRoutes(api)
	}

	return r
}

// DefaultRateLimitRules returns the per-principal budgets for each group.
func DefaultRateLimitRules() map[string]middleware.RateLimitRule {
	return map[string]middleware.RateLimitRule{
		RateGroupUpload:   {Rate: 0.2, Burst: 5},
		RateGroupSimulate: {Rate: 0.1, Burst: 3},
		RateGroupDefault:  {Rate: 10, Burst: 40},
	}
}

func rateGroupFor(c *gin.Context) string {
	switch c.FullPath() {
	case APIPrefix + "/portfolios":
		return RateGroupUpload
	case APIPrefix + "/results/simulate":
		return RateGroupSimulate
	default:
		return RateGroupDefault
	}
}

func healthCheck(svc *health.Service) gin.HandlerFunc {
	if svc == nil {
		svc = health.NewService()
	}
	return func(c *gin.Context) {
		report := svc.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
