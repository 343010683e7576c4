package router

import (
	"time"

	"dutyfreepos/internal/config"
	"dutyfreepos/internal/handler"
	"dutyfreepos/internal/infra"
	"dutyfreepos/internal/middleware"
	"dutyfreepos/internal/repository"
	"dutyfreepos/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
)

// Deps are the long-lived components built by the composition root.
type Deps struct {
	Store    repository.KVStore
	Breaker  *infra.CircuitBreaker
	Sessions service.CashSessionService
	Queue    handler.OfflineQueue
	Monitor  handler.ConnectivityHinter
}

// New returns a configured Gin engine for the dashboard-facing API.
// Dependency graph: Handler ← Service ← Repository/APIClient ← Store/HTTP
func New(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.ErrorHandler())

	// Each replay or hint costs a round trip to the remote API.
	remoteLimiter := middleware.NewRateLimiter(30, time.Minute, nil)

	// ── Handlers ─────────────────────────────────────────────────────────────
	sessionsH := handler.NewCashSessionHandler(d.Sessions)
	queueH := handler.NewQueueHandler(d.Queue, d.Monitor)

	// ── Routes ───────────────────────────────────────────────────────────────
	r.GET("/health", handler.Health(d.Store, d.Queue, d.Breaker))

	v1 := r.Group("/v1")
	{
		v1.GET("/registers", sessionsH.ListRegisters)

		sessions := v1.Group("/cash-sessions")
		{
			sessions.GET("/current", sessionsH.Current)
			sessions.POST("", sessionsH.Open)
			sessions.GET("/:id/closing", sessionsH.ClosingSummary)
			sessions.POST("/:id/variance", sessionsH.PreviewVariance)
			sessions.POST("/:id/close", sessionsH.Close)
		}

		v1.POST("/sales", sessionsH.RecordSale)

		queue := v1.Group("/queue")
		{
			queue.POST("", queueH.Enqueue)
			queue.POST("/replay", remoteLimiter.Middleware(), queueH.Replay)
			queue.GET("/status", queueH.Status)
			queue.GET("/dead-letters", queueH.DeadLetters)
			queue.DELETE("/dead-letters", queueH.AcknowledgeDeadLetters)
		}

		v1.POST("/connectivity/hint", remoteLimiter.Middleware(), queueH.Hint)
	}

	// Swagger UI, only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
