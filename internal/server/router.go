// Package server assembles the gin router: auth routes, request guards, and
// health probes.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	authhandler "citizen-services/auth-service/internal/auth/handler"
	"citizen-services/auth-service/internal/security"
	"citizen-services/auth-service/internal/server/middleware"
)

// Pinger reports storage reachability, e.g. *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps holds the dependencies the router wires together.
type Deps struct {
	Auth      *authhandler.AuthHandler
	Tokens    *security.TokenIssuer
	Blocklist middleware.TokenBlocklist
	// DB and Redis back the readiness probe. Either may be nil; the probe
	// then skips that check.
	DB    Pinger
	Redis redis.UniversalClient
}

// NewRouter builds the HTTP routing tree.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), otelgin.Middleware("auth-service"), requestMetrics())

	r.GET("/healthz", healthz(d.DB, d.Redis))

	authn := middleware.Authenticate(d.Tokens, d.Blocklist)
	d.Auth.RegisterRoutes(r.Group("/api/v1/auth"), authn)

	return r
}

// healthz answers readiness: 200 when the stores answer, 503 otherwise.
func healthz(db Pinger, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{}
		healthy := true
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				checks["database"] = "unreachable"
				healthy = false
			} else {
				checks["database"] = "ok"
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				checks["redis"] = "unreachable"
				healthy = false
			} else {
				checks["redis"] = "ok"
			}
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": checks, "healthy": healthy})
	}
}
