package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"citizen-services/auth-service/internal/audit"
	authhandler "citizen-services/auth-service/internal/auth/handler"
	authservice "citizen-services/auth-service/internal/auth/service"
	"citizen-services/auth-service/internal/blocklist"
	"citizen-services/auth-service/internal/config"
	"citizen-services/auth-service/internal/db"
	"citizen-services/auth-service/internal/lockout"
	"citizen-services/auth-service/internal/platform/otel"
	"citizen-services/auth-service/internal/security"
	"citizen-services/auth-service/internal/server"
	sessionrepo "citizen-services/auth-service/internal/session/repository"
	tokenrepo "citizen-services/auth-service/internal/token/repository"
	userrepo "citizen-services/auth-service/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "auth-service", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	tokens := security.NewTokenIssuer(
		[]byte(cfg.JWTAccessSecret),
		[]byte(cfg.JWTRefreshSecret),
		cfg.JWTIssuer,
		cfg.JWTAccessAudience,
		cfg.JWTRefreshAudience,
		cfg.AccessTTL(),
		cfg.RefreshTTL(),
	)
	hasher := security.NewHasher(cfg.BcryptCost)
	guard := lockout.New(rdb, lockout.Config{
		MaxAttempts: cfg.MaxFailedAttempts,
		Window:      cfg.LockoutTTL(),
		FailOpen:    cfg.LockoutFailOpen,
	})
	blockStore := blocklist.New(rdb, cfg.BlocklistRetries)

	emitter := audit.NewKafkaEmitter(cfg.AuditKafkaBrokersList(), cfg.AuditKafkaTopic)
	if emitter == nil {
		log.Println("audit: no Kafka brokers configured, events disabled")
	}

	svc := authservice.NewAuthService(
		userrepo.NewPostgresRepository(conn),
		sessionrepo.NewPostgresRepository(conn),
		tokenrepo.NewPostgresRepository(conn),
		guard,
		blockStore,
		hasher,
		tokens,
		emitterOrNil(emitter),
		cfg.MaxFailedAttempts,
		cfg.SessionTTL(),
	)

	router := server.NewRouter(server.Deps{
		Auth:      authhandler.NewAuthHandler(svc, cfg.Env == "production"),
		Tokens:    tokens,
		Blocklist: blockStore,
		DB:        conn,
		Redis:     rdb,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}

	// Let in-flight async audit emits finish before closing the writer.
	time.Sleep(audit.ShutdownDrainDuration)
	if emitter != nil {
		if err := emitter.Close(); err != nil {
			log.Printf("audit close: %v", err)
		}
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}

// emitterOrNil avoids wrapping a typed nil in the Emitter interface.
func emitterOrNil(e *audit.KafkaEmitter) audit.Emitter {
	if e == nil {
		return nil
	}
	return e
}
