// Command server runs the campus portal backend: REST API, WebSocket push
// channel, Prometheus metrics and optional OpenTelemetry tracing.
//
// Configuration is environment-driven (see internal/config); a local .env
// file is honored in development.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/campushub/portal-support/internal/config"
	httpapi "github.com/campushub/portal-support/internal/http"
	"github.com/campushub/portal-support/internal/knowledge"
	"github.com/campushub/portal-support/internal/observability"
	"github.com/campushub/portal-support/internal/repo"
	"github.com/campushub/portal-support/internal/services"
	"github.com/campushub/portal-support/internal/sysutil"

	"github.com/campushub/portal-support/internal/auth"
)

// version is stamped by the build (-ldflags "-X main.version=...").
var version = "dev"

func main() {
	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	log.Info().
		Str("version", version).
		Str("port", cfg.Port).
		Str("db", cfg.DBPath).
		Msg("starting portal-support")

	// Tracing (no-op unless enabled)
	shutdownOTel, err := observability.SetupOTel(context.Background(), cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	// Storage
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	// Bootstrap admin (idempotent; skipped when unset)
	if cfg.Auth.AdminEmail != "" && cfg.Auth.AdminPassword != "" {
		authSvc := &services.AuthService{
			DB:     db,
			Tokens: auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL),
		}
		if err := authSvc.SeedAdmin(context.Background(), cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			log.Fatal().Err(err).Msg("seed admin failed")
		}
	}

	// Knowledge base for the assistant; an unreadable file is fatal because
	// the assistant would answer nothing but the fallback.
	idx, err := knowledge.LoadFile(cfg.DataPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DataPath).Msg("load knowledge base failed")
	}

	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, idx, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()
	log.Info().Str("addr", srv.Addr).Msg("listening")

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := shutdownOTel(ctx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
	log.Info().Msg("stopped")
}
