package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/teresa-solution/tenant-access-service/internal/cache"
	"github.com/teresa-solution/tenant-access-service/internal/config"
	"github.com/teresa-solution/tenant-access-service/internal/crypto"
	httpapi "github.com/teresa-solution/tenant-access-service/internal/http"
	"github.com/teresa-solution/tenant-access-service/internal/http/handler"
	"github.com/teresa-solution/tenant-access-service/internal/http/middleware"
	"github.com/teresa-solution/tenant-access-service/internal/monitoring"
	"github.com/teresa-solution/tenant-access-service/internal/service"
	"github.com/teresa-solution/tenant-access-service/internal/store"
	"github.com/teresa-solution/tenant-access-service/internal/subscription"
	"github.com/teresa-solution/tenant-access-service/internal/tenant"
	"github.com/teresa-solution/tenant-access-service/internal/token"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	cipher, err := crypto.NewCipher(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid encryption key")
	}

	st, err := store.New(store.Options{
		DSN:           cfg.DatabaseURL,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		Cipher:        cipher,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	trustCache := cache.New(cfg.CacheTTL, cfg.CacheSize)
	issuer := token.NewIssuer([]byte(cfg.SigningSecret), cfg.TokenTTL)
	guard := subscription.NewGuard(st.Subscriptions, st.Plans)
	resolver := tenant.NewResolver(st.Tenants, trustCache, cfg.SuperAdminDomains)
	lifecycle := service.NewLifecycleManager(
		st.Tenants, st.Subscriptions, st.Plans, st.Users,
		guard, trustCache, issuer, cfg.TrialDays, cfg.DefaultPlan,
	)
	auth := service.NewAuthService(st.Users, st.Subscriptions, guard, issuer)

	monitoring.InitMetrics()

	router := httpapi.NewRouter(
		resolver,
		&middleware.Auth{Issuer: issuer},
		&handler.AuthHandler{Auth: auth, Lifecycle: lifecycle},
		&handler.TenantHandler{Lifecycle: lifecycle, Auth: auth},
	)

	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}
	go func() {
		log.Info().Msgf("Tenant access service listening on port %d", cfg.HTTPPort)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())

		metricsServer := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler: mux,
		}

		log.Info().Msgf("HTTP server for health checks and metrics started on port %d", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Shutdown is owned here: drain the listener, then close each owned
	// resource explicitly.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown error")
	}
	trustCache.InvalidateAll()
	if err := st.Close(); err != nil {
		log.Error().Err(err).Msg("Store close error")
	}
	log.Info().Msg("Server exiting")
}
