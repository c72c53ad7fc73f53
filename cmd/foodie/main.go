package main

import (
	"context"
	"os"
	"time"

	"foodie/internal/auth"
	"foodie/internal/backend"
	"foodie/internal/cache"
	"foodie/internal/cli"
	"foodie/internal/core"
	apphttp "foodie/internal/http"
	"foodie/internal/log"
	"foodie/internal/metrics"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid timezone", "timezone", cfg.Timezone, log.FieldError, err)
		os.Exit(1)
	}

	m := metrics.New()
	caches := cache.NewManager()
	caches.StartCleanup(5 * time.Minute)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger.WithComponent(log.ComponentBackend), m, caches)
	result, err := factory.CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", log.FieldBackend, cfg.DataBackend, log.FieldError, err)
		os.Exit(1)
	}

	sessions, err := auth.NewSessionManager(cfg.SessionSecret, cfg.SitePassword, !cfg.IsDevelopment())
	if err != nil {
		logger.Error("Failed to initialize sessions", log.FieldError, err)
		os.Exit(1)
	}
	passwords := auth.NewPasswordChecker(cfg.SitePassword, cfg.SitePasswordBcrypt)
	if !passwords.Configured() {
		logger.Warn("SITE_PASSWORD is not set; logins will be refused")
	}
	if cfg.MapboxToken == "" {
		logger.Warn("MAPBOX_PUBLIC_TOKEN is not set; the map will not load")
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Source:         result.Source,
		Ready:          result.Ready,
		Passwords:      passwords,
		Sessions:       sessions,
		MapboxToken:    cfg.MapboxToken,
		HomeCity:       cfg.HomeCity,
		Location:       loc,
		SpendPolicy:    core.UnknownSpendPolicy(cfg.SpendTypeFallback),
		StaticDir:      cfg.StaticDir,
		LoginRateLimit: cfg.LoginRateLimit,
		Logger:         logger,
		Metrics:        m,
		Caches:         caches,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldOperation, log.OpShutdown, log.FieldError, err)
		}
		caches.Stop()
		if err := result.Close(); err != nil {
			logger.Error("Backend cleanup error", log.FieldBackend, result.Type, log.FieldError, err)
		}
	})

	logger.Info("Starting foodie server",
		"port", cfg.Port,
		log.FieldBackend, result.Type,
		"cache_ttl", cfg.CacheTTL,
		"home_city", cfg.HomeCity)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
