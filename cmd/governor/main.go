// Command governor runs the deal governance service: the evidence ledger,
// risk scorer, close-plan generator, enforcement gate and proof-pack service
// behind one HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dealforge/governor/pkg/archive"
	"github.com/dealforge/governor/pkg/auth"
	"github.com/dealforge/governor/pkg/closeplan"
	"github.com/dealforge/governor/pkg/config"
	"github.com/dealforge/governor/pkg/console"
	"github.com/dealforge/governor/pkg/enforcement"
	"github.com/dealforge/governor/pkg/evidence"
	"github.com/dealforge/governor/pkg/observability"
	"github.com/dealforge/governor/pkg/policy"
	"github.com/dealforge/governor/pkg/proofpack"
	"github.com/dealforge/governor/pkg/risk"
	"github.com/dealforge/governor/pkg/store"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("governor exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	if dir := filepath.Dir(cfg.DBPath); dir != "." && cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	profile, err := loadProfile(cfg.ProfilePath)
	if err != nil {
		return err
	}
	logger.Info("governance profile loaded",
		"name", profile.Name,
		"schema_version", profile.SchemaVersion,
		"triggers", len(profile.Triggers))

	triggers, err := policy.NewFreezeTriggers(profile.Triggers)
	if err != nil {
		return err
	}

	var lock closeplan.DealLock
	if cfg.RedisAddr != "" {
		lock = store.NewRedisDealLock(cfg.RedisAddr, os.Getenv("REDIS_PASSWORD"), 0, 15*time.Second)
		logger.Info("cross-replica deal lock enabled", "addr", cfg.RedisAddr)
	}

	archiver, err := archive.NewFromEnv(ctx)
	if err != nil {
		return err
	}

	var obs *observability.Provider
	if cfg.OTELEnabled {
		obsCfg := observability.DefaultConfig()
		obsCfg.OTLPEndpoint = cfg.OTELEndpoint
		obs, err = observability.New(ctx, obsCfg)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = obs.Shutdown(shutdownCtx)
		}()
	}

	ledger := evidence.NewLedger(st, logger)
	scorer := risk.NewScorer(st, ledger, profile.Risk, logger)
	plans := closeplan.NewGenerator(st, ledger, lock, logger)
	gate := enforcement.NewGate(st, triggers, logger)
	packs := proofpack.NewService(st, archiver, logger)

	srv := console.NewServer(ledger, scorer, plans, gate, packs, obs, logger)
	handler := srv.Handler(console.Options{
		Validator:   auth.NewJWTValidator(cfg.JWTSecret),
		CORSOrigins: splitOrigins(cfg.CORSOrigins),
		RateRPS:     cfg.RateRPS,
		RateBurst:   cfg.RateBurst,
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("governor listening", "port", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func loadProfile(path string) (*policy.GovernanceProfile, error) {
	if path == "" {
		return policy.Default()
	}
	return policy.Load(path)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func splitOrigins(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
