package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shutterbook/studio-api/internal/application/auth"
	"github.com/shutterbook/studio-api/internal/application/cleanup"
	"github.com/shutterbook/studio-api/internal/config"
	"github.com/shutterbook/studio-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/shutterbook/studio-api/internal/infrastructure/jwt"
	"github.com/shutterbook/studio-api/internal/infrastructure/postgres"
	"github.com/shutterbook/studio-api/internal/infrastructure/smtp"
	"github.com/shutterbook/studio-api/internal/infrastructure/sns"
	"github.com/shutterbook/studio-api/internal/infrastructure/sqlite"
	"github.com/shutterbook/studio-api/internal/observability/metrics"
	transporthttp "github.com/shutterbook/studio-api/internal/transport/http"
)

const serviceName = "studio-api"

// stores bundles the repositories of one driver with its teardown.
type stores struct {
	users transporthttp.UserRepository
	otps  interface {
		transporthttp.OTPRepository
		DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	}
	close func()
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg := config.Load()
	slog.SetDefault(newLogger(cfg))
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	metrics.MustRegister(serviceName)

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	notifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}

	tokens, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		UserRepo: st.users,
		OTPRepo:  st.otps,
		Notifier: notifier,
		Tokens:   tokens,
	})
	defer router.Close()

	cleaner := cleanup.NewCleaner(st.otps, time.Now)
	go cleaner.Run(ctx, cfg.OTPSweepInterval)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.StoreDriver, "notifier", cfg.Notifier)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &stores{users: postgres.NewUserRepo(pool), otps: postgres.NewOTPRepo(pool), close: pool.Close}, nil
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &stores{
			users: sqlite.NewUserRepo(db),
			otps:  sqlite.NewOTPRepo(db),
			close: func() { _ = db.Close() },
		}, nil
	default:
		// Creates the tables if they don't exist.
		client := dynamo.NewClient(cfg)
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		return &stores{
			users: dynamo.NewUserRepo(client, cfg.DynamoTables),
			otps:  dynamo.NewOTPRepo(client, cfg.DynamoTables.OneTimeCodes),
			close: func() {},
		}, nil
	}
}

func newNotifier(cfg *config.Config) (auth.Notifier, error) {
	if cfg.Notifier == config.NotifierSNS {
		sender, err := sns.NewSender(cfg)
		if err != nil {
			return nil, fmt.Errorf("sns sender: %w", err)
		}
		return sender, nil
	}
	return smtp.NewCodeNotifier(smtp.NewMailer(cfg)), nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
