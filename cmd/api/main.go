// Package main is the entrypoint for the userstats API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"

	"github.com/userstats/userstats/internal/config"
	"github.com/userstats/userstats/internal/handler"
	"github.com/userstats/userstats/internal/metrics"
	"github.com/userstats/userstats/internal/repository"
	"github.com/userstats/userstats/internal/router"
	"github.com/userstats/userstats/internal/server"
	"github.com/userstats/userstats/internal/service"
)

// userStore is what the process needs from a storage driver.
type userStore interface {
	service.UserStore
	handler.HealthChecker
	Close(ctx context.Context) error
}

func main() {
	ctx := context.Background()

	// A missing .env is fine; the environment alone may carry the config.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	store, err := openStore(ctx, cfg)
	if err != nil {
		storeURL := cfg.StoreURL()
		logger.Error(
			"failed to connect to store",
			slog.String("driver", cfg.StoreDriver),
			slog.String("error", sanitizeError(err, storeURL)),
			slog.String("store_url", redactURL(storeURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to store", "driver", cfg.StoreDriver)

	metricsRecorder := metrics.NewInMemory()
	userService := service.NewUserService(store, metricsRecorder)

	r := router.New(router.Options{
		UsersPrefix:        cfg.RoutePrefix(),
		IsDevelopment:      cfg.IsDevelopment(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		Logger:             logger,
	}, router.Handlers{
		Base:    handler.New(),
		Health:  handler.NewHealthHandler(cfg.StoreDriver, store),
		Metrics: handler.NewMetricsHandler(metricsRecorder),
		Users:   handler.NewUserHandler(userService, logger, metricsRecorder),
	})

	srv := server.New(r, server.Config{
		Addr:            fmt.Sprintf(":%d", cfg.Port),
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)
	srv.OnShutdown("store", store.Close)

	logger.Info("starting server",
		"port", cfg.Port,
		"users_prefix", cfg.RoutePrefix(),
		"env", cfg.AppEnv,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openStore connects the configured driver within STORE_CONNECT_TIMEOUT.
func openStore(ctx context.Context, cfg *config.Config) (userStore, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.StoreConnectTimeout)
	defer cancel()

	switch cfg.StoreDriver {
	case config.DriverMongo:
		store, err := repository.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverPostgres:
		store, err := repository.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverMemory:
		return repository.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "userstats")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s&]+`)

// redactURL strips the password from a connection string.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		if username := parsed.User.Username(); username != "" {
			parsed.User = url.User(username)
		} else {
			parsed.User = url.User("redacted")
		}
	}

	return parsed.String()
}

// sanitizeError removes connection secrets from a driver error message.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
