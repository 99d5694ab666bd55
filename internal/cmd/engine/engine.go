// Package engine parses engine command flags and starts the engine runtime.
package engine

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	entrypoint "github.com/surveyledger/surveyledger/internal/platform/cmd"
	"github.com/surveyledger/surveyledger/internal/services/engine/app"
	"github.com/surveyledger/surveyledger/internal/services/engine/domain/engine"
	"github.com/surveyledger/surveyledger/internal/services/engine/ledger"
	"github.com/surveyledger/surveyledger/internal/services/engine/ratelimit"
	"github.com/surveyledger/surveyledger/internal/services/engine/storage"
	"github.com/surveyledger/surveyledger/internal/services/engine/storage/sqlite"
)

// Config holds engine command configuration.
type Config struct {
	Port int `env:"SURVEYLEDGER_ENGINE_PORT" envDefault:"8080"`
	// StorePath locates the SQLite database. Blank runs the engine without
	// durable storage.
	StorePath string `env:"SURVEYLEDGER_ENGINE_DB_PATH" envDefault:"data/engine.db"`
	// RateLimit caps updates per identity per window. Zero disables limiting.
	RateLimit       int           `env:"SURVEYLEDGER_ENGINE_RATE_LIMIT" envDefault:"0"`
	RateLimitWindow time.Duration `env:"SURVEYLEDGER_ENGINE_RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The engine server port")
	fs.StringVar(&cfg.StorePath, "db", cfg.StorePath, "Path to the engine SQLite database (blank for in-memory)")
	fs.IntVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "Max updates per identity per window (0 disables)")
	fs.DurationVar(&cfg.RateLimitWindow, "rate-limit-window", cfg.RateLimitWindow, "Rate limit window duration")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the engine service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceEngine, func(ctx context.Context) error {
		var store storage.Store
		if path := strings.TrimSpace(cfg.StorePath); path != "" {
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create storage dir: %w", err)
				}
			}
			sqliteStore, err := sqlite.Open(path)
			if err != nil {
				return fmt.Errorf("open sqlite store: %w", err)
			}
			store = sqliteStore
			defer func() {
				if err := sqliteStore.Close(); err != nil {
					log.Printf("close engine store: %v", err)
				}
			}()
		}

		var limiter engine.RateLimiter
		if cfg.RateLimit > 0 {
			limiter = ratelimit.NewWindow(cfg.RateLimit, cfg.RateLimitWindow)
		}

		eng, err := app.New(ctx, app.Options{
			Ledger:  ledger.NewMemory(),
			Limiter: limiter,
			Store:   store,
		})
		if err != nil {
			return fmt.Errorf("create engine: %w", err)
		}

		srv, err := app.NewServer(cfg.Port, eng)
		if err != nil {
			return err
		}
		return srv.Serve(ctx)
	})
}
