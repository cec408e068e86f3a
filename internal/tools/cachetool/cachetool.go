// Package cachetool implements the cache maintenance command: inspect row
// counts and wipe the persisted cache.
package cachetool

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/louisbranch/bookclub/internal/app"
	"github.com/louisbranch/bookclub/internal/platform/config"
)

// Config holds cachetool command configuration.
type Config struct {
	CachePath  string
	Timeout    time.Duration
	Migrate    bool
	Stats      bool
	Clear      bool
	JSONOutput bool
}

type envConfig struct {
	CachePath string        `env:"BOOKCLUB_CACHE_PATH" envDefault:"bookclub.db"`
	Timeout   time.Duration `env:"BOOKCLUB_CACHETOOL_TIMEOUT" envDefault:"1m"`
}

// ParseConfig parses flags into a Config, with environment defaults.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	_ = godotenv.Load()

	var envCfg envConfig
	if err := env.Parse(&envCfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := Config{
		CachePath: envCfg.CachePath,
		Timeout:   envCfg.Timeout,
	}
	fs.StringVar(&cfg.CachePath, "cache-path", cfg.CachePath, "path to the cache sqlite database (default: BOOKCLUB_CACHE_PATH or bookclub.db)")
	fs.BoolVar(&cfg.Migrate, "migrate", false, "open the cache and apply pending schema migrations")
	fs.BoolVar(&cfg.Stats, "stats", false, "print cached row counts per kind")
	fs.BoolVar(&cfg.Clear, "clear", false, "wipe every cached row and listing mark")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output JSON")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the cachetool command. Opening the cache migrates it, so
// running with no action still upgrades the schema in place.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if !cfg.Migrate && !cfg.Stats && !cfg.Clear {
		return errors.New("nothing to do: pass -migrate, -stats, or -clear")
	}

	a, err := app.New(config.Config{CachePath: cfg.CachePath}, app.Clients{}, nil)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			fmt.Fprintf(errOut, "close cache: %v\n", closeErr)
		}
	}()

	if cfg.Migrate && !cfg.JSONOutput {
		if applied := a.MigrationsApplied(); applied > 0 {
			fmt.Fprintf(out, "applied %d migrations\n", applied)
		} else {
			fmt.Fprintln(out, "schema up to date")
		}
	}
	if cfg.Clear {
		if err := a.ClearCache(ctx); err != nil {
			return err
		}
		if !cfg.JSONOutput {
			fmt.Fprintln(out, "cache cleared")
		}
	}
	if cfg.Stats {
		stats, err := a.Stats(ctx)
		if err != nil {
			return err
		}
		if cfg.JSONOutput {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}
		fmt.Fprintf(out, "servers:     %d\n", stats.Servers)
		fmt.Fprintf(out, "clubs:       %d\n", stats.Clubs)
		fmt.Fprintf(out, "members:     %d\n", stats.Members)
		fmt.Fprintf(out, "memberships: %d\n", stats.Memberships)
		fmt.Fprintf(out, "sessions:    %d\n", stats.Sessions)
		fmt.Fprintf(out, "books:       %d\n", stats.Books)
		fmt.Fprintf(out, "discussions: %d\n", stats.Discussions)
	}
	return nil
}
