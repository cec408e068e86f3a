// Package config loads process configuration from the environment.
package config

import (
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the cache layer needs from the environment.
// TTL overrides exist for development; zero values defer to the per-kind
// defaults.
type Config struct {
	CachePath string `env:"BOOKCLUB_CACHE_PATH" envDefault:"bookclub.db"`
	APIBase   string `env:"BOOKCLUB_API_BASE" envDefault:"https://api.bookclub.example"`
	LogLevel  string `env:"BOOKCLUB_LOG_LEVEL" envDefault:"info"`

	ServerTTL     time.Duration `env:"BOOKCLUB_TTL_SERVER"`
	ClubTTL       time.Duration `env:"BOOKCLUB_TTL_CLUB"`
	MemberTTL     time.Duration `env:"BOOKCLUB_TTL_MEMBER"`
	SessionTTL    time.Duration `env:"BOOKCLUB_TTL_SESSION"`
	BookTTL       time.Duration `env:"BOOKCLUB_TTL_BOOK"`
	DiscussionTTL time.Duration `env:"BOOKCLUB_TTL_DISCUSSION"`
}

// Load reads an optional .env file, then parses the environment. A missing
// .env file is not an error.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
