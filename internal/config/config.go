// Package config loads service settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	_ "github.com/joho/godotenv/autoload"
)

type Environment string

const (
	Local      Environment = "local"
	Production Environment = "production"
)

func (e Environment) Valid() bool {
	switch e {
	case Local, Production:
		return true
	}
	return false
}

// Secure reports whether cookies must be marked Secure and cross-site.
func (e Environment) Secure() bool { return e == Production }

type Config struct {
	Env    Environment `mapstructure:"env" validate:"oneof=local production"`
	Port   int         `mapstructure:"port" validate:"min=1,max=65535"`
	DBPath string      `mapstructure:"db_path" validate:"required"`

	// TMDBAPIKey seeds the stored credential when none is stored yet.
	TMDBAPIKey    string `mapstructure:"tmdb_api_key"`
	TMDBBaseURL   string `mapstructure:"tmdb_base_url" validate:"required,url"`
	TMDBImageBase string `mapstructure:"tmdb_image_base" validate:"required,url"`

	SearchDebounce        time.Duration `mapstructure:"search_debounce" validate:"min=0"`
	FilterDebounce        time.Duration `mapstructure:"filter_debounce" validate:"min=0"`
	WatchlistSyncInterval time.Duration `mapstructure:"watchlist_sync_interval" validate:"gt=0"`

	LogLevel    string   `mapstructure:"log_level" validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
	LogFile     string   `mapstructure:"log_file"`
	CORSOrigins []string `mapstructure:"cors_origins" validate:"dive,required"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("env", string(Local))
	v.SetDefault("port", 8080)
	v.SetDefault("db_path", "data/tv-discover.db")
	v.SetDefault("tmdb_api_key", "")
	v.SetDefault("tmdb_base_url", "https://api.themoviedb.org")
	v.SetDefault("tmdb_image_base", "https://image.tmdb.org/t/p/w342")
	v.SetDefault("search_debounce", 500*time.Millisecond)
	v.SetDefault("filter_debounce", 600*time.Millisecond)
	v.SetDefault("watchlist_sync_interval", 2*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("cors_origins", []string{})
}

// New reads the configuration from v. Every key can be overridden by the
// upper-cased environment variable of the same name, e.g. DB_PATH.
func New(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	c.Env = Environment(strings.ToLower(strings.TrimSpace(string(c.Env))))
	if !c.Env.Valid() {
		c.Env = Local
	}

	if err := validator.New().Struct(c); err != nil {
		return c, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
