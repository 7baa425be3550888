package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/handsomefox/tv-discover/internal/config"
	"github.com/handsomefox/tv-discover/internal/logger"
	"github.com/handsomefox/tv-discover/internal/store"
	"github.com/handsomefox/tv-discover/internal/tmdb"
	"github.com/handsomefox/tv-discover/internal/watchlist"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

var (
	apiKey     string
	jsonOutput bool
	v          = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "tvdiscover",
	Short: "Browse, filter and save TV shows from the terminal",
	Long: `tvdiscover - TV discovery from the terminal

Runs the same queries as the dashboard and manages the shared watchlist.
Run 'tvdiscover serve' to start the dashboard server.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to the sqlite database (default from DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "TMDB API key or read token (default: stored credential)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cobra.CheckErr(v.BindPFlag("db_path", rootCmd.PersistentFlags().Lookup("db")))

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("tvdiscover {{.Version}}\n")
}

// env is what every command needs. Close releases the database.
type env struct {
	cfg   config.Config
	log   *slog.Logger
	store *store.Store
}

func openEnv() (*env, error) {
	cfg, err := config.New(v)
	if err != nil {
		return nil, err
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log := logger.NewWithWriter(os.Stderr, logger.Options{Level: max(level, slog.LevelWarn)})

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return &env{cfg: cfg, log: log, store: st}, nil
}

func (e *env) Close() error { return e.store.Close() }

func (e *env) watchlist() *watchlist.Persistent {
	return watchlist.NewPersistent(e.store, e.log)
}

// client resolves the credential from the flag, the stored credential or the
// environment, in that order.
func (e *env) client(ctx context.Context) (*tmdb.Client, error) {
	credential := strings.TrimSpace(apiKey)
	if credential == "" {
		stored, err := e.store.Credential(ctx)
		if err != nil {
			return nil, err
		}
		credential = stored
	}
	if credential == "" {
		credential = strings.TrimSpace(e.cfg.TMDBAPIKey)
	}
	if credential == "" {
		return nil, errors.New("no credential: pass --api-key, set TMDB_API_KEY or store one from the dashboard")
	}
	return tmdb.New(credential, tmdb.WithBaseURL(e.cfg.TMDBBaseURL)), nil
}

// withEnv opens the environment for the duration of fn.
func withEnv(fn func(cmd *cobra.Command, args []string, e *env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, e.Close())
		}()
		return fn(cmd, args, e)
	}
}
