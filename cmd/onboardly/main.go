package main

import (
	"fmt"
	"log"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/rahul/onboardly/internal/browser"
	"github.com/rahul/onboardly/internal/governance"
	"github.com/rahul/onboardly/internal/observability"
	"github.com/rahul/onboardly/internal/store"
	"github.com/rahul/onboardly/internal/tour"
	"github.com/rahul/onboardly/pkg/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "onboardly",
	Short:        "Guided product tours for any web page",
	Long:         "onboardly drives a browser tab through a step-by-step tour: spotlight, panel, progress that survives reloads, and lifecycle analytics.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "path to the config file")
	rootCmd.AddCommand(runCmd, validateCmd, schemaCmd, progressCmd)
}

func main() {
	// Route all log output through the terminal mutex so it never
	// interleaves with the live status line.
	log.SetOutput(observability.NewTermWriter())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildPolicy(cfg *config.Config) (governance.PolicyEngine, error) {
	policy := governance.NewDefinitionPolicy(cfg.Tours.MinSteps)
	for _, pattern := range cfg.Tours.DeniedSelectors {
		if err := policy.DenySelectors(pattern); err != nil {
			return nil, fmt.Errorf("tours.denied_selectors: %w", err)
		}
	}
	return policy, nil
}

func buildSource(cfg *config.Config, policy governance.PolicyEngine) tour.Source {
	if cfg.Tours.Source == "remote" {
		src := tour.NewRemoteSource(cfg.Tours.Endpoint, policy)
		if cfg.Tours.QueryPath != "" {
			src.QueryPath = cfg.Tours.QueryPath
		}
		return src
	}
	return tour.NewFileSource(cfg.Tours.Dir, policy)
}

// openStore returns the configured progress store and a function releasing
// it. The "local" store needs a running browser session.
func openStore(cfg *config.Config, session *browser.Session) (store.Store, func(), error) {
	noop := func() {}
	switch cfg.Progress.Type {
	case "local":
		if session == nil {
			return nil, noop, fmt.Errorf("progress.type %q is only available while a tour runs", cfg.Progress.Type)
		}
		return browser.NewLocalStorage(session), noop, nil
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.Progress.Path)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { s.Close() }, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Progress.RedisAddr})
		return store.NewRedisStore(client, cfg.Progress.RedisKey), func() { client.Close() }, nil
	default:
		return store.NewMemoryStore(), noop, nil
	}
}
