// Package main provides rescanctl, the operator CLI for the rescan ledger.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rescan/internal/config"
	"github.com/rescan/internal/logging"
	"github.com/rescan/internal/service"
	"github.com/rescan/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:           "rescanctl",
	Short:         "Operate the rescan points ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		appConfig = cfg
		logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.FormatText)
		// stdout carries command output
		logging.GetGlobalLogger().SetOutput(cmd.ErrOrStderr())
		return nil
	},
}

// appConfig is loaded once before any subcommand runs
var appConfig *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openStores opens the configured database and wires the ledger stores.
// The caller closes the returned handle.
func openStores() (*storage.DB, *service.Stores, error) {
	db, err := storage.Open(&appConfig.Database)
	if err != nil {
		return nil, nil, err
	}
	return db, service.NewStores(db, appConfig.Ledger.MaxAddressLength), nil
}

// openCache connects to Redis when the deployment caches addresses, so that
// writes made here invalidate what the API server serves. The returned close
// func is always safe to call.
func openCache() (*storage.CacheService, func(), error) {
	if !appConfig.Database.Redis.Enabled {
		return nil, func() {}, nil
	}
	redis, err := storage.NewRedisCache(&appConfig.Database.Redis)
	if err != nil {
		return nil, nil, err
	}
	return storage.NewCacheService(redis, appConfig.Cache.TTL), func() { _ = redis.Close() }, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
