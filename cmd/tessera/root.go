package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/tessera"
	"github.com/aretw0/tessera/internal/demo"
	"github.com/aretw0/tessera/internal/logging"
	"github.com/aretw0/tessera/pkg/adapters/redis"
	"github.com/aretw0/tessera/pkg/config"
	"github.com/aretw0/tessera/pkg/domain"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tessera",
	Short: "Tessera is a modular state container",
	Long: `Tessera composes namespaced reducers into one store and loads
feature segments on demand. The command serves the demo container over HTTP
or drives it from the shell.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "tessera.yaml", "Configuration file (yaml or json)")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level")
}

// setup loads the configuration and builds the logger.
func setup(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Log.Format, level), nil
}

// newContainer builds the demo container from cfg and preloads the
// configured segments. The returned function releases it.
func newContainer(ctx context.Context, cfg config.Config, logger *slog.Logger, hooks domain.LifecycleHooks) (*tessera.Container, func(), error) {
	opts := []tessera.Option{
		tessera.WithLogger(logger),
		tessera.WithLifecycleHooks(hooks),
		tessera.WithLockTTL(cfg.LockTTL()),
	}

	var locker *redis.Locker
	if cfg.Redis.Addr != "" {
		l, err := redis.NewLockerFromAddr(ctx, cfg.Redis.Addr, redis.WithPrefix(cfg.Redis.Prefix))
		if err != nil {
			return nil, nil, err
		}
		locker = l
		opts = append(opts, tessera.WithLocker(locker))
		logger.Info("Segment locks enabled", "redis", cfg.Redis.Addr)
	}

	c, err := demo.New(opts...)
	if err != nil {
		if locker != nil {
			_ = locker.Close()
		}
		return nil, nil, err
	}

	release := func() {
		c.Destroy()
		if locker != nil {
			if err := locker.Close(); err != nil {
				logger.Warn("Failed to close redis client", "err", err)
			}
		}
	}

	if len(cfg.Segments.Preload) > 0 {
		if _, err := c.LoadSegments(ctx, cfg.Segments.Preload); err != nil {
			release()
			return nil, nil, fmt.Errorf("preload failed: %w", err)
		}
	}
	return c, release, nil
}
