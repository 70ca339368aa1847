// Command exchange-rate-mcp-http starts the exchange rate tools server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	daemon "github.com/sevlyar/go-daemon"
	"github.com/spf13/cobra"

	"exchange-rate-mcp/internal/config"
	"exchange-rate-mcp/internal/limiter"
	"exchange-rate-mcp/internal/logger"
	"exchange-rate-mcp/internal/metrics"
	"exchange-rate-mcp/internal/server"
)

var (
	daemonMode bool
	configPath string
	pidFile    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "exchange-rate-mcp-http",
		Short:         "Exchange rate tools server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if daemonMode {
				cntxt := &daemon.Context{
					PidFileName: pidFile,
					PidFilePerm: 0644,
				}
				child, err := cntxt.Reborn()
				if err != nil {
					return err
				}
				if child != nil {
					return nil
				}
				defer cntxt.Release()
			}
			return run(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().BoolVar(&daemonMode, "daemon", false, "run in background")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultEnvFile, "path to .env file")
	rootCmd.PersistentFlags().StringVar(&pidFile, "pid-file", "exchange-rate-mcp.pid", "pid file used with --daemon")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	lg := logger.New(cfg.Log)
	log.SetDefault(lg)

	if cfg.Token == "" {
		lg.Warn("MCP_TOKEN not set; /tools is open. Set MCP_TOKEN to secure it.")
	}
	if cfg.Exchange.APIKey == "" {
		lg.Info("EXCHANGE_API_KEY not set; using the keyless upstream.")
	}

	var rdb *redis.Client
	if cfg.RateLimit.Enabled && cfg.RateLimit.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis %s: %w", cfg.RateLimit.RedisAddr, err)
		}
		lg.Info("rate limits shared through redis", "addr", cfg.RateLimit.RedisAddr)
	}
	limCfg := limiter.Config{
		Enabled:           cfg.RateLimit.Enabled,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		Window:            cfg.RateLimit.Window,
	}
	if rdb != nil {
		limCfg.Redis = rdb
	}

	cache, err := server.NewCache(cfg.Cache)
	if err != nil {
		return fmt.Errorf("create cache: %w", err)
	}
	defer cache.Close()

	lim := limiter.New(limCfg)
	defer lim.Close()

	srv := server.New(server.Options{
		Config:  cfg,
		Cache:   cache,
		Limiter: lim,
		Metrics: metrics.New(),
		Logger:  logger.ForComponent(lg, "server"),
	})
	return srv.Run(ctx)
}
