package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/BearBump/KickSync/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type rootOpts struct {
	configPath string
	envFiles   []string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(defaultSyncFactories()).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(f syncFactories) *cobra.Command {
	opts := &rootOpts{}

	root := &cobra.Command{
		Use:          "kickboard-sync",
		Short:        "Reconcile the kickboard registry with the fleet document store",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			sum, err := RunOnce(cmd.Context(), cfg, f)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sum)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("configPath"), "path to the YAML config (env configPath)")
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, ".env files to load before reading the config")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the ops HTTP server; each POST /trigger runs one reconciliation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			svc, cleanup, err := buildService(cmd.Context(), cfg, f)
			if err != nil {
				return err
			}
			defer cleanup()
			return runSyncHTTPServer(cmd.Context(), syncHTTPOpts{httpAddr: cfg.Sync.HTTPAddr, svc: svc, cfg: cfg})
		},
	})

	return root
}

func (o *rootOpts) load() (*config.Config, error) {
	for _, f := range o.envFiles {
		// отсутствующий .env не ошибка
		_ = godotenv.Load(f)
	}
	if o.configPath == "" {
		o.configPath = os.Getenv("configPath")
	}
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфига, %w", err)
	}
	slog.SetDefault(newLogger(os.Stderr, cfg.Sync.LogLevel, cfg.Sync.LogFormat))
	return cfg, nil
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	ho := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(w, ho))
	}
	return slog.New(slog.NewTextHandler(w, ho))
}
