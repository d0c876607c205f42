package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fortuna/internal/backend"
	"fortuna/internal/cli"
	"fortuna/internal/config"
	"fortuna/internal/log"
)

var (
	cfgFile string
	v       = config.New()
)

// app is what a subcommand needs: the wired services and where to print.
type app struct {
	svc     *backend.Services
	out     io.Writer
	cleanup backend.CleanupFunc
}

func (a *app) Close() {
	if a.cleanup != nil {
		if err := a.cleanup(); err != nil {
			fmt.Fprintln(os.Stderr, "cleanup:", err)
		}
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fortuna",
		Short: "Personal finance ledger",
		Long: `fortuna keeps accounts, budgeted categories, a transaction journal and
recurring subscriptions consistent with each other.

Configuration comes from the environment (and .env), an optional config file,
and the flags below, in increasing order of precedence.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}

	// One-shot commands need state that outlives the process, and a quiet log.
	v.SetDefault(config.KeyDataBackend, string(backend.SQLiteBackend))
	v.SetDefault(config.KeyLogLevel, "warn")

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().String("backend", "", "data backend: memory, sqlite or postgres")
	root.PersistentFlags().String("sqlite-path", "", "SQLite database path")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	_ = v.BindPFlag(config.KeyDataBackend, root.PersistentFlags().Lookup("backend"))
	_ = v.BindPFlag(config.KeySQLiteDBPath, root.PersistentFlags().Lookup("sqlite-path"))
	_ = v.BindPFlag(config.KeyLogLevel, root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(accountsCmd())
	root.AddCommand(categoriesCmd())
	root.AddCommand(expenseCmd())
	root.AddCommand(incomeCmd())
	root.AddCommand(transferCmd())
	root.AddCommand(transactionsCmd())
	root.AddCommand(subscriptionsCmd())
	root.AddCommand(processCmd())
	root.AddCommand(reportCmd())
	root.AddCommand(snapshotCmd())
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	config.LoadDotEnv()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("failed to read config: %w", err)
			}
		}
	}
	return nil
}

// openApp validates configuration and opens the backend. Callers must Close it.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg := config.FromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	// Logs go to stderr so command output stays clean.
	logger := log.New(log.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: log.ComponentCLI,
		Output:    os.Stderr,
	})
	log.SetDefault(logger)

	result, svc, err := cli.OpenBackend(cmd.Context(), logger, cfg)
	if err != nil {
		return nil, err
	}
	return &app{svc: svc, out: cmd.OutOrStdout(), cleanup: result.Cleanup}, nil
}
