// Command showbot runs the show promotion service: the web pages, the
// inbound mailbox poller and a few maintenance commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nhle/showbot/internal/credential"
	"github.com/nhle/showbot/internal/logging"
	"github.com/nhle/showbot/internal/model"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	env        string
	logLevel   string
	logFormat  string
}

// app is the state every subcommand starts from.
type app struct {
	flags  *globalFlags
	cfg    *model.AppConfig
	vault  credential.Vault
	logger *log.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	a := &app{flags: flags}

	cmd := &cobra.Command{
		Use:           "showbot",
		Short:         "Promo codes for show members, redeemed by email",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", model.DefaultConfigPath(), "Config file")
	cmd.PersistentFlags().StringVar(&flags.env, "env", model.Environment(), "Environment profile (production, development, test)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", os.Getenv("LOG_LEVEL"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", os.Getenv("LOG_FORMAT"), "Log format (text, json, logfmt)")

	cmd.AddCommand(
		newServeCmd(a),
		newScanCmd(a),
		newParseCmd(a),
		newPromoCmd(a),
		newSetupCmd(a),
		newHistoryCmd(a),
	)

	return cmd
}

// load reads the config, fills secrets from the keyring and builds the
// logger.
func (a *app) load() error {
	cfg, err := model.LoadConfig(a.flags.configPath, a.flags.env)
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if a.flags.logLevel != "" {
		level = a.flags.logLevel
	}
	format := cfg.Log.Format
	if a.flags.logFormat != "" {
		format = a.flags.logFormat
	}
	logger, err := logging.New(os.Stderr, level, format)
	if err != nil {
		return err
	}
	log.SetDefault(logger)

	a.cfg = cfg
	a.logger = logger
	a.vault = openVault(cfg, logger)

	if filled := credential.Fill(a.vault, cfg); len(filled) > 0 {
		logger.Debug("loaded secrets from keyring", "keys", filled)
	}
	return nil
}

// openVault returns the system keyring, or an in-memory vault in the test
// environment or when no keyring backend is usable.
func openVault(cfg *model.AppConfig, logger *log.Logger) credential.Vault {
	if cfg.Environment == "test" {
		return credential.MemoryVault{}
	}
	ring, err := credential.Open()
	if err != nil {
		logger.Warn("keyring unavailable, secrets will not persist", "err", err)
		return credential.MemoryVault{}
	}
	return ring
}
