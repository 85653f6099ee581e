package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rrapp/rentchat/internal/config"
	"github.com/rrapp/rentchat/internal/log"
)

var (
	cfgFile  string
	logLevel string
	addr     string

	cfg    config.Config
	logger *zerolog.Logger
)

// rootCmd runs the chat server when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:           "rentchat",
	Short:         "Real-time chat server for the rental marketplace",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml or $RENTCHAT_CONFIG_DEFAULT_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "HTTP listen address")

	rootCmd.AddCommand(serveCmd, migrateCmd, userCmd, listingCmd)
}

// loadConfig resolves configuration: defaults < file < env < flags.
func loadConfig() error {
	bootstrap := log.New("info")

	loaded, path, err := config.Load(bootstrap, cfgFile)
	if err != nil {
		return err
	}
	loaded.UpdateFrom(config.Config{Addr: addr, LogLevel: logLevel})

	cfg = loaded
	logger = log.New(cfg.LogLevel)
	logger.Debug().Str("config_path", path).Msg("configuration loaded")
	return nil
}
