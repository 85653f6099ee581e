package main

import (
	"github.com/spf13/cobra"

	"github.com/rrapp/rentchat/internal/store/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer st.Close()

		logger.Info().Str("db_path", cfg.DatabasePath).Msg("schema applied")
		return nil
	},
}
