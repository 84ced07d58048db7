package main

import (
	"github.com/spf13/cobra"

	"github.com/Gopher0727/AltMur/internal/storage"
)

var uniqueMembership bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Create every table, index and foreign key the models declare.

The unique (user_id, room_id) index on room_members is created with
--unique-membership (or repository.unique_membership in the config) and
dropped otherwise.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, provider, cleanup, err := bootstrap()
		if err != nil {
			return err
		}
		defer cleanup()

		opts := storage.MigrateOptions{UniqueMembership: cfg.Repository.UniqueMembership}
		if cmd.Flags().Changed("unique-membership") {
			opts.UniqueMembership = uniqueMembership
		}
		if err := provider.Migrate(cmd.Context(), opts); err != nil {
			return err
		}
		log.Info("migration complete")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&uniqueMembership, "unique-membership", false, "enforce one membership per user and room")
}
