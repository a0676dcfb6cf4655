package main

import (
	"github.com/spf13/cobra"
	"github.com/tnqbao/gau-media-service/config"
	"github.com/tnqbao/gau-media-service/infra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the media table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.LoadEnvConfig()
			postgres := infra.InitPostgresClient(cfg)
			if err := infra.Migrate(postgres.DB); err != nil {
				return err
			}
			cmd.Println("Media table is up to date")
			return nil
		},
	}
}
