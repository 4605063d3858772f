package cli

import (
	"github.com/pffigueiredo/daily-step-tracker/internal/app"
	"github.com/pffigueiredo/daily-step-tracker/internal/config"
	"github.com/spf13/cobra"
)

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server.

Migrations run automatically in debug mode; use --migrate to force
them in release mode.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(rootOpts.ConfigDir)
			if err != nil {
				return err
			}
			cfg.ForceMigrate = migrate

			application, err := app.NewApp(cfg)
			if err != nil {
				return err
			}
			return application.Run()
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "run database migrations at startup even in release mode")

	return cmd
}
