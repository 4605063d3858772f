package cli

import (
	"fmt"

	"github.com/pffigueiredo/daily-step-tracker/internal/config"
	"github.com/pffigueiredo/daily-step-tracker/pkg/database"
	"github.com/pffigueiredo/daily-step-tracker/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the daily_steps table and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(rootOpts.ConfigDir)
			if err != nil {
				return err
			}
			return runMigrate(cmd, cfg)
		},
	}
}

func runMigrate(cmd *cobra.Command, cfg *config.Config) error {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	db, err := database.InitDB(&cfg.Database, false)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Log.Error("Failed to close database", zap.Error(err))
		}
	}()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "数据库迁移完成")
	return nil
}
