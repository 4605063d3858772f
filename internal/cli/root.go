package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions 所有子命令共享的参数
type RootOptions struct {
	ConfigDir string
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	serve := NewServeCommand(opts)

	cmd := &cobra.Command{
		Use:           "daily-step-tracker",
		Short:         "Daily step tracker backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		// 不带子命令时等同于 serve
		RunE: serve.RunE,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "config", "configs", "directory containing config.yaml")
	cmd.Flags().AddFlagSet(serve.Flags())

	cmd.AddCommand(serve)
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

// Execute 供 main 调用
func Execute() error {
	return NewRootCommand().Execute()
}
