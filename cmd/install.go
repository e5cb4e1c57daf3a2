package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/talking-avatar/internal/installer"
)

func newInstallRhubarbCommand(opts *rootOptions) *cobra.Command {
	config := installer.RhubarbConfig{}

	cmd := &cobra.Command{
		Use:   "install-rhubarb",
		Short: "Download the rhubarb lip-sync analyzer into the bin directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(opts.debug)
			if err != nil {
				return err
			}
			defer logger.Sync()

			path, err := installer.NewRhubarbInstaller(config, nil, logger).Install(cmd.Context())
			if err != nil {
				return err
			}

			logger.Info("Set RHUBARB_PATH if the server runs from another directory", zap.String("path", path))
			return nil
		},
	}

	cmd.Flags().StringVar(&config.BinDir, "bin-dir", "bin", "installation directory")
	cmd.Flags().StringVar(&config.Version, "version", installer.RhubarbVersion, "rhubarb release to install")
	return cmd
}
