package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/talking-avatar/internal/config"
)

type rootOptions struct {
	envFile string
	debug   bool
}

func main() {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "talking-avatar",
		Short:         "Backend for a lip-synced talking avatar",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "use the development logger")

	serve := newServeCommand(opts)
	root.AddCommand(
		serve,
		newInstallRhubarbCommand(opts),
		newSayCommand(opts),
		newChatCommand(opts),
	)

	// serve is the default command
	root.RunE = serve.RunE

	if err := root.Execute(); err != nil {
		logger, _ := zap.NewProduction()
		logger.Error("Command failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// setup loads the configuration and builds the logger every command shares
func setup(opts *rootOptions) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(opts.debug || cfg.Debug)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
