package main

import (
	"github.com/digitaltembo/Crime-And-Dining/config"
	"github.com/digitaltembo/Crime-And-Dining/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type globalFlags struct {
	configPath string
	logLevel   string
	dev        bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "riskjoin",
		Short:         "Score food establishments by nearby crime incidents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&g.dev, "dev", false, "Human readable console logs")

	root.AddCommand(newRunCmd(g), newGeocodeCmd(g), newNearCmd(g))
	return root
}

// load reads the configuration and builds the logger. Flag values override
// the file.
func (g *globalFlags) load() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return cfg, nil, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.dev {
		cfg.Log.Development = true
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}
