package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/provider-verify/internal/config"
	"github.com/sells-group/provider-verify/internal/registry"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config.yaml in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		const path = "config.yaml"

		if !initForce {
			if _, err := os.Stat(path); err == nil {
				return eris.Errorf("%s already exists (use --force to overwrite)", path)
			}
		}

		starter := config.Config{
			Store: config.StoreConfig{
				Driver:      "sqlite",
				DatabaseURL: "provider-verify.db",
			},
			Registry: config.RegistryConfig{
				USBaseURL:   registry.DefaultUSBaseURL,
				INBaseURL:   registry.DefaultINBaseURL,
				TimeoutSecs: 15,
			},
			Cache:  config.CacheConfig{TTLHours: 168},
			Server: config.ServerConfig{Port: 8080},
			Monitoring: config.MonitoringConfig{
				CheckIntervalSecs:     300,
				LookbackWindowHours:   24,
				LowScoreRateThreshold: 0.5,
			},
			Log:  config.LogConfig{Level: "info", Format: "json"},
			User: "local",
		}

		data, err := yaml.Marshal(&starter)
		if err != nil {
			return eris.Wrap(err, "marshal config")
		}
		if err := os.WriteFile(path, data, 0600); err != nil {
			return eris.Wrap(err, "write config")
		}

		zap.L().Info("wrote starter config", zap.String("path", path))
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config.yaml")
	rootCmd.AddCommand(initCmd)
}
