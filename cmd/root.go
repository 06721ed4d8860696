package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/provider-verify/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "provider-verify",
	Short: "Healthcare provider record verification",
	Long:  "Looks up healthcare providers in national registries (US NPPES, India HPR), scores caller-supplied records against the registry, and keeps a per-user directory of verified providers.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if userFlag != "" {
			cfg.User = userFlag
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

var userFlag string

func main() {
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "caller identity for CLI operations (default from config)")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
