package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantumiracle/tiktok-apify/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tiktok-apify",
	Short: "TikTok influencer discovery pipeline",
	Long:  "Searches topic hashtags through Apify actors, retrieves the posting accounts' profiles, extracts contact emails from bios, and exports the filtered results.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
