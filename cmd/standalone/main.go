package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "stockd",
		Short:        "Adobe Stock integration service for the admin panel",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", getEnv("CONFIG_PATH", "config.yaml"), "path to the yaml config file")

	load := func() (*AppConfig, error) {
		return loadConfig(configPath)
	}

	root.AddCommand(
		newServeCmd(load),
		newMigrateCmd(load),
		newAssetsCmd(load),
		newAdminTokenCmd(load),
	)

	return root
}

type configLoader func() (*AppConfig, error)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
