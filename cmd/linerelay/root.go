package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/valinor-ai/linerelay/internal/platform/config"
)

const version = "0.1.0"

type rootOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "linerelay",
		Short:        "Signed LINE webhook relay with encrypted replies",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(opts.envFile)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "optional YAML config file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before config (existing variables win)")

	serve := serveCmd(opts)
	root.RunE = serve.RunE
	root.AddCommand(serve, signCmd(opts), encryptCmd(opts), decryptCmd(opts))
	return root
}

// loadEnvFile loads a dotenv file if present. Variables already set in the
// environment are not overridden.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
