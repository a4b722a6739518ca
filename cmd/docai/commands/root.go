// Package commands defines all Cobra CLI commands for the docai binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/docai-go/internal/audit"
	"github.com/54b3r/docai-go/internal/config"
	"github.com/54b3r/docai-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// envFile holds the --env-file flag value.
var envFile string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docai",
		Short: "docai: chat with your documents",
		Long: `docai is a document assistant backend. It extracts text from uploaded
documents, indexes them for retrieval-augmented generation and answers
questions about them through hosted or local language models.

It also generates SVG illustrations, runs OCR on images and answers code and
documentation questions.

The model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.docai/config.yaml).
See 'docai --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			if err := config.LoadDotEnv(envFile, log); err != nil {
				return err
			}

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.docai/config.yaml)")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file (default: ./.env)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewAskCmd(),
		NewVersionCmd(),
	)

	return root
}
