package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lexcodex/wayforward/agents"
)

var (
	flagWorkspace string
	flagConfig    string
	flagProvider  string
	flagModel     string
	flagVerbose   bool

	globalCfg *agents.Config
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wayforward",
		Short:         "Turn a free-text idea into a structured idea form",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagWorkspace == "" {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				flagWorkspace = wd
			}
			if flagConfig == "" {
				flagConfig = agents.DefaultConfigPath(flagWorkspace)
			}
			cfg, err := agents.LoadConfig(flagConfig)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if cfg == nil {
				cfg = agents.DefaultConfig()
			}
			applyOverrides(cfg)
			globalCfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&flagWorkspace, "workspace", "", "Workspace directory (config and run history live under it)")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config.yaml")
	root.PersistentFlags().StringVar(&flagProvider, "provider", envOrDefault("WAYFORWARD_PROVIDER", ""), "LLM provider: openai, ollama or gemini")
	root.PersistentFlags().StringVar(&flagModel, "model", envOrDefault("WAYFORWARD_MODEL", ""), "Model name")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", envBool("WAYFORWARD_DEBUG"), "Debug logging")

	root.AddCommand(
		newAnalyzeCmd(),
		newImproveCmd(),
		newServeCmd(),
		newRunsCmd(),
		newConfigCmd(),
	)
	return root
}

// applyOverrides layers flags and environment over the loaded file.
func applyOverrides(cfg *agents.Config) {
	if flagProvider != "" {
		cfg.Model.Provider = flagProvider
	}
	if flagModel != "" {
		cfg.Model.Name = flagModel
	}
	if endpoint := os.Getenv("OLLAMA_ENDPOINT"); endpoint != "" && cfg.Model.Provider == "ollama" {
		cfg.Model.BaseURL = endpoint
	}
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" && cfg.Model.Provider == "openai" {
		cfg.Model.BaseURL = base
	}
	if flagVerbose {
		cfg.Logging.Level = "debug"
	}
}

// apiKey picks the credential for the configured provider.
func apiKey(provider string) string {
	switch strings.ToLower(provider) {
	case "gemini":
		return envOrDefault("GEMINI_API_KEY", os.Getenv("GOOGLE_API_KEY"))
	case "ollama":
		return ""
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
