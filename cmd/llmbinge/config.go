package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/llmbinge/pkg/llmbinge/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and edit the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := current.cfg
		if cfg.LLM.APIKey != "" {
			cfg.LLM.APIKey = "<redacted>"
		}
		view := map[string]any{
			"llm": map[string]any{
				"endpoint":    cfg.LLM.Endpoint,
				"model":       cfg.LLM.Model,
				"temperature": cfg.LLM.Temperature,
				"max_tokens":  cfg.LLM.MaxTokens,
				"top_p":       cfg.LLM.TopP,
				"api_key":     cfg.LLM.APIKey,
			},
			"aspects":    map[string]any{"fixed": cfg.Aspects},
			"topics":     map[string]any{"starters": cfg.StarterTopics},
			"generation": map[string]any{"debounce": cfg.Generation.DebounceWindow.String(), "max_pending_tokens": cfg.Generation.MaxPendingTokens},
			"log":        map[string]any{"level": cfg.Log.Level, "format": cfg.Log.Format},
			"storage":    map[string]any{"url": cfg.Storage.URL},
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(view); err != nil {
			return err
		}
		return enc.Close()
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Save a configuration override",
	Long: `Set stores an override in the configured store. Keys are dotted paths such
as llm.model or generation.debounce. Values are parsed as YAML, so
"0.9" is a number and "[History, Art]" a list.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := checkOverrideKey(key); err != nil {
			return err
		}
		return current.saveOverrides(cmd, current.overrides.Set(key, config.ParseValue(value)))
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset stored overrides to the file and environment settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := config.Decode(current.layered)
		if err != nil {
			return err
		}
		return current.saveOverrides(cmd, defaults.Overrides())
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configResetCmd)
	rootCmd.AddCommand(configCmd)
}

// checkOverrideKey rejects keys that must not live in the store.
func checkOverrideKey(key string) error {
	switch {
	case key == "llm.api_key":
		return fmt.Errorf("the API key is read from LLMBINGE_LLM_API_KEY and is never stored")
	case strings.HasPrefix(key, "storage."):
		return fmt.Errorf("the store location cannot be stored in the store; use --store or the config file")
	}
	return nil
}

// saveOverrides validates overrides on top of the layered config and
// persists them.
func (a *app) saveOverrides(cmd *cobra.Command, overrides config.Config) error {
	if _, err := config.Resolve(a.layered, overrides); err != nil {
		return err
	}
	if err := a.store.SaveConfigOverrides(cmd.Context(), overrides.Raw()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Saved.")
	return nil
}
