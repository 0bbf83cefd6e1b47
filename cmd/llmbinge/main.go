// Package main is the entry point for the llmbinge CLI.
//
// The CLI drives the same session manager and orchestrators a UI would:
// sessions and node trees are persisted to the configured store, and
// article tokens stream to stdout as they arrive.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "llmbinge",
	Short: "Explore topics through streamed LLM articles and topic maps",
	Long: `llmbinge grows a tree of generated articles and topic maps per session.

Start a session from a topic, stream an article into its root node, then
branch into aspects, related topics and maps. Everything is persisted to
the configured store (memory://, sqlite://path or redis://host:port/db).

Configuration comes from built-in defaults, an optional config file,
LLMBINGE_* environment variables (LLMBINGE_LLM_API_KEY for the API key)
and overrides saved with "llmbinge config set".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if current == nil {
			return nil
		}
		return current.Close()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of llmbinge",
	// Overrides the root hooks; printing the version needs no store.
	PersistentPreRunE:  func(cmd *cobra.Command, args []string) error { return nil },
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("llmbinge %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./llmbinge.yaml or ~/.config/llmbinge/config.yaml)")
	rootCmd.PersistentFlags().String("store", "", "storage URL, overrides storage.url")
	_ = viper.BindPFlag("storage.url", rootCmd.PersistentFlags().Lookup("store"))

	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	// A missing .env file is normal.
	_ = godotenv.Load()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("llmbinge")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "llmbinge"))
		}
	}

	viper.SetEnvPrefix("LLMBINGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
