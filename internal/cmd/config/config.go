// Package config provides CLI commands for managing quickcheck configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	appconfig "github.com/Iron-Ham/quickcheck/internal/config"
)

var (
	showFormat string
	initFormat string
	initForce  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or create quickcheck configuration",
	Long: `View or create quickcheck configuration.

Without arguments, displays the effective configuration: defaults merged
with the config file, a .env file in the working directory and
QUICKCHECK_* environment variables.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long: `Create a config file with every option set to its default.

The file is written to ~/.config/quickcheck/config.yaml, or config.toml with
--format toml.`,
	RunE: runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.PersistentFlags().StringVar(&showFormat, "format", appconfig.FormatYAML, "output format (yaml, toml)")
	configInitCmd.Flags().StringVar(&initFormat, "format", appconfig.FormatYAML, "file format (yaml, toml)")
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(themeCmd)
}

// Register adds the config command tree to the given parent command.
// This is the main entry point for integrating the config subpackage with
// the root command.
func Register(parent *cobra.Command) {
	parent.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if !appconfig.IsValidFormat(showFormat) {
		return fmt.Errorf("unknown format %q (valid: %v)", showFormat, appconfig.ValidFormats())
	}
	cfg, err := appconfig.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	data, err := appconfig.Marshal(cfg, showFormat)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# Config file: %s\n", used)
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}
	_, err = out.Write(data)
	return err
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if !appconfig.IsValidFormat(initFormat) {
		return fmt.Errorf("unknown format %q (valid: %v)", initFormat, appconfig.ValidFormats())
	}
	configFile := appconfig.ConfigFileFor(initFormat)

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil && !initForce {
		return fmt.Errorf("config file already exists at %s\nUse --force to overwrite it", configFile)
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := appconfig.Marshal(appconfig.Default(), initFormat)
	if err != nil {
		return err
	}
	header := "# quickcheck configuration\n# Environment variables override these values, e.g. QUICKCHECK_BACKEND_DRIVER.\n\n"
	if err := os.WriteFile(configFile, append([]byte(header), data...), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Edit this file to customize quickcheck's behavior.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", appconfig.ConfigFile())
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths (config.yaml or config.toml):")
	fmt.Fprintf(out, "  1. %s\n", appconfig.ConfigDir())
	fmt.Fprintf(out, "  2. $HOME/.config/quickcheck\n")
	fmt.Fprintf(out, "  3. . (current directory)\n")
	fmt.Fprintf(out, "\nData directory: %s\n", appconfig.DataDir())
	fmt.Fprintln(out, "\nEnvironment variables: QUICKCHECK_* (e.g., QUICKCHECK_BACKEND_DRIVER), also read from ./.env")
	return nil
}
