package cmd

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/quickcheck/internal/cmd/config"
	appconfig "github.com/Iron-Ham/quickcheck/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "quickcheck",
	Short: "Vehicle quick-check forms with crash-safe drafts",
	Long: `Quickcheck records vehicle quick-check inspections. Work in progress is
kept as a server-side draft that is autosaved while you type, so an
interrupted inspection can be resumed from any session.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/quickcheck/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "override logging.level (debug, info, warn, error)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	config.Register(rootCmd)
	registerEditCmd(rootCmd)
	registerServeCmd(rootCmd)
	registerSweepCmd(rootCmd)
	registerDraftsCmd(rootCmd)
}

func initConfig() {
	// A .env file in the working directory feeds the QUICKCHECK_* variables
	_ = godotenv.Load()

	// Set defaults first so they're available even without a config file
	appconfig.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// No config type: viper picks config.yaml or config.toml by extension
		viper.SetConfigName("config")
		viper.AddConfigPath(appconfig.ConfigDir())
		viper.AddConfigPath("$HOME/.config/quickcheck")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("QUICKCHECK")
	// Replace dots with underscores for nested keys in env vars
	// e.g., QUICKCHECK_BACKEND_DRIVER for backend.driver
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
