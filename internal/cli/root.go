// Package cli implements the loomtest command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loom-data/loomtest/internal/config"
)

var (
	cfgFile string
	verbose bool
	jsonOut bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "loomtest",
	Short: "Harness utilities for loom integration testing",
	Long: `loomtest manages the scaffolding around loom integration tests:
ephemeral project trees, test database schemas, and the artifacts the
functional suites assert on.

Quick start:
  loomtest doctor                     Verify tool binary and database access
  loomtest scaffold fixtures.yml dir  Write a fixture project tree
  loomtest report target/sources.json Summarize a freshness report
  loomtest clean                      Drop leftover test schemas`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initViper)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is loomtest.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON")

	rootCmd.AddCommand(newDoctorCmd())
	rootCmd.AddCommand(newScaffoldCmd())
	rootCmd.AddCommand(newCleanCmd())
	rootCmd.AddCommand(newReportCmd())
}

// initViper sets up the config-file lookup and the LOOM_TEST_* env
// namespace so ad-hoc overrides work without a config file.
func initViper() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("loomtest")
	}

	viper.SetEnvPrefix("LOOM_TEST")
	viper.AutomaticEnv()
	bindConfigKeys()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// bindConfigKeys registers the default and the flat LOOM_TEST_* variable
// for every config key, so Unmarshal sees all of them even when neither a
// config file nor the environment provides a value.
func bindConfigKeys() {
	def := config.Default()

	for key, value := range map[string]any{
		"database.host":        def.Database.Host,
		"database.port":        def.Database.Port,
		"database.user":        def.Database.User,
		"database.password":    def.Database.Password,
		"database.dbname":      def.Database.DBName,
		"database.sslmode":     def.Database.SSLMode,
		"database.max_conns":   def.Database.MaxConns,
		"tool.bin":             def.Tool.Bin,
		"tool.timeout":         def.Tool.Timeout,
		"harness.logs_dir":     def.Harness.LogsDir,
		"harness.history_path": def.Harness.HistoryPath,
		"harness.keep_schemas": def.Harness.KeepSchemas,
	} {
		viper.SetDefault(key, value)
	}

	// The library's env layer uses flat names (LOOM_TEST_HOST, not
	// LOOM_TEST_DATABASE_HOST); bind the same names here.
	for key, env := range map[string]string{
		"database.host":        "HOST",
		"database.port":        "PORT",
		"database.user":        "USER",
		"database.password":    "PASS",
		"database.dbname":      "DBNAME",
		"database.sslmode":     "SSLMODE",
		"tool.bin":             "BIN",
		"tool.timeout":         "TIMEOUT",
		"harness.logs_dir":     "LOGS_DIR",
		"harness.history_path": "HISTORY_PATH",
		"harness.keep_schemas": "KEEP_SCHEMAS",
	} {
		if err := viper.BindEnv(key, config.EnvPrefix+env); err != nil {
			panic(err) // only fails on an empty key
		}
	}
}

// loadConfig resolves the layered harness configuration for subcommands:
// viper defaults, then the config file, then LOOM_TEST_* env overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	err := viper.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		// The config struct is tagged for the library's yaml loader.
		dc.TagName = "yaml"
	})
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
