package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/carbonintel/internal/logging"
	"github.com/ppiankov/carbonintel/internal/model"
	"github.com/ppiankov/carbonintel/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	verbose bool

	// version is set at build time with -ldflags "-X .../internal/cli.version=..."
	version = "v0.1.0"
)

// envKeys are the config keys that may be set through CARBONINTEL_* variables
var envKeys = []string{
	"store.driver",
	"store.path",
	"store.dsn",
	"store.table",
	"store.cache_ttl",
	"logging.level",
	"logging.format",
	"concurrency.workers",
	"extraction.rules_file",
	"metrics.textfile",
	"query.default_days",
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "carbonintel",
	Short: "carbonintel - carbon market intelligence extraction and scoring",
	Long: `carbonintel turns raw announcement text into structured, deduplicated and
scored intelligence records.

It extracts corporate climate commitments and climate-tech funding events with
pattern rules, merges repeated sightings of the same event, scores each record
for relevance, competitive threat and partnership opportunity, and answers
time-window queries over the result.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "carbonintel %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.carbonintel/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(filepath.Join(home, ".carbonintel"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match CARBONINTEL_*, e.g. CARBONINTEL_STORE_DSN
	viper.SetEnvPrefix("CARBONINTEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig layers the config file and environment over the defaults
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// runtimeEnv bundles what every data command needs
type runtimeEnv struct {
	cfg    *model.Config
	logger *zap.Logger
	store  store.Store
}

// setup loads config, builds the logger and opens the store. The returned
// cleanup closes the store and flushes the logger.
func setup(ctx context.Context) (*runtimeEnv, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}

	s, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	cleanup := func() {
		if err := store.Close(s); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
		_ = logger.Sync()
	}
	return &runtimeEnv{cfg: cfg, logger: logger, store: s}, cleanup, nil
}
