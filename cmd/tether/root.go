package main

import (
	"github.com/spf13/cobra"

	"github.com/tetherhq/tether/internal/cli"
)

var (
	// Global state set during PersistentPreRunE
	cfg        *cli.Config
	configPath string

	// Persistent flags
	cfgFile string
	verbose int
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "tether",
	Short: "Foreign-key transparency for entity persistence",
	Long: `tether - Foreign-key transparency for entity persistence

Tether keeps foreign keys honest during flushes: it detects unsaved
entities and nullifies dangling references before rows are written. This
CLI validates mapping documents, generates descriptor registries, and
checks that the database agrees with the mapping.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for help/completion/version commands
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, configPath, err = cli.LoadConfig(cfgFile)
		if err != nil {
			return cli.ConfigError("loading configuration", err)
		}

		return nil
	},
	SilenceUsage:  true, // Don't show usage on errors
	SilenceErrors: true, // We handle errors ourselves
}

// Command group IDs
const (
	groupMapping = "mapping"
	groupUtility = "utility"
)

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: auto-discover tether.yaml)")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase verbosity (can be repeated)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")

	// Define command groups
	rootCmd.AddGroup(
		&cobra.Group{ID: groupMapping, Title: "Mapping:"},
		&cobra.Group{ID: groupUtility, Title: "Utility:"},
	)

	// Mapping commands
	validateCmd.GroupID = groupMapping
	generateCmd.GroupID = groupMapping
	doctorCmd.GroupID = groupMapping
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(doctorCmd)

	// Utility commands
	configCmd.GroupID = groupUtility
	versionCmd.GroupID = groupUtility
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		cli.ExitWithError(err)
	}
}

// resolveString returns the first non-empty string from the provided values.
// Used to implement precedence: flag > config > default.
func resolveString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// resolveBool returns true if any of the provided values is true.
// Used for boolean flags where any true value should win.
func resolveBool(values ...bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}

// resolveDSN returns the database connection string with flag > env/config
// precedence.
func resolveDSN(flagDB string) (string, error) {
	if flagDB != "" {
		return flagDB, nil
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return "", cli.ConfigError("resolving database connection", err)
	}
	return dsn, nil
}
