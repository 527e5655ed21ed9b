// Package cmd provides the CLI commands for cdr-cost.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"cdr-cost/internal/config"
	"cdr-cost/internal/logging"
)

// Version is set at build time with -ldflags "-X cdr-cost/cmd/cli/cmd.Version=..."
var Version = "0.1.0"

var (
	cfgFile string
	verbose bool

	// appConfig is the effective configuration, built once in initConfig
	appConfig = config.Default()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "cdr-cost",
	Short: "Price Voice Connector call detail records",
	Long: `cdr-cost enriches Voice Connector call detail records with the
on-demand price of their usage type and the resulting call cost.

It runs the same pipeline as the Lambda function, against a local file
or an object in S3.

Examples:
  cdr-cost enrich ./record.json
  cdr-cost enrich --format csv --price 0.0192 ./record.json
  cdr-cost enrich s3://cdrs/Amazon-Chime-Voice-Connector-CDRs/json/x.json
  cdr-cost price USE1-US-outbound-minutes`,
	SilenceUsage: true,
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "HCL config file (default is $"+config.EnvConfigFile+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(priceCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

func initConfig() {
	// A .env file is optional
	_ = godotenv.Load()

	path := cfgFile
	if path == "" {
		path = os.Getenv(config.EnvConfigFile)
	}
	cfg, err := config.Load(path)
	if err == nil {
		err = cfg.ApplyEnv(os.LookupEnv)
	}
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}
	appConfig = cfg
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "cdr-cost version %s\n", Version)
	},
}

// configCmd prints the effective configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := appConfig.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}
