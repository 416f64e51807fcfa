//-------------------------------------------------------------------------
//
// ecomdw - E-Commerce Warehouse ETL
//
// Copyright (c) 2025 - 2026, the ecomdw authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package cli implements the command-line interface for ecomdw.
package cli

import (
	"github.com/spf13/cobra"

	"ecomdw/internal/config"
	"ecomdw/internal/etl"
	"ecomdw/internal/logging"
	"ecomdw/pkg/version"
)

var (
	// Global flags
	cfgFile    string
	connection string
	dataDir    string
	logLevel   string

	// Global config
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "ecomdw",
		Short: "Batch ETL for an e-commerce star-schema warehouse",
		Long: `ecomdw loads e-commerce CSV snapshots into a PostgreSQL star-schema
warehouse. Each run replaces the staging layer, maintains Type 2 history
for the customer and product dimensions, appends order facts resolved
against the dimension versions valid on the order date, runs a data
quality battery, and rebuilds the analytics marts.

Runs are idempotent: loading the same snapshot twice leaves the
warehouse unchanged.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./ecomdw.yaml)")
	rootCmd.PersistentFlags().StringVar(&connection, "connection", "",
		"PostgreSQL connection string")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "",
		"directory holding the source CSV files")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(stagesCmd)
}

func initConfig() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	// Override with CLI flags
	if connection != "" {
		cfg.Connection = connection
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// Reinitialize logger with config
	logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.Info())
	},
}

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List pipeline stages in execution order",
	Long: `List the pipeline stages in execution order. A run executes every
stage in sequence and stops at the first failure; completed stages keep
their committed work.`,
	Run: func(cmd *cobra.Command, args []string) {
		descriptions := map[string]string{
			etl.StageStaging:    "replace the staging tables from the CSV snapshot",
			etl.StageDimensions: "seed static dimensions and maintain version history",
			etl.StageFacts:      "append order facts resolved point-in-time",
			etl.StageQuality:    "run the data quality battery",
			etl.StageMarts:      "rebuild the analytics marts",
		}
		cmd.Println("Pipeline stages:")
		cmd.Println()
		for _, name := range etl.StageNames() {
			cmd.Printf("  %-10s - %s\n", name, descriptions[name])
		}
		cmd.Println()
		cmd.Println("Use 'ecomdw run' to execute the full pipeline.")
	},
}
