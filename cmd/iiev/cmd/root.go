// Package cmd holds the iiev command tree.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/SHDeniz/IIEV-Ultra/internal/config"
	"github.com/SHDeniz/IIEV-Ultra/internal/logging"
)

var (
	cfgFile  string
	logLevel string
	logJSON  bool

	cfg *config.Config
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "iiev",
	Short:         "Inbound invoice validation pipeline",
	Long:          "iiev ingests electronic invoices (UBL, CII, ZUGFeRD/Factur-X), validates them through schema, Schematron, arithmetic and ERP checks, and records the outcome.",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		log = logging.Setup(logLevel, logJSON)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./iiev.yaml or /etc/iiev/iiev.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "force JSON logs even on a terminal")
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}
