package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/receiptgen/internal/config"
)

var cfg = config.Defaults()

var rootCmd = &cobra.Command{
	Use:   "receiptgen",
	Short: "Home-visit nursing claim file generator",
	Long: "Apportions a billing period's visit and bonus charges between the patient and public-expense payers, " +
		"and encodes them as a Shift_JIS claim file for electronic submission.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg.ConfigPath == "" {
			return nil
		}
		return cfg.LoadFromFile(cfg.ConfigPath)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.DSN, "dsn", os.Getenv("RECEIPTGEN_DB_URL"), "Postgres connection string (or set RECEIPTGEN_DB_URL)")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")
	pf.StringVar(&cfg.ConfigPath, "config", "", "Path to YAML config file (policy, encoding, concurrency)")
}
