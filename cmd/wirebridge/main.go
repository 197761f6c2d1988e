package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "wirebridge",
	Short: "Cache synchronization client for the chat feed",
	Long: "wirebridge keeps a local query cache synchronized with the server's\n" +
		"realtime event feed: watch a session, send messages optimistically,\n" +
		"and let the reconciliation engine match confirmations back to them.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "path to config file (default ~/.wirebridge/config.toml)")
}
