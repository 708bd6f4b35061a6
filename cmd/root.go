package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "eventsocket",
	Short: "A FreeSWITCH Event Socket client",
	Long: `A FreeSWITCH Event Socket client

Usage
	eventsocket connect
`,
}

func init() {
	RootCmd.AddCommand(ConnectCmd)
	RootCmd.AddCommand(VersionCmd)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
