package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luma/eventsocket/internal/meta"
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := meta.GetInfo()
		fmt.Printf("version: %s\nbuild: %s\nbranch: %s\nbuilt: %s\ngo: %s (%s)\n",
			info.Version, info.Build, info.Branch, info.BuildTime, info.GoVersion, info.Platform)
		return nil
	},
}
