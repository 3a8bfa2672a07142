package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/orbit"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of orbit",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("orbit version %s\n", strings.TrimSpace(orbit.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
