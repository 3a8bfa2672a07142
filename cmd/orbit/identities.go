package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/orbit/pkg/core"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "List the simulated identities available outside production",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printIdentities(core.SimulatedIdentities())
	},
}

func printIdentities(ids []core.Identity) {
	for _, id := range ids {
		fmt.Printf("  %-10s %-8s %s\n", id.Handle, id.DisplayName, id.Color)
	}
}

func init() {
	rootCmd.AddCommand(identitiesCmd)
}
