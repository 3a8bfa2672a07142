package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/aretw0/introspection"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the internal state of every component as JSON",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := openClient(context.Background())
		defer client.Close()

		components := []any{client.Identity, client.Timeline, client.Store}
		out := map[string]any{}
		for _, c := range components {
			intro, ok := c.(introspection.Introspectable)
			if !ok {
				continue
			}
			name := "component"
			if comp, ok := c.(introspection.Component); ok {
				name = comp.ComponentType()
			}
			out[name] = intro.State()
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(out); err != nil {
			fatal("Error encoding status", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
