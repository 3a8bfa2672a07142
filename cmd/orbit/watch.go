package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/orbit/pkg/core"
	"github.com/aretw0/orbit/pkg/identity"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow session changes made by other orbit processes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client := openClient(ctx)
		defer client.Close()

		fmt.Printf("Watching session (current: %s). Press Ctrl+C to stop.\n", describe(client.Identity.CurrentIdentity()))
		err := client.Follow(ctx, func(e core.Event, phase identity.Phase) {
			fmt.Printf("%s -> %s (%s)\n", e, describe(client.Identity.CurrentIdentity()), phase)
		})
		if err != nil {
			fatal("Error watching session", err)
		}
	},
}

func describe(id core.Identity) string {
	if id.IsZero() {
		return "nobody"
	}
	return id.Label()
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
