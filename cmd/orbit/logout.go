package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the current session",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		client := openClient(ctx)
		defer client.Close()

		who := client.Identity.CurrentIdentity()
		if _, err := client.Identity.Logout(ctx); err != nil {
			slog.Warn("identity provider logout failed, local session cleared anyway", "error", err)
		}
		if who.IsZero() {
			fmt.Println("Not logged in")
			return
		}
		fmt.Printf("Logged out %s\n", who.Label())
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
