package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/orbit/pkg/identity"
)

var loginAs string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in through the identity provider, or pick a simulated identity",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		client := openClient(ctx)
		defer client.Close()

		phase, err := client.Identity.Login(ctx)
		if err != nil {
			fatal("Login failed", err)
		}

		if phase == identity.PhaseSelectingIdentity {
			if loginAs == "" {
				client.Identity.CancelSelection()
				fmt.Println("Choose an identity with --as:")
				printIdentities(client.Identity.Identities())
				return
			}
			if _, err := client.Identity.Select(ctx, loginAs); err != nil {
				fatal("Error selecting identity", err)
			}
		}

		sess, _ := client.Identity.Session()
		fmt.Printf("Logged in as %s (%s)\n", sess.Identity.Label(), sess.Mode)
		if !sess.Persisted {
			fmt.Println("Warning: session could not be saved and will not survive this process")
		}
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginAs, "as", "", "Simulated identity handle or name (non-production only)")
}
