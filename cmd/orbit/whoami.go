package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the active identity",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := openClient(context.Background())
		defer client.Close()

		sess, ok := client.Identity.Session()
		if !ok {
			fmt.Println("Not logged in")
			return
		}
		fmt.Printf("%s\t%s\t%s\n", sess.Identity.Handle, sess.Identity.Label(), sess.Mode)
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
