package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/orbit/pkg/core"
)

var postCmd = &cobra.Command{
	Use:   "post <message>",
	Short: "Publish a dweet (at most 280 characters)",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		client := openClient(ctx)
		defer client.Close()

		d, err := client.Timeline.Post(ctx, strings.Join(args, " "))
		if err != nil {
			fatal("Error posting dweet", explain(err))
		}
		fmt.Printf("Posted #%d as %s\n", d.ID, d.Author.Label())
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <id> <message>",
	Short: "Replace the message of one of your dweets",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		id := parseID(args[0])
		client := openClient(ctx)
		defer client.Close()

		if err := client.Timeline.Edit(ctx, id, strings.Join(args[1:], " ")); err != nil {
			fatal("Error editing dweet", explain(err))
		}
		fmt.Printf("Edited #%d\n", id)
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete one of your dweets",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		id := parseID(args[0])
		client := openClient(ctx)
		defer client.Close()

		if err := client.Timeline.Delete(ctx, id); err != nil {
			fatal("Error deleting dweet", explain(err))
		}
		fmt.Printf("Deleted #%d\n", id)
	},
}

func parseID(raw string) uint64 {
	id, err := strconv.ParseUint(strings.TrimPrefix(raw, "#"), 10, 64)
	if err != nil {
		fatal("Invalid dweet id", err)
	}
	return id
}

// explain turns errors into something a person can act on.
func explain(err error) error {
	var rej *core.ServerRejection
	switch {
	case errors.As(err, &rej):
		return errors.New(rej.Message)
	case errors.Is(err, core.ErrNoIdentity):
		return fmt.Errorf("%w (run 'orbit login' first)", err)
	default:
		return err
	}
}

func init() {
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(deleteCmd)
}
