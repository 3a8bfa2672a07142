package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/aretw0/orbit"
	"github.com/aretw0/orbit/pkg/core"
)

var (
	timelineJSON bool
	authorFilter string
	authorGlob   string
)

var timelineCmd = &cobra.Command{
	Use:     "timeline",
	Aliases: []string{"ls"},
	Short:   "Fetch and print the timeline",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		client := openClient(ctx)
		defer client.Close()

		var (
			dweets []core.Dweet
			err    error
		)
		switch {
		case authorFilter != "":
			dweets, err = client.Timeline.FetchByAuthor(ctx, core.NewIdentity(authorFilter))
		case authorGlob != "":
			dweets, err = client.Timeline.FetchByAuthorPattern(ctx, authorGlob)
		default:
			dweets, err = client.Timeline.FetchTimeline(ctx)
		}
		if err != nil {
			fatal("Error fetching timeline", err)
		}

		if timelineJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(dweets); err != nil {
				fatal("Error encoding JSON", err)
			}
			return
		}
		printDweets(client, dweets)
	},
}

func printDweets(client *orbit.Client, dweets []core.Dweet) {
	if len(dweets) == 0 {
		fmt.Println("No dweets yet")
		return
	}
	for _, d := range dweets {
		mark := " "
		if client.Timeline.Owns(d) {
			mark = "*"
		}
		fmt.Printf("%s #%-4d %-20s %-14s %s\n", mark, d.ID, d.Author.Label(), humanize.Time(d.CreatedAt), d.Message)
	}
}

func init() {
	rootCmd.AddCommand(timelineCmd)
	timelineCmd.Flags().BoolVar(&timelineJSON, "json", false, "Output in JSON format")
	timelineCmd.Flags().StringVar(&authorFilter, "author", "", "Only dweets by this identity handle")
	timelineCmd.Flags().StringVar(&authorGlob, "author-glob", "", "Only dweets whose author matches a glob (e.g. '{alice,bob}-*')")
}
