package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/orbit"
	"github.com/aretw0/orbit/pkg/core"
)

var (
	verbose    bool
	configPath string
	envName    string
	backend    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "orbit",
	Short: "Session identity and timeline client for dweets",
	Long: `Orbit keeps track of who you are acting as and mirrors the dweet timeline
of a remote content service. Outside production you pick a simulated identity
instead of going through the identity provider.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to orbit.yaml (default: search upwards)")
	rootCmd.PersistentFlags().StringVar(&envName, "env", "", "Override environment (production, local)")
	rootCmd.PersistentFlags().StringVar(&backend, "session-backend", "", "Override session backend (file, pebble, redis, memory)")
}

// openClient builds a client and restores the persisted session.
func openClient(ctx context.Context) *orbit.Client {
	opts := []orbit.Option{
		orbit.WithConfigFile(configPath),
		orbit.WithLogger(slog.Default()),
	}
	if envName != "" {
		opts = append(opts, orbit.WithEnvironment(core.Environment(envName)))
	}
	if backend != "" {
		opts = append(opts, orbit.WithSessionBackend(backend))
	}

	client, err := orbit.New(opts...)
	if err != nil {
		fatal("Error initializing orbit", err)
	}
	if _, err := client.Bootstrap(ctx); err != nil {
		_ = client.Close()
		fatal("Error restoring session", err)
	}
	return client
}
