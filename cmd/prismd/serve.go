package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/superinstance/prism/internal/config"
	"github.com/superinstance/prism/internal/daemon"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the daemon for the configured project root",
	Long: `Start prismd in the foreground. Configuration is read from
PRISM_* environment variables (PROJECT_ROOT, PORT, ENABLE_WATCHER,
SHUTDOWN_TIMEOUT, LOG_LEVEL); see SPEC_FULL.md §6.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "prismd: configuration error: %v\n", err)
		os.Exit(2)
	}

	// Signal handlers are installed here, before the Daemon's listener
	// and watcher exist, but Run itself only acts on ctx.Done() once
	// every long-lived component has been constructed (spec.md §4.G,
	// design note on registering handlers after full construction).
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d := daemon.New(cfg)
	if err := d.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "prismd: %v\n", err)
		os.Exit(1)
	}
	return nil
}
