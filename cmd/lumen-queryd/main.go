package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lumen-wm/lumen-queryd/internal/apps"
	"github.com/lumen-wm/lumen-queryd/internal/config"
	"github.com/lumen-wm/lumen-queryd/internal/history"
	"github.com/lumen-wm/lumen-queryd/internal/launch"
	"github.com/lumen-wm/lumen-queryd/internal/match"
	"github.com/lumen-wm/lumen-queryd/internal/queryctl"
	"github.com/lumen-wm/lumen-queryd/server"
)

func main() {
	// Initialize configuration
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize config: %v\n", err)
		os.Exit(1)
	}

	// Start config watcher
	if err := config.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start config watcher: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()

	// Open history store; a broken store degrades, it never blocks startup
	var store *history.Store
	var err error
	if path := cfg.HistoryPath(); path != "" {
		store, err = history.Open(path)
	} else {
		store, err = history.OpenDefault()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open history store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	// Discover the entry working set
	var binDirs []string
	if cfg.ScanPathBins() {
		binDirs = cfg.BinDirs()
	}
	entries := apps.Discover(cfg.AppDirs(), binDirs)

	// Build the query controller
	executor := &launch.Executor{Terminal: cfg.Terminal()}
	scorer := match.NewScorer(cfg.MinScore())
	ctl := queryctl.New(entries, store, scorer, executor, cfg.CmdPrefix(), cfg.PruneHistory())

	// Create server
	srv, err := server.NewServer(ctl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create server: %v\n", err)
		os.Exit(1)
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(ctx)
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	fmt.Printf("lumen-queryd started with %d entries\n", ctl.Count())

	select {
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal: %v\n", sig)
		cancel()
		if err := srv.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error stopping server: %v\n", err)
		}
	case err := <-serverErr:
		if err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("lumen-queryd stopped")
}
