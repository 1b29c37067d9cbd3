package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mtzanidakis/swarmgate/internal/config"
	"github.com/mtzanidakis/swarmgate/internal/gateway"
	"github.com/mtzanidakis/swarmgate/internal/natsbus"
	"github.com/mtzanidakis/swarmgate/internal/provider"
	"github.com/mtzanidakis/swarmgate/internal/rollup"
	"github.com/mtzanidakis/swarmgate/internal/store"
	"github.com/mtzanidakis/swarmgate/internal/usage"
	"github.com/mtzanidakis/swarmgate/internal/vault"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("swarmgate %s\n", version)
	case "gateway":
		if err := runGateway(); err != nil {
			slog.Error("gateway failed", "error", err)
			os.Exit(1)
		}
	case "backup":
		if err := runBackup(os.Args[2:]); err != nil {
			slog.Error("backup failed", "error", err)
			os.Exit(1)
		}
	case "restore":
		if err := runRestore(os.Args[2:]); err != nil {
			slog.Error("restore failed", "error", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: swarmgate <command>\n\nCommands:\n  gateway    Start the inference gateway service\n  backup     Archive the data directory\n  restore    Restore a data directory archive\n  version    Print version\n")
}

func runGateway() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Vault.Passphrase == "" {
		return fmt.Errorf("vault passphrase not configured (set SWARMGATE_VAULT_PASSPHRASE)")
	}

	slog.Info("starting swarmgate", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SQLite store
	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	slog.Info("store initialized", "path", cfg.Store.Path)

	// Embedded NATS
	bus, err := natsbus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("init nats: %w", err)
	}
	defer bus.Close()
	slog.Info("nats started", "port", cfg.NATS.Port)

	events, err := natsbus.NewClient(bus)
	if err != nil {
		return fmt.Errorf("init nats client: %w", err)
	}
	defer events.Close()

	// Provider adapters
	registry := provider.NewRegistry(cfg.Providers)

	// Usage ledger
	recorder := usage.New(db, events)

	// Daily usage rollups
	if cfg.Rollup.Enabled {
		agg, err := rollup.New(db, cfg.Rollup)
		if err != nil {
			return fmt.Errorf("init rollup: %w", err)
		}
		go agg.Start(ctx)
	}

	// Gateway server
	srv := gateway.NewServer(db, vault.New(cfg.Vault.Passphrase), registry, recorder, bus, cfg.Gateway, version)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
		cancel()
		return nil
	case err := <-errCh:
		return err
	}
}
