package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/lumberhq/lumberview/internal/broker"
	"github.com/lumberhq/lumberview/internal/httpapi"
	"github.com/lumberhq/lumberview/internal/ingest"
	"github.com/lumberhq/lumberview/internal/ndjson"
	"github.com/lumberhq/lumberview/internal/prefs"
	"github.com/lumberhq/lumberview/internal/search"
	"github.com/lumberhq/lumberview/internal/session"
	"github.com/lumberhq/lumberview/internal/sqlworker"
	"github.com/lumberhq/lumberview/internal/tui"
)

// Build variables - set by ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var configPath string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/lumberview/config.yml)")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("lumberview - Lumberjack log browser\n")
		fmt.Printf("  Version: %s\n", version)
		fmt.Printf("  Commit:  %s\n", commit)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg appConfig) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The store worker owns the embedded database; everything below talks
	// to it through the broker.
	worker := sqlworker.New(cfg.DBPath, sqlworker.Config{QueryTimeout: cfg.QueryTimeout})
	defer worker.Stop()

	b := broker.New(worker.Requests(), worker.Responses())
	if err := b.Open(ctx); err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	prefStore, err := prefs.Open(cfg.PrefsPath)
	if err != nil {
		return fmt.Errorf("opening preferences: %w", err)
	}

	var client *search.Client
	if cfg.ServerURL != "" {
		client = search.NewClient(cfg.ServerURL, cfg.AuthKey, http.DefaultClient)
	}

	ing := ingest.New(b, http.DefaultClient, ingest.Config{
		AuthKey: cfg.AuthKey,
		Decoder: ndjson.DecoderConfig{ChunkSize: cfg.ChunkSize},
	})
	if err := ing.Reset(ctx); err != nil {
		return err
	}
	if err := ing.Ingest(ctx, cfg.SourceURL); err != nil {
		return err
	}

	sess := session.New(b, client, prefStore, cfg.PageSize)
	if err := sess.ActivateDataset(ctx, cfg.Dataset, cfg.File); err != nil {
		return fmt.Errorf("activating dataset: %w", err)
	}

	if cfg.APIEnabled {
		apiServer := httpapi.NewServer(cfg.APIAddr, sess)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer apiServer.Stop()
		log.Printf("api: listening on %s", cfg.APIAddr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if cfg.Headless {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	program := tea.NewProgram(tui.New(sess), tea.WithAltScreen())

	g.Go(func() error {
		_, err := program.Run()
		cancel()
		return err
	})
	g.Go(func() error {
		select {
		case <-sigCh:
			program.Quit()
		case <-ctx.Done():
		}
		return nil
	})

	return g.Wait()
}
