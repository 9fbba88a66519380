// Package main provides viewctl, a command line client for the view counter.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sync"

	"github.com/devrev/viewcounter/internal/client"
	"github.com/devrev/viewcounter/internal/config"
	"github.com/devrev/viewcounter/internal/logging"
	"github.com/devrev/viewcounter/internal/service"
	"github.com/devrev/viewcounter/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const usage = `usage: viewctl [flags] <command> [args]

commands:
  get <slug>             print the view count of one slug
  batch <slug>...        print the view counts of several slugs as JSON
  incr <slug>...         record one view of each slug
  bump <slug>...         add one view to each slug directly in the store,
                         skipping deduplication; prints the new counts
`

func main() {
	configPath := flag.String("config", "", "path to config file")
	baseURL := flag.String("url", "", "view counter base URL (overrides client.base_url)")
	collection := flag.String("col", "", "collection; empty uses the server default")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "viewctl: %v\n", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		cfg.Client.BaseURL = *baseURL
	}

	logger := logging.NewLogger(config.LoggingConfig{Level: "warn", Format: "console", Output: "stderr"})
	defer logger.Sync()

	ctx := context.Background()
	args := flag.Args()[1:]

	if flag.Arg(0) == "bump" {
		if err := bumpViews(ctx, cfg, *collection, args, logger); err != nil {
			fmt.Fprintf(os.Stderr, "viewctl: %v\n", err)
			os.Exit(1)
		}
		return
	}

	c, err := client.NewViewsClient(cfg.Client, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "viewctl: %v\n", err)
		os.Exit(1)
	}

	switch cmd := flag.Arg(0); cmd {
	case "get":
		fmt.Println(c.GetViews(ctx, *collection, args[0]))
	case "batch":
		views := c.GetMultipleViews(ctx, *collection, args)
		out, _ := json.MarshalIndent(views, "", "  ")
		fmt.Println(string(out))
	case "incr":
		if err := recordViews(ctx, c, *collection, args, logger); err != nil {
			fmt.Fprintf(os.Stderr, "viewctl: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "viewctl: unknown command %q\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
}

// recordViews records one view per slug concurrently and returns the first failure.
func recordViews(ctx context.Context, c *client.ViewsClient, collection string, slugs []string, logger *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	var mu sync.Mutex
	accepted := 0

	for _, slug := range slugs {
		slug := slug
		g.Go(func() error {
			if err := c.RecordView(gctx, collection, slug); err != nil {
				return fmt.Errorf("record view of %q: %w", slug, err)
			}
			mu.Lock()
			accepted++
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	logger.Info("views recorded", zap.Int("accepted", accepted), zap.Int("requested", len(slugs)))
	return err
}

// bumpViews increments each slug's counter straight through the configured
// store and prints the resulting counts as JSON. A zero count means the
// increment failed.
func bumpViews(ctx context.Context, cfg *config.Config, collection string, slugs []string, logger *zap.Logger) error {
	counterStore, err := store.New(cfg.Store, cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("create counter store: %w", err)
	}
	defer counterStore.Close()

	views := service.NewViewService(counterStore, cfg.Views, nil, logger)

	counts := make(map[string]int64, len(slugs))
	for _, slug := range slugs {
		counts[slug] = views.IncrementView(ctx, collection, slug)
	}

	out, _ := json.MarshalIndent(counts, "", "  ")
	fmt.Println(string(out))
	return nil
}
