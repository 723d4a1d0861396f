// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/websift"
	"github.com/poiesic/websift/ai"
	"github.com/poiesic/websift/core"
	"github.com/poiesic/websift/ingest"
	"github.com/poiesic/websift/reembed"
)

func main() {
	app := &cli.App{
		Name:  "websift",
		Usage: "Semantic search over scraped web pages",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "create-collection",
				Usage:  "Create a collection of documents with shared segmentation parameters",
				Action: createCollectionCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Usage:    "Unique collection name",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "description",
						Usage: "Collection description",
					},
					&cli.IntFlag{
						Name:  "capacity",
						Usage: "Maximum tokens per segment",
						Value: 500,
					},
					&cli.IntFlag{
						Name:  "overlap",
						Usage: "Tokens carried over between adjacent segments",
						Value: 50,
					},
				},
			},
			{
				Name:   "list-collections",
				Usage:  "List all collections",
				Action: listCollectionsCommand,
				Flags:  []cli.Flag{dbFlag()},
			},
			{
				Name:      "process",
				Usage:     "Fetch pages and process them into searchable segments",
				ArgsUsage: "URL [URL ...]",
				Action:    processCommand,
				Flags: append([]cli.Flag{
					dbFlag(),
					collectionFlag(true),
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Number of segments enriched in parallel",
						Value: ingest.DefaultConcurrency,
					},
				}, aiFlags()...),
			},
			{
				Name:   "list-documents",
				Usage:  "List documents in a collection",
				Action: listDocumentsCommand,
				Flags: []cli.Flag{
					dbFlag(),
					collectionFlag(true),
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only documents with this status (pending, processing, processed, failed)",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search stored segments by semantic similarity",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: append([]cli.Flag{
					dbFlag(),
					collectionFlag(false),
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Maximum number of results",
						Value:   10,
					},
				}, aiFlags()...),
			},
			{
				Name:   "reembed",
				Usage:  "Reembed all stored segments with new embeddings",
				Action: reembedCommand,
				Flags: append([]cli.Flag{
					dbFlag(),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of segments to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N segments",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				}, aiFlags()...),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "db",
		Aliases:  []string{"d"},
		Usage:    "Path to BadgerDB database directory",
		Required: true,
	}
}

func collectionFlag(required bool) cli.Flag {
	return &cli.StringFlag{
		Name:     "collection",
		Aliases:  []string{"c"},
		Usage:    "Collection name",
		Required: required,
	}
}

func aiFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "host",
			Usage: "AI service host URL for embeddings and generation",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
		},
		&cli.StringFlag{
			Name:  "generator-model",
			Usage: "Generation model name for summaries and retrieval context",
		},
		&cli.IntFlag{
			Name:  "dimensions",
			Usage: "Embedding vector dimensions",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Per-call timeout for AI requests",
		},
	}
}

// aiConfigFromFlags builds an AI config from defaults plus whichever flags
// were set.
func aiConfigFromFlags(c *cli.Context) *ai.Config {
	var opts []ai.ConfigOption
	if host := c.String("host"); host != "" {
		opts = append(opts, ai.WithHost(host))
	}
	if model := c.String("embedding-model"); model != "" {
		opts = append(opts, ai.WithEmbeddingModel(model))
	}
	if model := c.String("generator-model"); model != "" {
		opts = append(opts, ai.WithGeneratorModel(model))
	}
	if dims := c.Int("dimensions"); dims > 0 {
		opts = append(opts, ai.WithEmbeddingDimensions(dims))
	}
	if timeout := c.Duration("timeout"); timeout > 0 {
		opts = append(opts, ai.WithRequestTimeout(timeout))
	}
	return ai.NewConfig(opts...)
}

func createCollectionCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := websift.NewDatabase(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	collection, err := db.CollectionRepository().AddCollection(ctx, &core.Collection{
		Name:        c.String("name"),
		Description: c.String("description"),
		Capacity:    c.Int("capacity"),
		Overlap:     c.Int("overlap"),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	fmt.Printf("Created collection %q (%s): capacity %d tokens, overlap %d tokens\n",
		collection.Name, collection.Id, collection.Capacity, collection.Overlap)
	return nil
}

func listCollectionsCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := websift.NewDatabase(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	collections, err := db.CollectionRepository().ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	if len(collections) == 0 {
		fmt.Println("No collections found")
		return nil
	}

	for _, collection := range collections {
		fmt.Printf("%s  %s  capacity=%d overlap=%d\n",
			collection.Id, collection.Name, collection.Capacity, collection.Overlap)
	}
	return nil
}

func processCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one URL is required")
	}

	// Let in-flight work settle on interrupt instead of dying mid-batch.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := websift.NewDatabase(c.String("db"), websift.WithAIConfig(aiConfigFromFlags(c)))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	collection, err := db.CollectionRepository().FindCollectionByName(ctx, c.String("collection"))
	if err != nil {
		return fmt.Errorf("failed to find collection %q: %w", c.String("collection"), err)
	}

	fetcher, err := db.NewFetcher()
	if err != nil {
		return fmt.Errorf("failed to create fetcher: %w", err)
	}

	pipeline, err := db.NewPipeline(ingest.WithConcurrency(c.Int("concurrency")))
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	for _, url := range c.Args().Slice() {
		fmt.Fprintf(os.Stderr, "Fetching %s\n", url)

		page, err := fetcher.FetchAndExtract(ctx, url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  fetch failed: %v\n", err)
			continue
		}

		document, err := db.DocumentRepository().PutDocument(ctx, &core.Document{
			CollectionId: collection.Id,
			URL:          url,
			Title:        page.Title,
			CleanText:    page.CleanText,
			WordCount:    page.WordCount,
			Status:       core.StatusPending,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "  store failed: %v\n", err)
			continue
		}

		outcome, err := pipeline.Process(ctx, document, collection.Capacity, collection.Overlap)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("interrupted: %w", err)
			}
			fmt.Fprintf(os.Stderr, "  processing failed: %v\n", err)
			continue
		}

		fmt.Fprintf(os.Stderr, "  %s: %d segments (%d enriched, %d failed)\n",
			outcome.Status, len(outcome.Results), outcome.Succeeded, outcome.Failed)
	}

	return nil
}

func listDocumentsCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := websift.NewDatabase(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	collection, err := db.CollectionRepository().FindCollectionByName(ctx, c.String("collection"))
	if err != nil {
		return fmt.Errorf("failed to find collection %q: %w", c.String("collection"), err)
	}

	var documents []*core.Document
	if statusStr := c.String("status"); statusStr != "" {
		var status core.DocumentStatus
		status, err = core.ParseDocumentStatus(statusStr)
		if err != nil {
			return err
		}
		documents, err = db.DocumentRepository().ListDocumentsByStatus(ctx, collection.Id, status)
	} else {
		documents, err = db.DocumentRepository().ListDocuments(ctx, collection.Id)
	}
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(documents) == 0 {
		fmt.Println("No documents found")
		return nil
	}

	for _, document := range documents {
		line := fmt.Sprintf("%d  %-10s  %s", document.Id, document.Status, document.URL)
		if document.ErrorMessage != "" {
			line += "  (" + document.ErrorMessage + ")"
		}
		fmt.Println(line)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	ctx := context.Background()

	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("query is required")
	}

	db, err := websift.NewDatabase(c.String("db"), websift.WithAIConfig(aiConfigFromFlags(c)))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	collectionID := ""
	if name := c.String("collection"); name != "" {
		collection, err := db.CollectionRepository().FindCollectionByName(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to find collection %q: %w", name, err)
		}
		collectionID = collection.Id
	}

	searcher, err := db.NewSearcher()
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}

	matches, err := searcher.Search(ctx, query, collectionID, c.Int("top-k"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(matches) == 0 {
		fmt.Println("No matches found")
		return nil
	}

	for i, match := range matches {
		fmt.Printf("%d. [%.3f] %s\n", i+1, match.Score, match.Title)
		fmt.Printf("   %s (segment %d)\n", match.URL, match.Record.Index)
		if match.Record.Summary != "" {
			fmt.Printf("   %s\n", match.Record.Summary)
		}
		fmt.Println()
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	ctx := context.Background()

	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	db, err := websift.NewDatabase(c.String("db"), websift.WithAIConfig(aiConfigFromFlags(c)))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	reembedder, err := db.NewReembedder(reembedConfig, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to create reembedder: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n\n", c.String("db"))

	if err := reembedder.Run(ctx); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
