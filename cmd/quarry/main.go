// Copyright 2026 Quarry Labs
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
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	quarry "github.com/quarrylabs/quarry"
	"github.com/quarrylabs/quarry/config"
	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/process"
	"github.com/quarrylabs/quarry/storage"
)

func main() {
	app := &cli.App{
		Name:  "quarry",
		Usage: "Document ingestion and semantic search for engineering corpora",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
			},
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
				Name:      "ingest",
				Usage:     "Ingest files or directories into the knowledge sink",
				ArgsUsage: "PATH [PATH...]",
				Action:    ingestCommand,
			},
			{
				Name:      "search",
				Usage:     "Search the knowledge sink",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"k"},
						Usage:   "Maximum number of results",
					},
					&cli.Float64Flag{
						Name:  "min-score",
						Usage: "Minimum result score",
					},
					&cli.StringSliceFlag{
						Name:    "type",
						Aliases: []string{"t"},
						Usage:   "Restrict results to document types",
					},
				},
			},
			{
				Name:   "ps",
				Usage:  "List tracked processes",
				Action: psCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "type",
						Aliases: []string{"t"},
						Usage:   "Filter by process type (ingestion-run, document-job, query, retrain)",
					},
				},
			},
			{
				Name:      "watch",
				Usage:     "Watch directories and ingest changed files until interrupted",
				ArgsUsage: "DIR [DIR...]",
				Action:    watchCommand,
			},
			{
				Name:   "reindex",
				Usage:  "Re-embed every stored chunk with the current embedder",
				Action: reindexCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func openSystem(c *cli.Context) (*quarry.System, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	return quarry.Open(cfg)
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one path is required")
	}

	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	var failed int
	for _, path := range c.Args().Slice() {
		runID, err := sys.Ingest(c.Context, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		if err := sys.Wait(runID); err != nil {
			return err
		}
		proc, err := sys.Status(runID)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s (%s)\n", path, proc.Status, proc.Message)
		if proc.Status != core.StatusCompleted {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d paths failed", failed, c.NArg())
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("a query is required")
	}

	filter := storage.SearchFilter{
		K:        c.Int("limit"),
		MinScore: float32(c.Float64("min-score")),
	}
	for _, name := range c.StringSlice("type") {
		dt := core.ParseDocumentType(name)
		if dt == core.DocTypeUnknown {
			return fmt.Errorf("unknown document type %q", name)
		}
		filter.Types = append(filter.Types, dt)
	}

	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	hits, err := sys.Search(c.Context, query, filter)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Println("no results")
		return nil
	}

	for i, hit := range hits {
		fmt.Printf("%d. [%.3f] %s (%s, chunk %d)\n",
			i+1, hit.Score, hit.Document.Source, hit.Document.Type, hit.Chunk.Seq)
		fmt.Printf("   %s\n", excerpt(hit.Chunk.Text, 200))
	}
	return nil
}

func psCommand(c *cli.Context) error {
	var filter process.ListFilter
	for _, name := range c.StringSlice("type") {
		pt, err := parseProcessType(name)
		if err != nil {
			return err
		}
		filter.Types = append(filter.Types, pt)
	}

	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	procs := sys.Processes(filter)
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tPROGRESS\tNAME\tMESSAGE")
	for _, p := range procs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%s\t%s\n",
			p.ID, p.Type, p.Status, p.Progress, p.Name, p.Message)
	}
	return w.Flush()
}

func watchCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one directory is required")
	}

	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	for _, dir := range c.Args().Slice() {
		if err := sys.Watch(dir); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "watching %s\n", dir)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	fmt.Fprintln(os.Stderr, "shutting down")
	return nil
}

func reindexCommand(c *cli.Context) error {
	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	procID, err := sys.Reindex(c.Context)
	if err != nil {
		return err
	}
	proc, err := sys.Status(procID)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", proc.Status, proc.Message)
	if proc.Status != core.StatusCompleted {
		return fmt.Errorf("reindex did not complete")
	}
	return nil
}

func parseProcessType(name string) (core.ProcessType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ingestion-run":
		return core.ProcessIngestionRun, nil
	case "document-job":
		return core.ProcessDocumentJob, nil
	case "query":
		return core.ProcessQuery, nil
	case "retrain":
		return core.ProcessRetrain, nil
	default:
		return 0, fmt.Errorf("unknown process type %q", name)
	}
}

func excerpt(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && text[cut]&0xc0 == 0x80 {
		cut--
	}
	return text[:cut] + "..."
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
