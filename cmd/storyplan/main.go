package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openplan/storyplan/internal/api"
	"github.com/openplan/storyplan/internal/config"
	"github.com/openplan/storyplan/internal/graph"
	"github.com/openplan/storyplan/internal/parser"
	"github.com/openplan/storyplan/internal/planner"
	"github.com/openplan/storyplan/internal/report"
	"github.com/openplan/storyplan/internal/storage"
	"github.com/openplan/storyplan/internal/watcher"
)

const usage = `storyplan - dependency graph and sprint scheduling for story files

Usage:
  storyplan graph    [-file stories.yaml] [-json]
  storyplan validate [-file stories.yaml] [-json]
  storyplan schedule [-file stories.yaml] [-capacity N] [-mode points|count] [-json]
  storyplan serve    [-file stories.yaml] [-port N] [-watch]
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.New()

	var err error
	switch os.Args[1] {
	case "graph":
		err = runGraph(cfg, os.Args[2:])
	case "validate":
		err = runValidate(cfg, os.Args[2:])
	case "schedule":
		err = runSchedule(cfg, os.Args[2:])
	case "serve":
		err = runServe(cfg, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadDocument(path string) (*parser.Document, error) {
	doc, err := parser.ParseStoriesFile(path)
	if err != nil {
		return nil, fmt.Errorf("load stories: %w", err)
	}
	return doc, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runGraph(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	file := fs.String("file", cfg.StoriesPath, "path to the stories file")
	asJSON := fs.Bool("json", false, "emit JSON instead of a text report")
	if err := fs.Parse(args); err != nil {
		return err
	}

	doc, err := loadDocument(*file)
	if err != nil {
		return err
	}

	g := graph.Build(doc.ID, doc.Stories)
	if *asJSON {
		return printJSON(g)
	}
	fmt.Print(report.Graph(g))
	return nil
}

func runValidate(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	file := fs.String("file", cfg.StoriesPath, "path to the stories file")
	asJSON := fs.Bool("json", false, "emit JSON instead of a text report")
	if err := fs.Parse(args); err != nil {
		return err
	}

	doc, err := loadDocument(*file)
	if err != nil {
		return err
	}

	result := planner.Validate(doc.Stories)
	if *asJSON {
		if err := printJSON(result); err != nil {
			return err
		}
	} else {
		fmt.Print(report.Validation(result))
	}

	if !result.Valid {
		os.Exit(1)
	}
	return nil
}

func runSchedule(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	file := fs.String("file", cfg.StoriesPath, "path to the stories file")
	capacity := fs.Int("capacity", cfg.Capacity, "sprint capacity")
	modeFlag := fs.String("mode", cfg.CapacityMode, "capacity mode: points or count")
	asJSON := fs.Bool("json", false, "emit JSON instead of a text report")
	if err := fs.Parse(args); err != nil {
		return err
	}

	mode, err := planner.ParseCapacityMode(*modeFlag)
	if err != nil {
		return err
	}

	doc, err := loadDocument(*file)
	if err != nil {
		return err
	}

	plan, err := planner.Schedule(doc.Stories, *capacity, mode, nil)
	if err != nil {
		return err
	}

	if *asJSON {
		return printJSON(map[string]interface{}{
			"documentId": doc.ID,
			"plan":       plan,
			"violations": planner.CheckPrecedence(plan, doc.Stories),
		})
	}

	fmt.Print(report.Plan(plan))
	fmt.Print(report.PrecedenceViolations(planner.CheckPrecedence(plan, doc.Stories)))
	return nil
}

func runServe(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	file := fs.String("file", cfg.StoriesPath, "path to the stories file")
	port := fs.Int("port", cfg.APIPort, "HTTP listen port")
	watch := fs.Bool("watch", false, "reload the stories file on change")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.StoriesPath = *file
	cfg.APIPort = *port
	cfg.WatchEnabled = *watch
	if key := os.Getenv("STORYPLAN_API_KEY"); key != "" {
		cfg.APIKey = key
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	server := api.NewServer(cfg, store)

	if cfg.StoriesFileExists() {
		if err := server.RefreshFromFile(context.Background()); err != nil {
			log.Printf("initial refresh failed: %v", err)
		}
	} else {
		log.Printf("stories file %s not found, waiting for refresh", cfg.StoriesPath)
	}

	if cfg.WatchEnabled {
		debounce := time.Duration(cfg.WatchDebounce) * time.Millisecond
		w := watcher.WatchStories(cfg.StoriesPath, debounce,
			func() {
				if err := server.RefreshFromFile(context.Background()); err != nil {
					log.Printf("refresh failed: %v", err)
				}
			},
			func(err error) {
				log.Printf("watcher error: %v", err)
			})
		if err := w.Start(); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer w.Stop()
		log.Printf("watching %s", cfg.StoriesPath)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on :%d", cfg.APIPort)
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("received %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Stop(ctx)
	}
}
