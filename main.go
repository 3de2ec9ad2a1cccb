package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lotas/tabkartei/internal/applog"
	"github.com/lotas/tabkartei/internal/classify"
	"github.com/lotas/tabkartei/internal/controller"
	"github.com/lotas/tabkartei/internal/enrich"
	"github.com/lotas/tabkartei/internal/export"
	"github.com/lotas/tabkartei/internal/fetch"
	"github.com/lotas/tabkartei/internal/registry"
	"github.com/lotas/tabkartei/internal/server"
	"github.com/lotas/tabkartei/internal/storage"
	"github.com/lotas/tabkartei/internal/tui"
	"github.com/lotas/tabkartei/internal/types"
)

const defaultPort = 19717

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "export":
			runExport(os.Args[2:])
			return
		case "history":
			runHistory(os.Args[2:])
			return
		case "categories":
			runCategories()
			return
		case "help", "--help", "-h":
			printHelp()
			return
		}
	}

	fs := flag.NewFlagSet("tabkartei", flag.ExitOnError)
	port := fs.Int("port", resolveIntEnv("TABKARTEI_PORT", defaultPort), "WebSocket port for the extension")
	idleDays := fs.Int("idle-days", resolveIntEnv("TABKARTEI_IDLE_DAYS", 7), "Days before a tab is considered idle")
	analystFlag := fs.Bool("analyst", os.Getenv("TABKARTEI_ANALYST") == "1", "Enable LLM analysis via Ollama")
	fs.Parse(os.Args[1:])

	db, err := openDB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if dbPath, err := storage.DefaultDBPath(); err == nil {
		if err := applog.Init(filepath.Dir(dbPath)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: log init failed: %v\n", err)
		}
		defer applog.Close()
	}

	// Old enrichment history has no consumer past a few weeks.
	if n, err := storage.PruneEnrichments(db, 90*24*time.Hour); err == nil && n > 0 {
		applog.Info("history.pruned", "rows", n)
	}

	classifier := classify.New()

	reg := registry.New(db, classifier, fetch.IsInternalURL)
	if err := reg.Load(); err != nil {
		// A corrupt snapshot is not fatal: the registry starts empty
		// and is rebuilt from the live tab list.
		applog.Error("registry.load", err)
	}

	srv := server.New(*port)

	var analyst enrich.Analyst
	if *analystFlag {
		analyst = &enrich.OllamaAnalyst{
			Model:  resolveModel(),
			Host:   resolveOllamaHost(),
			Labels: classifier.Labels(),
		}
	}

	notify := func(rec *types.TabRecord) {
		srv.Send(server.OutgoingMsg{
			Action:  server.ActionTabAnalyzed,
			TabID:   rec.ID,
			TabData: map[string]*types.TabRecord{strconv.Itoa(rec.ID): rec},
		})
	}

	engine := enrich.New(reg, fetch.New(srv), classifier, analyst, db, notify)
	ctl := controller.New(srv, reg, engine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.ListenAndServe(ctx)
	go ctl.Run(ctx)

	model := tui.NewModel(reg, ctl, srv, classifier.Labels(), *idleDays)
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Print(`tabkartei — browser tab organizer

Usage:
  tabkartei                            Start the agent and TUI (default)
    --port <n>           WebSocket port for the extension (default: 19717)
    --idle-days <n>      Days before a tab is considered idle (default: 7)
    --analyst            Enable LLM analysis via Ollama

  tabkartei export                     Export the tab registry
    --json               Export as JSON instead of markdown
    --out <file>         Output file path (default: stdout)

  tabkartei history                    Show recent enrichment history
    --limit <n>          Number of entries (default: 20)

  tabkartei categories                 List classification rules

Environment:
  TABKARTEI_PORT         WebSocket port (overridden by --port flag)
  TABKARTEI_IDLE_DAYS    Idle threshold in days (overridden by --idle-days)
  TABKARTEI_ANALYST      Set to 1 to enable LLM analysis
  TABKARTEI_MODEL        Ollama model (default: llama3.2)
  OLLAMA_HOST            Ollama server URL (default: http://localhost:11434)
`)
}

func openDB() (*sql.DB, error) {
	dbPath := os.Getenv("TABKARTEI_DB")
	if dbPath == "" {
		var err error
		dbPath, err = storage.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return storage.OpenDB(dbPath)
}

func resolveIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func resolveModel() string {
	if m := os.Getenv("TABKARTEI_MODEL"); m != "" {
		return m
	}
	return "llama3.2"
}

func resolveOllamaHost() string {
	if h := os.Getenv("OLLAMA_HOST"); h != "" {
		return h
	}
	return "http://localhost:11434"
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	jsonFlag := fs.Bool("json", false, "Export as JSON instead of markdown")
	outFile := fs.String("out", "", "Output file path (default: stdout)")
	fs.Parse(args)

	db, err := openDB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	records, err := storage.LoadRegistry(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading registry: %v\n", err)
		os.Exit(1)
	}

	groups := export.Groups(records, classify.New().Labels())

	var output string
	if *jsonFlag {
		output, err = export.JSON(groups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating JSON: %v\n", err)
			os.Exit(1)
		}
	} else {
		output = export.Markdown(groups)
	}

	if *outFile != "" {
		if err := os.WriteFile(*outFile, []byte(output), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
			os.Exit(1)
		}
	} else {
		fmt.Print(output)
	}
}

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Number of entries to show")
	fs.Parse(args)

	db, err := openDB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	events, err := storage.RecentEnrichments(db, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading history: %v\n", err)
		os.Exit(1)
	}

	if len(events) == 0 {
		fmt.Println("No enrichment history.")
		return
	}

	fmt.Printf("%-20s %5s  %-15s %-8s  %s\n", "WHEN", "TAB", "CATEGORY", "SOURCE", "URL")
	for _, e := range events {
		url := e.URL
		if len(url) > 60 {
			url = url[:59] + "…"
		}
		fmt.Printf("%-20s %5d  %-15s %-8s  %s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04"),
			e.TabID,
			e.Category,
			e.Source,
			url,
		)
	}
}

func runCategories() {
	classifier := classify.New()
	for _, rule := range classifier.Rules() {
		fmt.Printf("%s:\n", rule.Label)
		for _, kw := range rule.Keywords {
			fmt.Printf("  %s\n", kw)
		}
	}
	if path := classify.RulesFilePath(); path != "" {
		fmt.Printf("\nUser rules file: %s\n", path)
	}
}
