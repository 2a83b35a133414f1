package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/flatstat/internal/collect"
	"github.com/tinytelemetry/flatstat/internal/duckdb"
	"github.com/tinytelemetry/flatstat/internal/flatten"
	"github.com/tinytelemetry/flatstat/internal/httpserver"
	"github.com/tinytelemetry/flatstat/internal/ingest"
	"github.com/tinytelemetry/flatstat/internal/model"
	"github.com/tinytelemetry/flatstat/internal/reporter"
	"golang.org/x/sync/errgroup"
)

// runServer starts headless metric collection with the HTTP API.
func runServer(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	// Flatten rules are optional; without a rules file every key passes.
	var filter flatten.KeyFilter
	if cfg.RulesFile != "" {
		rules, err := flatten.LoadRules(cfg.RulesFile)
		if err != nil {
			return fmt.Errorf("failed to load flatten rules: %w", err)
		}
		filter = rules.Filter()
	}

	parser, err := ingest.NewParser(cfg.KeySeparator, filter)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	// Initialize the DuckDB history store when persistence is enabled.
	var store *duckdb.Store
	if cfg.DBEnabled {
		store, err = duckdb.NewStore(cfg.DBPath, cfg.QueryTimeout)
		if err != nil {
			return fmt.Errorf("failed to initialize DuckDB: %w", err)
		}
		defer store.Close()

		retentionCleaner := duckdb.NewRetentionCleaner(store, duckdb.RetentionConfig{
			RetentionDays: cfg.Retention,
		})
		if retentionCleaner != nil {
			defer retentionCleaner.Stop()
		}
	}

	reporters, cleanupReporters, err := buildReporters(cfg)
	if err != nil {
		return fmt.Errorf("failed to build reporters: %w", err)
	}
	defer cleanupReporters()

	var writer model.MetricWriter
	if store != nil {
		writer = store
	}
	runner := collect.NewRunner(parser, collect.Config{
		Interval:  cfg.CycleInterval,
		Reporters: reporters,
		Store:     writer,
	})

	// Start HTTP API server if enabled
	if cfg.APIEnabled {
		var querier model.MetricQuerier
		if store != nil {
			querier = store
		}
		apiServer := httpserver.NewServer(cfg.APIAddr, runner, querier)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now — not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	// Build input plugins and source multiplexer
	plugins, savePlugins, err := buildInputPlugins(InputPluginConfig{
		TCPEnabled:    cfg.TCPEnabled,
		TCPAddr:       cfg.TCPAddr,
		Files:         cfg.Files,
		FileFromStart: cfg.FileFromStart,
		StateFile:     cfg.StateFile,
		LineBuffer:    cfg.LineBuffer,
	})
	if err != nil {
		return fmt.Errorf("failed to build input plugins: %w", err)
	}
	defer savePlugins()

	sources := make([]NamedLogSource, 0, len(plugins))
	for _, plugin := range plugins {
		if !plugin.Enabled() {
			continue
		}
		src, err := plugin.Build(ctx)
		if err != nil {
			log.Printf("Error initializing input plugin %q: %v", plugin.Name(), err)
			continue
		}
		sources = append(sources, src)
	}

	if len(sources) == 0 {
		// Fall back to stdin if piped
		fallback := stdinInputPlugin{}
		if fallback.Enabled() {
			if src, err := fallback.Build(ctx); err == nil {
				sources = append(sources, src)
			}
		}
	}

	mux := NewSourceMultiplexer(ctx, sources, cfg.MuxBufferSize)
	mux.Start()

	printStartupBanner(cfg, reporters)

	// Use errgroup for concurrent goroutine lifecycle management.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runner.Run(gctx, mux.Lines())
	})

	// Wait for context cancellation (from signal handler) in the errgroup
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("server: errgroup exited with error: %v", err)
	}

	cancel()
	mux.Stop()

	// If we reach here, graceful shutdown succeeded within the deadline.
	// The signal goroutine (if active) dies with the process.
	signal.Stop(sigCh)

	return nil
}

// buildReporters assembles the output fan-out from config. Stdout is added
// when explicitly enabled or when no network reporter is configured, so a
// bare invocation still produces visible output.
func buildReporters(cfg appConfig) ([]reporter.Reporter, func(), error) {
	var reps []reporter.Reporter
	var closers []func()

	if cfg.GraphiteAddr != "" {
		reps = append(reps, reporter.NewGraphite(cfg.GraphiteAddr, cfg.GraphitePrefix))
	}
	if cfg.StatsdAddr != "" {
		reps = append(reps, reporter.NewStatsd(cfg.StatsdAddr, cfg.StatsdPrefix))
	}
	if cfg.OTLPEndpoint != "" {
		otlp, err := reporter.NewOTLP(cfg.OTLPEndpoint, cfg.OTLPService)
		if err != nil {
			return nil, nil, err
		}
		reps = append(reps, otlp)
		closers = append(closers, func() { _ = otlp.Close() })
	}
	if cfg.StdoutEnabled || len(reps) == 0 {
		reps = append(reps, reporter.NewStdout())
	}

	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	return reps, cleanup, nil
}

func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "flatstat")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "flatstat.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig, reps []reporter.Reporter) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╔═╗╦  ╔═╗╔╦╗╔═╗╔╦╗╔═╗╔╦╗
    ╠╣ ║  ╠═╣ ║ ╚═╗ ║ ╠═╣ ║
    ╚  ╩═╝╩ ╩ ╩ ╚═╝ ╩ ╩ ╩ ╩`)

	ver := dim.Render("v" + version)

	var lines []string
	lines = append(lines, "")
	lines = append(lines, logo)
	lines = append(lines, "    "+ver)
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Inputs"))
	lines = append(lines, "")

	if cfg.TCPEnabled {
		lines = append(lines, fmt.Sprintf("    %s  TCP Ingest     %s", check, cyan.Render(cfg.TCPAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  TCP Ingest     %s", dot, dim.Render("disabled")))
	}
	if len(cfg.Files) > 0 {
		lines = append(lines, fmt.Sprintf("    %s  File Tail      %s", check, cyan.Render(strings.Join(cfg.Files, ", "))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  File Tail      %s", dot, dim.Render("none")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Outputs"))
	lines = append(lines, "")
	for _, rep := range reps {
		lines = append(lines, fmt.Sprintf("    %s  Reporter       %s", check, cyan.Render(rep.Name())))
	}
	if cfg.DBEnabled {
		lines = append(lines, fmt.Sprintf("    %s  History        %s", check, dim.Render(shortenPath(cfg.DBPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  History        %s", dot, dim.Render("disabled")))
	}
	if cfg.APIEnabled {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Runtime"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  Cycle          %s", check, dim.Render(cfg.CycleInterval.String())))

	lines = append(lines, "")
	lines = append(lines, bold.Render("    Config"))
	lines = append(lines, "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
