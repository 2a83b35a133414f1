package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tinytelemetry/flatstat/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var apiAddr string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/flatstat/config.yml)")
	flag.StringVar(&apiAddr, "api", "", "override flatstat API address (host:port)")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("Flatstat Top - Live Metrics Dashboard\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadCLIConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if apiAddr != "" {
		cfg.APIAddr = apiAddr
	}

	if err := runTUI(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(cfg cliConfig) error {
	client := tui.NewClient(cfg.APIAddr)
	if _, err := client.Health(); err != nil {
		return fmt.Errorf("cannot reach flatstat API at %s: %w\nIs the flatstat service running? Start it with: flatstat", cfg.APIAddr, err)
	}

	dashboard := tui.NewDashboardModel(client, cfg.UpdateInterval)

	p := tea.NewProgram(dashboard, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("dashboard requires a real terminal")
		}
		return fmt.Errorf("error running dashboard: %w", err)
	}

	return nil
}
