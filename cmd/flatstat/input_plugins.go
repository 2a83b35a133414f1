package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/tinytelemetry/flatstat/internal/logsource"
	"github.com/tinytelemetry/flatstat/internal/tailstate"
	"github.com/tinytelemetry/flatstat/internal/tcpserver"
)

// NamedLogSource aliases the shared source abstraction to keep app-layer APIs explicit.
type NamedLogSource = logsource.LogSource

// InputSourcePlugin is a small plugin primitive for wiring log inputs.
type InputSourcePlugin interface {
	Name() string
	Enabled() bool
	Build(ctx context.Context) (NamedLogSource, error)
}

// InputPluginConfig defines runtime input selection.
type InputPluginConfig struct {
	TCPEnabled    bool
	TCPAddr       string
	Files         []string
	FileFromStart bool
	StateFile     string
	LineBuffer    int
}

// buildInputPlugins assembles the configured inputs. The returned cleanup
// persists tail offsets so file sources resume where they left off.
func buildInputPlugins(cfg InputPluginConfig) ([]InputSourcePlugin, func(), error) {
	var state *tailstate.Store
	if len(cfg.Files) > 0 && cfg.StateFile != "" {
		var err error
		state, err = tailstate.Open(cfg.StateFile)
		if err != nil {
			return nil, nil, fmt.Errorf("open tail state: %w", err)
		}
	}

	plugins := make([]InputSourcePlugin, 0, len(cfg.Files)+2)
	plugins = append(plugins, tcpInputPlugin{
		addr:    cfg.TCPAddr,
		enabled: cfg.TCPEnabled,
		buffer:  cfg.LineBuffer,
	})
	for _, path := range cfg.Files {
		plugins = append(plugins, fileInputPlugin{
			path:      path,
			fromStart: cfg.FileFromStart,
			state:     state,
			buffer:    cfg.LineBuffer,
		})
	}
	plugins = append(plugins, stdinInputPlugin{})

	cleanup := func() {
		if state == nil {
			return
		}
		if err := state.Save(); err != nil {
			log.Printf("tail state: save failed: %v", err)
		}
	}
	return plugins, cleanup, nil
}

type tcpInputPlugin struct {
	addr    string
	enabled bool
	buffer  int
}

func (p tcpInputPlugin) Name() string { return "tcp" }

func (p tcpInputPlugin) Enabled() bool { return p.enabled }

func (p tcpInputPlugin) Build(_ context.Context) (NamedLogSource, error) {
	server := tcpserver.NewServer(p.addr, tcpserver.ServerConfig{LineChannelSize: p.buffer})
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("start tcp server: %w", err)
	}
	return logsource.NewTCPSource(server), nil
}

type fileInputPlugin struct {
	path      string
	fromStart bool
	state     *tailstate.Store
	buffer    int
}

func (p fileInputPlugin) Name() string { return "file:" + p.path }

func (p fileInputPlugin) Enabled() bool { return p.path != "" }

func (p fileInputPlugin) Build(ctx context.Context) (NamedLogSource, error) {
	return logsource.NewFileSource(ctx, p.path, logsource.FileConfig{
		BufferSize:    p.buffer,
		ReadFromStart: p.fromStart,
		State:         p.state,
	}), nil
}

type stdinInputPlugin struct{}

func (p stdinInputPlugin) Name() string { return "stdin" }

func (p stdinInputPlugin) Enabled() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

func (p stdinInputPlugin) Build(ctx context.Context) (NamedLogSource, error) {
	return logsource.NewStdinSource(ctx), nil
}
