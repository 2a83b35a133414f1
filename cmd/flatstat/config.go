package main

import (
	"time"

	"github.com/tinytelemetry/flatstat/internal/model"
)

const (
	defaultCycleInterval = model.DefaultCycleInterval
	defaultLineBuffer    = model.DefaultLineBuffer
	defaultBindHost      = "127.0.0.1"
	defaultTCPPort       = 4040
	defaultMuxBufferSize = DefaultMuxBuffer
	defaultAPIPort       = 3000
	defaultQueryTimeout  = 30 * time.Second
	defaultRetention     = 30 // days, 0 = disabled
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	KeySeparator  string        `mapstructure:"key-separator"`
	RulesFile     string        `mapstructure:"rules-file"`
	CycleInterval time.Duration `mapstructure:"cycle-interval"`
	LineBuffer    int           `mapstructure:"line-buffer"`
	MuxBufferSize int           `mapstructure:"mux-buffer-size"`

	TCPEnabled bool   `mapstructure:"tcp-enabled"`
	TCPPort    int    `mapstructure:"tcp-port"`
	TCPAddr    string `mapstructure:"tcp-addr"`

	Files         []string `mapstructure:"files"`
	FileFromStart bool     `mapstructure:"file-from-start"`
	StateFile     string   `mapstructure:"state-file"`

	DBEnabled    bool          `mapstructure:"db-enabled"`
	DBPath       string        `mapstructure:"db-path"`
	QueryTimeout time.Duration `mapstructure:"query-timeout"`
	Retention    int           `mapstructure:"retention"`

	APIEnabled bool   `mapstructure:"api-enabled"`
	APIPort    int    `mapstructure:"api-port"`
	APIAddr    string `mapstructure:"api-addr"`

	StdoutEnabled  bool   `mapstructure:"stdout-enabled"`
	GraphiteAddr   string `mapstructure:"graphite-addr"`
	GraphitePrefix string `mapstructure:"graphite-prefix"`
	StatsdAddr     string `mapstructure:"statsd-addr"`
	StatsdPrefix   string `mapstructure:"statsd-prefix"`
	OTLPEndpoint   string `mapstructure:"otlp-endpoint"`
	OTLPService    string `mapstructure:"otlp-service"`

	ConfigPath string `mapstructure:"-"` // not from config file
}
