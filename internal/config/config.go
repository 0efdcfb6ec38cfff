package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds the service configuration
type Config struct {
	Server   ServerConfig
	Upstream UpstreamConfig
	Export   ExportConfig
	Log      LogConfig
	Tracing  TracingConfig
}

type ServerConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

type UpstreamConfig struct {
	URL     string
	Timeout time.Duration
}

type ExportConfig struct {
	TemplatePath string
	Sheet        string
	FirstRow     int
	FileName     string
}

type LogConfig struct {
	Level  string
	Format string
}

// TracingConfig enables OTLP export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string
	ServiceName string
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8000",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   60 * time.Second,
			IdleTimeout:    120 * time.Second,
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Upstream: UpstreamConfig{
			URL:     "http://localhost:33001/api/gql",
			Timeout: 30 * time.Second,
		},
		Export: ExportConfig{
			TemplatePath: "templates/projects.xlsx",
			Sheet:        "data",
			FirstRow:     2,
			FileName:     "Analyza.xlsx",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Tracing: TracingConfig{
			ServiceName: "project-analysis",
		},
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	for _, origin := range c.Server.AllowedOrigins {
		if strings.TrimSpace(origin) == "*" {
			errs = append(errs, errors.New(`server.allowed_origins must list origins explicitly, "*" cannot carry session cookies`))
		}
	}
	if u, err := url.Parse(c.Upstream.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("upstream.url %q is not an absolute URL", c.Upstream.URL))
	}
	if c.Upstream.Timeout < 0 {
		errs = append(errs, errors.New("upstream.timeout must not be negative"))
	}
	if strings.TrimSpace(c.Export.TemplatePath) == "" {
		errs = append(errs, errors.New("export.template_path is required"))
	}
	if c.Export.FirstRow < 1 {
		errs = append(errs, fmt.Errorf("export.first_row must be at least 1, got %d", c.Export.FirstRow))
	}
	return errors.Join(errs...)
}
