package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rpattn/projectanalysis/internal/logging"
)

// EnvPrefix prefixes environment overrides, e.g. ANALYSIS_UPSTREAM_URL.
const EnvPrefix = "ANALYSIS"

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"addr":         "server.addr",
	"upstream-url": "upstream.url",
	"template":     "export.template_path",
	"log-level":    "log.level",
	"log-format":   "log.format",
}

// Load reads config.yaml from configPath when present, then applies
// environment overrides and finally any flags the user set explicitly.
func Load(configPath string, flags *pflag.FlagSet) (Config, error) {
	// Start with default
	defaults := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("server.read_timeout", defaults.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", defaults.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", defaults.Server.IdleTimeout)
	v.SetDefault("server.allowed_origins", defaults.Server.AllowedOrigins)
	v.SetDefault("upstream.url", defaults.Upstream.URL)
	v.SetDefault("upstream.timeout", defaults.Upstream.Timeout)
	v.SetDefault("export.template_path", defaults.Export.TemplatePath)
	v.SetDefault("export.sheet", defaults.Export.Sheet)
	v.SetDefault("export.first_row", defaults.Export.FirstRow)
	v.SetDefault("export.file_name", defaults.Export.FileName)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("tracing.endpoint", defaults.Tracing.Endpoint)
	v.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	if flags != nil {
		for name, key := range flagKeys {
			if flag := flags.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		logging.Debug().Msg("[CONFIG] no config.yaml found, using defaults and env vars")
	} else {
		logging.Debug().Str("file", v.ConfigFileUsed()).Msg("[CONFIG] loaded config file")
	}

	cfg := Config{
		Server: ServerConfig{
			Addr:           v.GetString("server.addr"),
			ReadTimeout:    v.GetDuration("server.read_timeout"),
			WriteTimeout:   v.GetDuration("server.write_timeout"),
			IdleTimeout:    v.GetDuration("server.idle_timeout"),
			AllowedOrigins: splitList(v.GetStringSlice("server.allowed_origins")),
		},
		Upstream: UpstreamConfig{
			URL:     v.GetString("upstream.url"),
			Timeout: v.GetDuration("upstream.timeout"),
		},
		Export: ExportConfig{
			TemplatePath: v.GetString("export.template_path"),
			Sheet:        v.GetString("export.sheet"),
			FirstRow:     v.GetInt("export.first_row"),
			FileName:     v.GetString("export.file_name"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Tracing: TracingConfig{
			Endpoint:    v.GetString("tracing.endpoint"),
			ServiceName: v.GetString("tracing.service_name"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// splitList accepts both YAML lists and comma-separated env values.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
