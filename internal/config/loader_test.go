package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir(), nil)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFile(t *testing.T) {
	dir := writeConfig(t, `
server:
  addr: ":9000"
  read_timeout: 5s
  allowed_origins:
    - https://a.example
    - https://b.example
upstream:
  url: http://gql.internal/api/gql
  timeout: 10s
export:
  template_path: /srv/vzor.xlsx
  first_row: 3
log:
  level: debug
`)

	cfg, err := Load(dir, nil)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.Server.Addr)
	require.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	require.Equal(t, DefaultConfig().Server.WriteTimeout, cfg.Server.WriteTimeout)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	require.Equal(t, "http://gql.internal/api/gql", cfg.Upstream.URL)
	require.Equal(t, 10*time.Second, cfg.Upstream.Timeout)
	require.Equal(t, "/srv/vzor.xlsx", cfg.Export.TemplatePath)
	require.Equal(t, 3, cfg.Export.FirstRow)
	require.Equal(t, "data", cfg.Export.Sheet)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := writeConfig(t, "upstream:\n  url: http://from-file/gql\n")
	t.Setenv("ANALYSIS_UPSTREAM_URL", "http://from-env/gql")
	t.Setenv("ANALYSIS_SERVER_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ANALYSIS_TRACING_ENDPOINT", "http://collector:4318")

	cfg, err := Load(dir, nil)
	require.NoError(t, err)
	require.Equal(t, "http://from-env/gql", cfg.Upstream.URL)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	require.Equal(t, "http://collector:4318", cfg.Tracing.Endpoint)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("ANALYSIS_SERVER_ADDR", ":7000")

	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.String("addr", "", "")
	flags.String("log-level", "", "")
	require.NoError(t, flags.Parse([]string{"--addr", ":7777"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	require.Equal(t, ":7777", cfg.Server.Addr)
	// unset flags do not shadow defaults
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoadInvalid(t *testing.T) {
	dir := writeConfig(t, "upstream:\n  url: not-a-url\nexport:\n  first_row: 0\n")

	_, err := Load(dir, nil)
	require.ErrorContains(t, err, "upstream.url")
	require.ErrorContains(t, err, "export.first_row")
}

func TestLoadRejectsWildcardOrigin(t *testing.T) {
	t.Setenv("ANALYSIS_SERVER_ALLOWED_ORIGINS", "*")

	_, err := Load(t.TempDir(), nil)
	require.ErrorContains(t, err, "server.allowed_origins")
}

func TestDefaultOriginsAreExplicit(t *testing.T) {
	require.NotContains(t, DefaultConfig().Server.AllowedOrigins, "*")
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoadMalformedFile(t *testing.T) {
	dir := writeConfig(t, "server: [unterminated\n")

	_, err := Load(dir, nil)
	require.ErrorContains(t, err, "read config")
}
