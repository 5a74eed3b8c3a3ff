package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbridge/internal/core"
	"chatbridge/internal/resolver"
)

// isolate runs the test in an empty directory with every bound variable cleared.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	for _, env := range envBindings {
		t.Setenv(env, "")
	}
	t.Setenv("CONFIG_FILE", "")
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	result, err := Load()
	require.NoError(t, err)
	cfg := result.Config

	assert.Empty(t, result.ConfigFile)
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Empty(t, cfg.Server.MasterKey)
	assert.Equal(t, DefaultBodySizeLimit, cfg.Server.BodySizeLimit)
	assert.Empty(t, cfg.Gemini.APIKey)
	assert.Equal(t, DefaultGeminiBaseURL, cfg.Gemini.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, core.DefaultCandidates(), cfg.Gemini.Candidates)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Endpoint)
	assert.Equal(t, "auto", cfg.Logging.Format)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.CLI.ServerURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "PORT override",
			envVars: map[string]string{"PORT": "8081"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "8081", cfg.Server.Port)
			},
		},
		{
			name:    "CHATBRIDGE_MASTER_KEY override",
			envVars: map[string]string{"CHATBRIDGE_MASTER_KEY": "my-secret"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "my-secret", cfg.Server.MasterKey)
			},
		},
		{
			name:    "gemini settings",
			envVars: map[string]string{"GEMINI_API_KEY": "key-123", "GEMINI_BASE_URL": "http://localhost:9999", "GEMINI_TIMEOUT": "5s"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "key-123", cfg.Gemini.APIKey)
				assert.Equal(t, "http://localhost:9999", cfg.Gemini.BaseURL)
				assert.Equal(t, 5*time.Second, cfg.Gemini.Timeout)
			},
		},
		{
			name:    "timeout as bare seconds",
			envVars: map[string]string{"GEMINI_TIMEOUT": "12"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 12*time.Second, cfg.Gemini.Timeout)
			},
		},
		{
			name:    "candidate list",
			envVars: map[string]string{"GEMINI_CANDIDATES": "v1/gemini-pro-latest, v1beta/models/gemini-2.0-flash"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []core.Candidate{
					{APIVersion: core.APIVersionV1, Model: "gemini-pro-latest"},
					{APIVersion: core.APIVersionV1Beta, Model: "gemini-2.0-flash"},
				}, cfg.Gemini.Candidates)
			},
		},
		{
			name:    "bool overrides",
			envVars: map[string]string{"METRICS_ENABLED": "true", "METRICS_ENDPOINT": "/internal/metrics"},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Metrics.Enabled)
				assert.Equal(t, "/internal/metrics", cfg.Metrics.Endpoint)
			},
		},
		{
			name:    "logging and cli",
			envVars: map[string]string{"LOG_FORMAT": "json", "LOG_LEVEL": "debug", "CHATBRIDGE_SERVER_URL": "http://bridge:3000"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, "http://bridge:3000", cfg.CLI.ServerURL)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			result, err := Load()
			require.NoError(t, err)
			tt.check(t, result.Config)
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
	}{
		{"unknown api version", map[string]string{"GEMINI_CANDIDATES": "v2/gemini-2.5-flash"}},
		{"candidate without model", map[string]string{"GEMINI_CANDIDATES": "v1/"}},
		{"bad timeout", map[string]string{"GEMINI_TIMEOUT": "soon"}},
		{"negative timeout", map[string]string{"GEMINI_TIMEOUT": "-1s"}},
		{"bad body limit", map[string]string{"BODY_SIZE_LIMIT": "lots"}},
		{"metrics endpoint without slash", map[string]string{"METRICS_ENABLED": "true", "METRICS_ENDPOINT": "metrics"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := isolate(t)
	t.Setenv("TEST_GEMINI_KEY", "from-env")
	writeFile(t, dir, "config.yaml", `
server:
  port: 4000
  master_key: "${TEST_MASTER_KEY:-}"
gemini:
  api_key: "${TEST_GEMINI_KEY}"
  timeout: 10
  candidates:
    - v1/gemini-2.5-flash
    - api_version: v1beta
      model: gemini-pro-latest
metrics:
  enabled: true
`)

	result, err := Load()
	require.NoError(t, err)
	cfg := result.Config

	assert.Equal(t, "config.yaml", result.ConfigFile)
	assert.Equal(t, "4000", cfg.Server.Port)
	assert.Empty(t, cfg.Server.MasterKey)
	assert.Equal(t, "from-env", cfg.Gemini.APIKey)
	assert.Equal(t, 10*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, []core.Candidate{
		{APIVersion: core.APIVersionV1, Model: "gemini-2.5-flash"},
		{APIVersion: core.APIVersionV1Beta, Model: "gemini-pro-latest"},
	}, cfg.Gemini.Candidates)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, DefaultGeminiBaseURL, cfg.Gemini.BaseURL, "unset keys keep their defaults")
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, "config.yaml", "server:\n  port: 4000\n")
	t.Setenv("PORT", "5000")

	result, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "5000", result.Config.Server.Port)
}

func TestLoad_TOMLFile(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "settings/bridge.toml", `
[gemini]
api_key = "toml-key"
timeout = "2m"
candidates = ["v1beta/gemini-2.0-flash"]

[logging]
format = "json"
`)
	t.Setenv("CONFIG_FILE", path)

	result, err := Load()
	require.NoError(t, err)
	cfg := result.Config

	assert.Equal(t, path, result.ConfigFile)
	assert.Equal(t, "toml-key", cfg.Gemini.APIKey)
	assert.Equal(t, 2*time.Minute, cfg.Gemini.Timeout)
	assert.Equal(t, []core.Candidate{{APIVersion: core.APIVersionV1Beta, Model: "gemini-2.0-flash"}}, cfg.Gemini.Candidates)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EmptyCandidateListInFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, "config.yaml", "gemini:\n  candidates: []\n")

	result, err := Load()
	require.NoError(t, err)
	assert.Empty(t, result.Config.Gemini.Candidates)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	isolate(t)
	t.Setenv("CONFIG_FILE", "does-not-exist.yaml")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_MalformedConfigFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, "config.yaml", "server: [unclosed\n")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, ".env", "GEMINI_API_KEY=dotenv-key\nPORT=7000\n")
	t.Setenv("PORT", "7100")

	// godotenv leaves variables that already exist untouched; clear the key so
	// the .env value can apply.
	require.NoError(t, os.Unsetenv("GEMINI_API_KEY"))
	t.Cleanup(func() { _ = os.Unsetenv("GEMINI_API_KEY") })

	result, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dotenv-key", result.Config.Gemini.APIKey)
	assert.Equal(t, "7100", result.Config.Server.Port)
}

type countingGenerator struct {
	calls int
}

func (g *countingGenerator) Generate(context.Context, *core.GenerateRequest) (string, error) {
	g.calls++
	return "unexpected", nil
}

func TestLoad_ExampleFileWithoutAPIKey(t *testing.T) {
	example, err := filepath.Abs("config.example.yaml")
	require.NoError(t, err)
	isolate(t)
	t.Setenv("CONFIG_FILE", example)

	result, err := Load()
	require.NoError(t, err)
	assert.Equal(t, example, result.ConfigFile)
	assert.Empty(t, result.Config.Gemini.APIKey)
	assert.Empty(t, result.Config.Server.MasterKey)
	assert.Equal(t, "3000", result.Config.Server.Port)

	gen := &countingGenerator{}
	r := resolver.New(resolver.Config{
		APIKey:         result.Config.Gemini.APIKey,
		Candidates:     result.Config.Gemini.Candidates,
		AttemptTimeout: result.Config.Gemini.Timeout,
	}, gen, nil)

	_, err = r.Resolve(context.Background(), "hello")
	var gwErr *core.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, core.ErrorTypeConfiguration, gwErr.Type)
	assert.Zero(t, gen.calls)
}

func TestLoad_UnresolvedPlaceholderKeyIsDropped(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, "config.yaml", `
server:
  master_key: "${TEST_UNSET_MASTER_KEY}"
gemini:
  api_key: "prefix-${TEST_UNSET_GEMINI_KEY}"
`)

	result, err := Load()
	require.NoError(t, err)
	assert.Empty(t, result.Config.Gemini.APIKey)
	assert.Empty(t, result.Config.Server.MasterKey)
}
