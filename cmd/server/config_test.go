package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigProviders(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		env    envConfig
		assert func(t *testing.T, cfg config)
	}{
		{
			name: "avatar",
			yaml: `
backend:
  provider: avatar
  baseURL: https://avatar.example.com
`,
			assert: func(t *testing.T, cfg config) {
				b, ok := cfg.Backend.(*avatarConfig)
				require.True(t, ok)
				assert.Equal(t, "https://avatar.example.com", b.BaseURL)
			},
		},
		{
			name: "provider defaults to avatar",
			yaml: `
backend:
  baseURL: https://avatar.example.com
`,
			assert: func(t *testing.T, cfg config) {
				_, ok := cfg.Backend.(*avatarConfig)
				assert.True(t, ok)
			},
		},
		{
			name: "ollama takes host from env",
			yaml: `
backend:
  provider: ollama
  model: llama3
  systemPrompt: be brief
`,
			env: envConfig{OllamaHost: "http://localhost:11434"},
			assert: func(t *testing.T, cfg config) {
				b, ok := cfg.Backend.(*ollamaConfig)
				require.True(t, ok)
				assert.Equal(t, "llama3", b.Model)
				assert.Equal(t, "be brief", b.SystemPrompt)
				assert.Equal(t, "http://localhost:11434", b.Host)
			},
		},
		{
			name: "openai keeps configured key",
			yaml: `
backend:
  provider: openai
  apiKey: from-file
  model: gpt-4o-mini
`,
			env: envConfig{OpenAIAPIKey: "from-env"},
			assert: func(t *testing.T, cfg config) {
				b, ok := cfg.Backend.(*openAIConfig)
				require.True(t, ok)
				assert.Equal(t, "from-file", b.APIKey)
				assert.Equal(t, "gpt-4o-mini", b.Model)
			},
		},
		{
			name: "backend url env overrides file",
			yaml: `
backend:
  provider: avatar
  baseURL: https://file.example.com
`,
			env: envConfig{BackendURL: "https://env.example.com"},
			assert: func(t *testing.T, cfg config) {
				b, ok := cfg.Backend.(*avatarConfig)
				require.True(t, ok)
				assert.Equal(t, "https://env.example.com", b.BaseURL)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadConfig(writeConfig(t, tt.yaml), true, tt.env)
			require.NoError(t, err)
			tt.assert(t, cfg)
		})
	}
}

func TestLoadConfigFields(t *testing.T) {
	path := writeConfig(t, `
port: "9090"
logLevel: debug
logFormat: json
sessionTTL: 10m
requestTimeout: 45s
allowedOrigins:
  - https://chat.example.com
page:
  title: Support
  avatarURL: /static/support.png
backend:
  baseURL: https://avatar.example.com
speech:
  locale: de-DE
  maxRecording: 15s
  whisper:
    model: whisper-1
`)

	cfg, err := loadConfig(path, true, envConfig{OpenAIAPIKey: "sk-test", Port: "7070"})
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"https://chat.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, "de-DE", cfg.Speech.Locale)
	assert.Equal(t, 15*time.Second, cfg.Speech.MaxRecording)
	require.NotNil(t, cfg.Speech.Whisper)
	assert.Equal(t, "sk-test", cfg.Speech.Whisper.APIKey)

	page := cfg.page()
	assert.Equal(t, "Support", page.Title)
	assert.Equal(t, "/static/support.png", page.AvatarURL)
	assert.Equal(t, "de-DE", page.Locale)
	assert.True(t, page.ServerTranscription)
	assert.Equal(t, 15*time.Second, page.MaxRecording)

	assert.NotNil(t, cfg.transcriber(discardLogger()))
}

func TestLoadConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")

	cfg, err := loadConfig(path, false, envConfig{BackendURL: "https://avatar.example.com"})
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 2*time.Minute, cfg.RequestTimeout)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "en-US", cfg.Speech.Locale)
	assert.Nil(t, cfg.Speech.Whisper)
	assert.Nil(t, cfg.transcriber(discardLogger()))
	assert.False(t, cfg.page().ServerTranscription)

	b, ok := cfg.Backend.(*avatarConfig)
	require.True(t, ok)
	assert.Equal(t, "https://avatar.example.com", b.BaseURL)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("unknown provider", func(t *testing.T) {
		path := writeConfig(t, `
backend:
  provider: claude
`)
		_, err := loadConfig(path, true, envConfig{})
		assert.ErrorContains(t, err, "unknown backend provider")
	})

	t.Run("no backend", func(t *testing.T) {
		path := writeConfig(t, "port: \"8080\"\n")
		_, err := loadConfig(path, true, envConfig{})
		assert.ErrorContains(t, err, "backend is not configured")
	})

	t.Run("required file missing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing.yaml")
		_, err := loadConfig(path, true, envConfig{BackendURL: "https://avatar.example.com"})
		assert.ErrorContains(t, err, "error opening config file")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, "backend: [")
		_, err := loadConfig(path, true, envConfig{})
		assert.ErrorContains(t, err, "error decoding config file")
	})
}

func TestBackendValidation(t *testing.T) {
	logger := discardLogger()

	_, err := avatarConfig{}.backend(logger)
	assert.ErrorContains(t, err, "baseURL is required")

	_, err = ollamaConfig{Host: "http://localhost:11434"}.backend(logger)
	assert.ErrorContains(t, err, "model is required")

	_, err = ollamaConfig{Model: "llama3"}.backend(logger)
	assert.ErrorContains(t, err, "host is required")

	_, err = openAIConfig{Model: "gpt-4o-mini"}.backend(logger)
	assert.ErrorContains(t, err, "apiKey is required")

	b, err := avatarConfig{BaseURL: "https://avatar.example.com"}.backend(logger)
	require.NoError(t, err)
	assert.NotNil(t, b)

	b, err = openAIConfig{APIKey: "sk-test", Model: "gpt-4o-mini"}.backend(logger)
	require.NoError(t, err)
	assert.NotNil(t, b)
}

func TestParseEnv(t *testing.T) {
	t.Setenv("AVATARCHAT_CONFIG", "/etc/avatarchat.yaml")
	t.Setenv("AVATARCHAT_PORT", "3000")
	t.Setenv("AVATARCHAT_BACKEND_URL", "https://avatar.example.com")
	t.Setenv("AVATARCHAT_LOG_LEVEL", "warn")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OLLAMA_HOST", "http://ollama:11434")

	e, err := parseEnv()
	require.NoError(t, err)
	assert.Equal(t, envConfig{
		ConfigPath:   "/etc/avatarchat.yaml",
		Port:         "3000",
		BackendURL:   "https://avatar.example.com",
		LogLevel:     "warn",
		OpenAIAPIKey: "sk-test",
		OllamaHost:   "http://ollama:11434",
	}, e)

	path, required, err := configPath(e)
	require.NoError(t, err)
	assert.Equal(t, "/etc/avatarchat.yaml", path)
	assert.True(t, required)
}

func TestConfigLogger(t *testing.T) {
	var buf bytes.Buffer

	cfg := defaultConfig()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"
	logger, err := cfg.logger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	cfg.LogLevel = "loud"
	_, err = cfg.logger(&buf)
	assert.ErrorContains(t, err, "invalid log level")

	cfg.LogLevel = "info"
	cfg.LogFormat = "xml"
	_, err = cfg.logger(&buf)
	assert.ErrorContains(t, err, "unknown log format")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
