package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/MegaGrindStone/avatar-chat-ui/internal/handlers"
	"github.com/MegaGrindStone/avatar-chat-ui/internal/services"
	"github.com/MegaGrindStone/avatar-chat-ui/internal/session"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type backendConfig interface {
	backend(logger *slog.Logger) (session.Backend, error)
}

// BaseBackendConfig contains the common fields for all backend configurations.
type BaseBackendConfig struct {
	Provider string `yaml:"provider"`
}

type config struct {
	Port           string        `yaml:"port"`
	LogLevel       string        `yaml:"logLevel"`
	LogFormat      string        `yaml:"logFormat"`
	SessionTTL     time.Duration `yaml:"sessionTTL"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
	Page           pageConfig    `yaml:"page"`
	Backend        backendConfig `yaml:"backend"`
	Speech         speechConfig  `yaml:"speech"`
}

type pageConfig struct {
	Title     string `yaml:"title"`
	AvatarURL string `yaml:"avatarURL"`
}

type speechConfig struct {
	Locale       string         `yaml:"locale"`
	MaxRecording time.Duration  `yaml:"maxRecording"`
	Whisper      *whisperConfig `yaml:"whisper"`
}

type whisperConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseURL"`
	Model   string `yaml:"model"`
}

type avatarConfig struct {
	BaseBackendConfig `yaml:",inline"`
	BaseURL           string `yaml:"baseURL"`
}

type ollamaConfig struct {
	BaseBackendConfig `yaml:",inline"`
	Host              string `yaml:"host"`
	Model             string `yaml:"model"`
	SystemPrompt      string `yaml:"systemPrompt"`
}

type openAIConfig struct {
	BaseBackendConfig `yaml:",inline"`
	APIKey            string `yaml:"apiKey"`
	BaseURL           string `yaml:"baseURL"`
	Model             string `yaml:"model"`
	SystemPrompt      string `yaml:"systemPrompt"`
}

// envConfig lists the environment variables that override the config file.
type envConfig struct {
	ConfigPath   string `env:"AVATARCHAT_CONFIG"`
	Port         string `env:"AVATARCHAT_PORT"`
	BackendURL   string `env:"AVATARCHAT_BACKEND_URL"`
	LogLevel     string `env:"AVATARCHAT_LOG_LEVEL"`
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	OllamaHost   string `env:"OLLAMA_HOST"`
}

const (
	providerAvatar = "avatar"
	providerOllama = "ollama"
	providerOpenAI = "openai"
)

func defaultConfig() config {
	return config{
		Port:           "8080",
		LogLevel:       "info",
		LogFormat:      "text",
		SessionTTL:     30 * time.Minute,
		RequestTimeout: 2 * time.Minute,
		AllowedOrigins: []string{"*"},
		Speech: speechConfig{
			Locale:       "en-US",
			MaxRecording: 30 * time.Second,
		},
	}
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port           string         `yaml:"port"`
		LogLevel       string         `yaml:"logLevel"`
		LogFormat      string         `yaml:"logFormat"`
		SessionTTL     *time.Duration `yaml:"sessionTTL"`
		RequestTimeout *time.Duration `yaml:"requestTimeout"`
		AllowedOrigins []string       `yaml:"allowedOrigins"`
		Page           pageConfig     `yaml:"page"`
		Backend        map[string]any `yaml:"backend"`
		Speech         speechConfig   `yaml:"speech"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	if rawConfig.Port != "" {
		c.Port = rawConfig.Port
	}
	if rawConfig.LogLevel != "" {
		c.LogLevel = rawConfig.LogLevel
	}
	if rawConfig.LogFormat != "" {
		c.LogFormat = rawConfig.LogFormat
	}
	if rawConfig.SessionTTL != nil {
		c.SessionTTL = *rawConfig.SessionTTL
	}
	if rawConfig.RequestTimeout != nil {
		c.RequestTimeout = *rawConfig.RequestTimeout
	}
	if len(rawConfig.AllowedOrigins) > 0 {
		c.AllowedOrigins = rawConfig.AllowedOrigins
	}
	c.Page = rawConfig.Page
	if rawConfig.Speech.Locale != "" {
		c.Speech.Locale = rawConfig.Speech.Locale
	}
	if rawConfig.Speech.MaxRecording != 0 {
		c.Speech.MaxRecording = rawConfig.Speech.MaxRecording
	}
	c.Speech.Whisper = rawConfig.Speech.Whisper

	if rawConfig.Backend == nil {
		return nil
	}

	provider, _ := rawConfig.Backend["provider"].(string)
	if provider == "" {
		provider = providerAvatar
	}

	backendRawYAML, err := yaml.Marshal(rawConfig.Backend)
	if err != nil {
		return err
	}

	var backend backendConfig
	switch provider {
	case providerAvatar:
		backend = &avatarConfig{}
	case providerOllama:
		backend = &ollamaConfig{}
	case providerOpenAI:
		backend = &openAIConfig{}
	default:
		return fmt.Errorf("unknown backend provider: %s", provider)
	}

	if err := yaml.Unmarshal(backendRawYAML, backend); err != nil {
		return err
	}

	c.Backend = backend
	return nil
}

// loadConfig reads the YAML config at path on top of the defaults, then applies environment overrides.
// A missing file is only an error when required is set.
func loadConfig(path string, required bool, envCfg envConfig) (config, error) {
	cfg := defaultConfig()

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return config{}, fmt.Errorf("error decoding config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
	default:
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}

	cfg.applyEnv(envCfg)

	if cfg.Backend == nil {
		return config{}, errors.New("backend is not configured: set backend in the config file or AVATARCHAT_BACKEND_URL")
	}
	return cfg, nil
}

func parseEnv() (envConfig, error) {
	var e envConfig
	if err := env.Parse(&e); err != nil {
		return envConfig{}, fmt.Errorf("error parsing environment: %w", err)
	}
	return e, nil
}

func (c *config) applyEnv(e envConfig) {
	if e.Port != "" {
		c.Port = e.Port
	}
	if e.LogLevel != "" {
		c.LogLevel = e.LogLevel
	}

	switch b := c.Backend.(type) {
	case nil:
		if e.BackendURL != "" {
			c.Backend = &avatarConfig{
				BaseBackendConfig: BaseBackendConfig{Provider: providerAvatar},
				BaseURL:           e.BackendURL,
			}
		}
	case *avatarConfig:
		if e.BackendURL != "" {
			b.BaseURL = e.BackendURL
		}
	case *ollamaConfig:
		if b.Host == "" {
			b.Host = e.OllamaHost
		}
	case *openAIConfig:
		if b.APIKey == "" {
			b.APIKey = e.OpenAIAPIKey
		}
	}

	if w := c.Speech.Whisper; w != nil && w.APIKey == "" {
		w.APIKey = e.OpenAIAPIKey
	}
}

func (c config) page() handlers.Page {
	return handlers.Page{
		Title:               c.Page.Title,
		AvatarURL:           c.Page.AvatarURL,
		Locale:              c.Speech.Locale,
		ServerTranscription: c.Speech.Whisper != nil,
		MaxRecording:        c.Speech.MaxRecording,
	}
}

func (c config) transcriber(logger *slog.Logger) session.Transcriber {
	w := c.Speech.Whisper
	if w == nil {
		return nil
	}
	return services.NewWhisper(w.APIKey, w.BaseURL, w.Model, c.Speech.Locale, logger)
}

func (c config) logger(out io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(c.LogFormat) {
	case "", "text":
		return slog.New(slog.NewTextHandler(out, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(out, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format: %s", c.LogFormat)
	}
}

func (a avatarConfig) backend(logger *slog.Logger) (session.Backend, error) {
	if a.BaseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}
	return services.NewAvatar(a.BaseURL, logger), nil
}

func (o ollamaConfig) backend(logger *slog.Logger) (session.Backend, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if o.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	return services.NewOllama(o.Host, o.Model, o.SystemPrompt, logger)
}

func (o openAIConfig) backend(logger *slog.Logger) (session.Backend, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if o.APIKey == "" {
		return nil, fmt.Errorf("apiKey is required")
	}
	return services.NewOpenAI(o.APIKey, o.BaseURL, o.Model, o.SystemPrompt, logger), nil
}
