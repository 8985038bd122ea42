package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	TokenStoreKeyring = "keyring"
	TokenStoreFile    = "file"

	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

type Config struct {
	Poll           PollConfig  `mapstructure:"poll" yaml:"poll"`
	Gmail          GmailConfig `mapstructure:"gmail" yaml:"gmail"`
	LLM            LLMConfig   `mapstructure:"llm" yaml:"llm"`
	FiltersFile    string      `mapstructure:"filters_file" yaml:"filters_file"`
	Log            LogConfig   `mapstructure:"log" yaml:"log"`
	KeyringBackend string      `mapstructure:"keyring_backend" yaml:"keyring_backend"`
}

type PollConfig struct {
	Interval  time.Duration `mapstructure:"interval" yaml:"interval"`
	BatchSize int64         `mapstructure:"batch_size" yaml:"batch_size"`
	Query     string        `mapstructure:"query" yaml:"query"`
	Lookback  time.Duration `mapstructure:"lookback" yaml:"lookback"`
}

type GmailConfig struct {
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	TokenStore      string `mapstructure:"token_store" yaml:"token_store"`
	TokenFile       string `mapstructure:"token_file" yaml:"token_file"`
}

type LLMConfig struct {
	BaseURL   string        `mapstructure:"base_url" yaml:"base_url"`
	Model     string        `mapstructure:"model" yaml:"model"`
	APIKey    string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Business  string        `mapstructure:"business" yaml:"business"`
	Topic     string        `mapstructure:"topic" yaml:"topic"`
	Signature string        `mapstructure:"signature" yaml:"signature"`

	// APIKeySource records where APIKey came from: env, config or keyring.
	APIKeySource string `mapstructure:"-" yaml:"-"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	File   string `mapstructure:"file" yaml:"file"`
	Format string `mapstructure:"format" yaml:"format"`
}

func DefaultConfig() Config {
	return Config{
		Poll: PollConfig{
			Interval:  60 * time.Second,
			BatchSize: 3,
			Query:     "is:unread",
			Lookback:  24 * time.Hour,
		},
		Gmail: GmailConfig{
			CredentialsFile: "credentials.json",
			TokenStore:      TokenStoreKeyring,
			TokenFile:       "token.json",
		},
		LLM: LLMConfig{
			BaseURL:   "https://api.groq.com/openai/v1",
			Model:     "llama-3.3-70b-versatile",
			Timeout:   60 * time.Second,
			Business:  "Mobile Store",
			Topic:     "mobile phones, buying a phone, or mobile accessories",
			Signature: "Mobile Store Team",
		},
		FiltersFile: "filters.json",
		Log: LogConfig{
			Level:  "info",
			File:   "mailpilot.log",
			Format: LogFormatConsole,
		},
		KeyringBackend: "auto",
	}
}

// Load reads the config file at path, or the default location when path is empty,
// and applies MAILPILOT_* environment overrides. A missing file is not an error.
// Relative file paths in the result are resolved against the config file's directory.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MAILPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// GROQ_API_KEY is honoured for compatibility with existing setups
	if err := v.BindEnv("llm.api_key", "MAILPILOT_LLM_API_KEY", "GROQ_API_KEY"); err != nil {
		return cfg, err
	}

	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.LLM.APIKey != "" {
		cfg.LLM.APIKeySource = "config"
		if envSet("MAILPILOT_LLM_API_KEY") || envSet("GROQ_API_KEY") {
			cfg.LLM.APIKeySource = "env"
		}
	}

	base := filepath.Dir(path)
	cfg.Gmail.CredentialsFile = resolve(base, cfg.Gmail.CredentialsFile)
	cfg.Gmail.TokenFile = resolve(base, cfg.Gmail.TokenFile)
	cfg.FiltersFile = resolve(base, cfg.FiltersFile)
	cfg.Log.File = resolve(base, cfg.Log.File)

	return cfg, nil
}

// Save writes cfg as YAML to path, or to the default location when path is empty.
func Save(path string, cfg Config) (string, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return "", err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}

	return path, nil
}

func Redact(cfg Config) Config {
	masked := cfg
	if masked.LLM.APIKey != "" {
		masked.LLM.APIKey = "****"
	}
	return masked
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("poll.interval", cfg.Poll.Interval)
	v.SetDefault("poll.batch_size", cfg.Poll.BatchSize)
	v.SetDefault("poll.query", cfg.Poll.Query)
	v.SetDefault("poll.lookback", cfg.Poll.Lookback)

	v.SetDefault("gmail.credentials_file", cfg.Gmail.CredentialsFile)
	v.SetDefault("gmail.token_store", cfg.Gmail.TokenStore)
	v.SetDefault("gmail.token_file", cfg.Gmail.TokenFile)

	v.SetDefault("llm.base_url", cfg.LLM.BaseURL)
	v.SetDefault("llm.model", cfg.LLM.Model)
	v.SetDefault("llm.api_key", cfg.LLM.APIKey)
	v.SetDefault("llm.timeout", cfg.LLM.Timeout)
	v.SetDefault("llm.business", cfg.LLM.Business)
	v.SetDefault("llm.topic", cfg.LLM.Topic)
	v.SetDefault("llm.signature", cfg.LLM.Signature)

	v.SetDefault("filters_file", cfg.FiltersFile)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.format", cfg.Log.Format)

	v.SetDefault("keyring_backend", cfg.KeyringBackend)
}

func Validate(cfg Config) error {
	if cfg.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive, got %s", cfg.Poll.Interval)
	}
	if cfg.Poll.BatchSize <= 0 {
		return fmt.Errorf("poll.batch_size must be positive, got %d", cfg.Poll.BatchSize)
	}
	if cfg.Poll.Lookback < 0 {
		return fmt.Errorf("poll.lookback must not be negative, got %s", cfg.Poll.Lookback)
	}
	if strings.TrimSpace(cfg.Poll.Query) == "" {
		return fmt.Errorf("poll.query is required")
	}
	if cfg.Gmail.CredentialsFile == "" {
		return fmt.Errorf("gmail.credentials_file is required")
	}
	switch cfg.Gmail.TokenStore {
	case TokenStoreKeyring:
	case TokenStoreFile:
		if cfg.Gmail.TokenFile == "" {
			return fmt.Errorf("gmail.token_file is required with the file token store")
		}
	default:
		return fmt.Errorf("gmail.token_store must be %q or %q, got %q", TokenStoreKeyring, TokenStoreFile, cfg.Gmail.TokenStore)
	}
	if cfg.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required")
	}
	if cfg.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Log.Format {
	case LogFormatConsole, LogFormatJSON:
	default:
		return fmt.Errorf("log.format must be %q or %q, got %q", LogFormatConsole, LogFormatJSON, cfg.Log.Format)
	}
	return nil
}

func envSet(key string) bool {
	v, ok := os.LookupEnv(key)
	return ok && v != ""
}
