package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"docchat/internal/llm"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig  `json:"server"`
	Groq      GroqConfig    `json:"groq"`
	Chat      ChatConfig    `json:"chat"`
	Intake    IntakeConfig  `json:"intake"`
	Logging   LoggingConfig `json:"logging"`
	StorePath string        `json:"store_path"` // sqlite file for the key-value store
}

// ServerConfig controls the HTTP server
type ServerConfig struct {
	Port        int    `json:"port"`
	BindAddress string `json:"bind_address"`
}

// GroqConfig configures the completion client
type GroqConfig struct {
	APIKey         string  `json:"api_key"`
	Model          string  `json:"model"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
	TopP           float64 `json:"top_p"`
	TimeoutSeconds int     `json:"timeout_seconds"`
}

// ChatConfig controls conversation behavior
type ChatConfig struct {
	Grounding        bool   `json:"grounding"`          // inject document context when documents exist
	ContextCharLimit int    `json:"context_char_limit"` // 0 = include everything
	Greeting         string `json:"greeting"`           // override for the initial assistant message
}

// IntakeConfig controls document intake
type IntakeConfig struct {
	MaxFileSizeMB     int      `json:"max_file_size_mb"`
	AllowedExtensions []string `json:"allowed_extensions"`
	WatchFolders      []string `json:"watch_folders"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `json:"level"`  // "debug", "info", "warn", "error"
	Format string `json:"format"` // "console" or "json"
}

// defaults returns the built-in configuration. Every recognized option is
// enumerated here so nothing is defaulted at point of use.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			BindAddress: "127.0.0.1",
		},
		Groq: GroqConfig{
			Model:          "llama-3.3-70b-versatile",
			Temperature:    0.7,
			MaxTokens:      2048,
			TopP:           1.0,
			TimeoutSeconds: 60,
		},
		Chat: ChatConfig{
			Grounding:        true,
			ContextCharLimit: 0,
		},
		Intake: IntakeConfig{
			MaxFileSizeMB:     10,
			AllowedExtensions: []string{".pdf", ".txt", ".doc", ".docx", ".md"},
			WatchFolders:      []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		StorePath: "docchat.db",
	}
}

// Load reads configuration from file and environment. A missing file is
// created with defaults. Environment variables override file values.
func Load(path string) (*Config, error) {
	// A .env file is optional; ignore its absence.
	_ = godotenv.Load()

	cfg := defaults()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		// Apply defaults for any fields the file left zero-valued
		d := defaults()
		if cfg.Server.Port == 0 {
			cfg.Server.Port = d.Server.Port
		}
		if cfg.Server.BindAddress == "" {
			cfg.Server.BindAddress = d.Server.BindAddress
		}
		if cfg.Groq.Model == "" {
			cfg.Groq.Model = d.Groq.Model
		}
		if cfg.Groq.Temperature == 0 {
			cfg.Groq.Temperature = d.Groq.Temperature
		}
		if cfg.Groq.MaxTokens == 0 {
			cfg.Groq.MaxTokens = d.Groq.MaxTokens
		}
		if cfg.Groq.TopP == 0 {
			cfg.Groq.TopP = d.Groq.TopP
		}
		if cfg.Groq.TimeoutSeconds == 0 {
			cfg.Groq.TimeoutSeconds = d.Groq.TimeoutSeconds
		}
		if cfg.Intake.MaxFileSizeMB == 0 {
			cfg.Intake.MaxFileSizeMB = d.Intake.MaxFileSizeMB
		}
		if len(cfg.Intake.AllowedExtensions) == 0 {
			cfg.Intake.AllowedExtensions = d.Intake.AllowedExtensions
		}
		if cfg.Logging.Level == "" {
			cfg.Logging.Level = d.Logging.Level
		}
		if cfg.Logging.Format == "" {
			cfg.Logging.Format = d.Logging.Format
		}
		if cfg.StorePath == "" {
			cfg.StorePath = d.StorePath
		}
	} else {
		// Create default config file
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// applyEnvOverrides applies environment variable overrides. The API key has
// no embedded default; it arrives from the file or the environment only.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCCHAT_GROQ_KEY"); v != "" {
		c.Groq.APIKey = v
	} else if v := os.Getenv("GROQ_API_KEY"); v != "" && c.Groq.APIKey == "" {
		c.Groq.APIKey = v
	}
	if v := os.Getenv("DOCCHAT_GROQ_MODEL"); v != "" {
		c.Groq.Model = v
	}
	if v := os.Getenv("DOCCHAT_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("DOCCHAT_SERVER_BIND_ADDRESS"); v != "" {
		c.Server.BindAddress = v
	}
	if v := os.Getenv("DOCCHAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DOCCHAT_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("DOCCHAT_STORE_PATH"); v != "" {
		c.StorePath = v
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Server.Port < 1024 && os.Geteuid() != 0 {
		return fmt.Errorf("privileged port %d requires root", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be console or json)", c.Logging.Format)
	}

	if !llm.KnownModel(c.Groq.Model) {
		return fmt.Errorf("unknown model: %s", c.Groq.Model)
	}

	if c.Groq.Temperature < 0 || c.Groq.Temperature > 2 {
		return fmt.Errorf("temperature %.2f out of range [0, 2]", c.Groq.Temperature)
	}

	if c.Groq.TopP <= 0 || c.Groq.TopP > 1 {
		return fmt.Errorf("top_p %.2f out of range (0, 1]", c.Groq.TopP)
	}

	if c.Groq.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.Groq.MaxTokens)
	}

	if c.Chat.ContextCharLimit < 0 {
		return fmt.Errorf("context_char_limit must not be negative, got %d", c.Chat.ContextCharLimit)
	}

	return nil
}
