package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/viper"

	"github.com/artpar/deploysmith/internal/core/domain"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Ollama   OllamaConfig   `mapstructure:"ollama"`
	Output   OutputConfig   `mapstructure:"output"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Docker   DockerConfig   `mapstructure:"docker"`
	Log      LogConfig      `mapstructure:"log"`
}

// OllamaConfig holds inference endpoint configuration.
type OllamaConfig struct {
	Host        string        `mapstructure:"host"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature float64       `mapstructure:"temperature"`
	TopP        float64       `mapstructure:"top_p"`
	TopK        int           `mapstructure:"top_k"`
}

// OutputConfig holds artifact output configuration.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// DatabaseConfig holds run history configuration.
type DatabaseConfig struct {
	DSN           string        `mapstructure:"dsn"`
	Enabled       bool          `mapstructure:"enabled"`
	Retention     time.Duration `mapstructure:"retention"` // zero keeps runs forever
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Token           string        `mapstructure:"token"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Unprotected reports whether the API would accept requests from other
// hosts without a token.
func (c ServerConfig) Unprotected() bool {
	if c.Token != "" {
		return false
	}
	if c.Host == "localhost" {
		return false
	}
	ip := net.ParseIP(c.Host)
	return ip == nil || !ip.IsLoopback()
}

// PipelineConfig holds generation behaviour.
type PipelineConfig struct {
	Parallel bool     `mapstructure:"parallel"`
	Kinds    []string `mapstructure:"kinds"`
}

// ArtifactKinds parses the configured kinds.
func (c PipelineConfig) ArtifactKinds() ([]domain.ArtifactKind, error) {
	kinds := make([]domain.ArtifactKind, 0, len(c.Kinds))
	for _, k := range c.Kinds {
		if strings.TrimSpace(k) == "" {
			continue
		}
		kind, err := domain.ParseArtifactKind(k)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// DockerConfig holds build verification configuration.
type DockerConfig struct {
	Host        string `mapstructure:"host"`
	VerifyBuild bool   `mapstructure:"verify_build"`
	KeepImage   bool   `mapstructure:"keep_image"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// legacyEnv maps keys to the unprefixed variables older setups export.
var legacyEnv = map[string]string{
	"ollama.host":  "OLLAMA_HOST",
	"ollama.model": "OLLAMA_MODEL",
	"output.dir":   "OUTPUT_DIR",
}

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("ollama.host", "http://localhost:11434")
	v.SetDefault("ollama.model", "codellama:13b-instruct")
	v.SetDefault("ollama.timeout", "300s")
	v.SetDefault("ollama.temperature", 0.1)
	v.SetDefault("ollama.top_p", 0.9)
	v.SetDefault("ollama.top_k", 40)
	v.SetDefault("output.dir", "./generated_configs")
	v.SetDefault("database.dsn", "./data/deploysmith.db")
	v.SetDefault("database.enabled", true)
	v.SetDefault("database.retention", "0s")
	v.SetDefault("database.prune_interval", "1h")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8088)
	v.SetDefault("server.token", "")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "15m") // generation waits on the model
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("pipeline.parallel", true)
	v.SetDefault("pipeline.kinds", []string{string(domain.ArtifactContainerFile), string(domain.ArtifactOrchestrationBundle)})
	v.SetDefault("docker.host", "")
	v.SetDefault("docker.verify_build", false)
	v.SetDefault("docker.keep_image", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var parseErr viper.ConfigParseError
			if errors.As(err, &parseErr) {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("DEPLOYSMITH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The prefixed variable wins over the legacy one.
	for key, legacy := range legacyEnv {
		prefixed := "DEPLOYSMITH_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", legacy, err)
		}
	}

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations no command could run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Ollama.Host) == "" {
		return errors.New("ollama.host is required")
	}
	if strings.TrimSpace(c.Ollama.Model) == "" {
		return errors.New("ollama.model is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Database.Retention < 0 {
		return errors.New("database.retention must not be negative")
	}
	if _, err := c.Pipeline.ArtifactKinds(); err != nil {
		return fmt.Errorf("pipeline.kinds: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
// Text output is colourised only when w is a terminal.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			NoColor:    !isTerminal(w),
		})
	}

	return slog.New(handler)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
