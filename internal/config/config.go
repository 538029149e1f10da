package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend names accepted by recognition.backend.
const (
	BackendMock     = "mock"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
)

// Config holds the application configuration
type Config struct {
	Recognition RecognitionConfig `json:"recognition"`
	Editor      EditorConfig      `json:"editor"`
	Overlay     OverlayConfig     `json:"overlay"`
	Export      ExportConfig      `json:"export"`
	Server      ServerConfig      `json:"server"`
	Log         LogConfig         `json:"log"`
}

// RecognitionConfig selects and tunes the recognition backend
type RecognitionConfig struct {
	Backend        string      `json:"backend"`
	URL            string      `json:"url"`
	Model          string      `json:"model"`
	SendFormat     string      `json:"send_format"`
	SendSize       int         `json:"send_size"`
	SendQuality    int         `json:"send_quality"`
	TimeoutSeconds int         `json:"timeout_seconds"`
	StageDelaysMs  StageDelays `json:"stage_delays_ms"`
}

// StageDelays are the simulated durations of the mock stages, in milliseconds
type StageDelays struct {
	Preprocess int `json:"preprocess"`
	Detect     int `json:"detect"`
	Recognize  int `json:"recognize"`
	Convert    int `json:"convert"`
}

// EditorConfig holds review and edit rules
type EditorConfig struct {
	ConfidenceThreshold int  `json:"confidence_threshold"`
	AllowAnyConfidence  bool `json:"allow_any_confidence"`
}

// OverlayConfig holds label rendering settings
type OverlayConfig struct {
	FontSize float64 `json:"font_size"`
}

// ExportConfig holds watermark settings
type ExportConfig struct {
	HeaderHeight   int    `json:"header_height"`
	Software       string `json:"software"`
	ScaleReference string `json:"scale_reference"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr              string `json:"addr"`
	BodyLimitMB       int    `json:"body_limit_mb"`
	SessionTTLMinutes int    `json:"session_ttl_minutes"`
	CorsOrigins       string `json:"cors_origins"`
}

// LogConfig holds logger settings
type LogConfig struct {
	File       string `json:"file"`
	Production bool   `json:"production"`
	FileOnly   bool   `json:"file_only"` // no console output when serving
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Recognition: RecognitionConfig{
			Backend:        BackendMock,
			URL:            "http://localhost:11434",
			Model:          "llava:13b",
			SendFormat:     "png",
			SendSize:       1536,
			SendQuality:    90,
			TimeoutSeconds: 300,
			StageDelaysMs: StageDelays{
				Preprocess: 800,
				Detect:     1000,
				Recognize:  1200,
				Convert:    600,
			},
		},
		Editor: EditorConfig{
			ConfidenceThreshold: 85,
			AllowAnyConfidence:  false,
		},
		Overlay: OverlayConfig{
			FontSize: 16,
		},
		Export: ExportConfig{
			HeaderHeight:   80,
			Software:       "Technical Drawing Converter v1.0",
			ScaleReference: "1 inch = 25.4 mm",
		},
		Server: ServerConfig{
			Addr:              ":8080",
			BodyLimitMB:       32,
			SessionTTLMinutes: 60,
			CorsOrigins:       "*",
		},
		Log: LogConfig{
			File:       "drawing-converter.log",
			Production: false,
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Missing keys keep
// their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// Load reads filename when it exists, otherwise starts from Default, then
// applies environment overrides and validates the result.
func Load(filename string) (*Config, error) {
	config := Default()
	if filename != "" {
		if _, err := os.Stat(filename); err == nil {
			if config, err = LoadFromFile(filename); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	// .env is optional
	_ = godotenv.Load()
	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides fields from DC_* environment variables.
func (c *Config) ApplyEnv() error {
	c.Recognition.Backend = getEnv("DC_BACKEND", c.Recognition.Backend)
	c.Recognition.URL = getEnv("DC_URL", c.Recognition.URL)
	c.Recognition.Model = getEnv("DC_MODEL", c.Recognition.Model)
	c.Server.Addr = getEnv("DC_ADDR", c.Server.Addr)
	c.Log.File = getEnv("DC_LOG_FILE", c.Log.File)

	anyEdit, err := getEnvAsBool("DC_ALLOW_ANY_EDIT", c.Editor.AllowAnyConfidence)
	if err != nil {
		return err
	}
	c.Editor.AllowAnyConfidence = anyEdit

	fileOnly, err := getEnvAsBool("DC_LOG_FILE_ONLY", c.Log.FileOnly)
	if err != nil {
		return err
	}
	c.Log.FileOnly = fileOnly

	if env, ok := os.LookupEnv("DC_ENV"); ok {
		c.Log.Production = strings.EqualFold(env, "production")
	}
	return nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Recognition.Backend {
	case BackendMock, BackendOllama, BackendLlamaCpp:
	default:
		return fmt.Errorf("recognition.backend must be one of mock, ollama, llamacpp")
	}

	if c.Recognition.Backend != BackendMock && c.Recognition.URL == "" {
		return fmt.Errorf("recognition.url is required for the %s backend", c.Recognition.Backend)
	}

	switch strings.ToLower(c.Recognition.SendFormat) {
	case "png", "jpg", "jpeg":
	default:
		return fmt.Errorf("recognition.send_format must be png or jpg")
	}

	if c.Recognition.SendQuality < 1 || c.Recognition.SendQuality > 100 {
		return fmt.Errorf("recognition.send_quality must be between 1 and 100")
	}

	if c.Recognition.SendSize < 0 {
		return fmt.Errorf("recognition.send_size cannot be negative")
	}

	if c.Recognition.TimeoutSeconds < 0 {
		return fmt.Errorf("recognition.timeout_seconds cannot be negative")
	}

	d := c.Recognition.StageDelaysMs
	if d.Preprocess < 0 || d.Detect < 0 || d.Recognize < 0 || d.Convert < 0 {
		return fmt.Errorf("recognition.stage_delays_ms cannot be negative")
	}

	if c.Editor.ConfidenceThreshold < 0 || c.Editor.ConfidenceThreshold > 100 {
		return fmt.Errorf("editor.confidence_threshold must be between 0 and 100")
	}

	if c.Overlay.FontSize <= 0 {
		return fmt.Errorf("overlay.font_size must be positive")
	}

	if c.Export.HeaderHeight < 0 {
		return fmt.Errorf("export.header_height cannot be negative")
	}

	if c.Server.BodyLimitMB < 1 {
		return fmt.Errorf("server.body_limit_mb must be positive")
	}

	if c.Server.SessionTTLMinutes < 1 {
		return fmt.Errorf("server.session_ttl_minutes must be positive")
	}

	return nil
}

// Timeout returns the backend request timeout.
func (r RecognitionConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// Duration converts a millisecond setting.
func Duration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "drawing-converter", "config.json")
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return value, nil
}
