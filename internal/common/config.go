package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Config holds all application configuration
type Config struct {
	Profiles ProfilesConfig
	Export   ExportConfig
	History  HistoryConfig
	Render   RenderConfig
	Tasks    TaskConfig
	Watch    WatchConfig
	Log      LogConfig

	RecentFolders []string
	Version       string
}

// ProfilesConfig locates the profile store.
type ProfilesConfig struct {
	File string
}

// ExportConfig holds export defaults.
type ExportConfig struct {
	OutputDir  string
	ReportXLSX bool
}

// HistoryConfig holds export-history database configuration
type HistoryConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// RenderConfig selects the page rasterizer.
type RenderConfig struct {
	Renderer       string // "mupdf" | "pdftoppm"
	PdftoppmBin    string
	ThumbnailScale float64
	ThumbnailWidth int
	Workers        int
}

// TaskConfig bounds the background task runner.
type TaskConfig struct {
	StopTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// WatchConfig holds folder-watcher configuration
type WatchConfig struct {
	Debounce time.Duration
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string // "text" | "json"
}

// fileConfig mirrors config.json.
type fileConfig struct {
	AppSettings struct {
		ProfilesFile    string  `json:"profiles_file"`
		OutputFolder    string  `json:"output_folder"`
		HistoryDSN      *string `json:"history_dsn"`
		Renderer        string  `json:"renderer"`
		ThumbnailScale  float64 `json:"thumbnail_scale"`
		ThumbnailWidth  int     `json:"thumbnail_width"`
		ExportReport    *bool   `json:"export_report"`
		LogLevel        string  `json:"log_level"`
		WatchDebounceMS int     `json:"watch_debounce_ms"`
	} `json:"app_settings"`
	WindowSettings  map[string]any `json:"window_settings"`
	ScannerSettings map[string]any `json:"scanner_settings"`
	RecentFolders   []string       `json:"recent_folders"`
	Version         string         `json:"version"`
}

func configFileSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"app_settings", "window_settings", "recent_folders", "version"},
		"properties": map[string]any{
			"app_settings": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"profiles_file":     map[string]any{"type": "string"},
					"output_folder":     map[string]any{"type": "string"},
					"history_dsn":       map[string]any{"type": "string"},
					"renderer":          map[string]any{"type": "string", "enum": []string{"", "mupdf", "pdftoppm"}},
					"thumbnail_scale":   map[string]any{"type": "number", "exclusiveMinimum": 0, "maximum": 4},
					"thumbnail_width":   map[string]any{"type": "integer", "minimum": 0},
					"export_report":     map[string]any{"type": "boolean"},
					"log_level":         map[string]any{"type": "string"},
					"watch_debounce_ms": map[string]any{"type": "integer", "minimum": 0},
				},
			},
			"window_settings":  map[string]any{"type": "object"},
			"scanner_settings": map[string]any{"type": "object"},
			"recent_folders":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"version":          map[string]any{"type": "string"},
		},
	}
}

var (
	configSchemaOnce sync.Once
	configSchema     *jsonschema.Schema
	configSchemaErr  error
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Profiles: ProfilesConfig{File: "profiles.json"},
		Export:   ExportConfig{ReportXLSX: true},
		History: HistoryConfig{
			DSN:             "sqlite://pdf-splitter.db",
			MaxConns:        4,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Render: RenderConfig{
			Renderer:       "mupdf",
			PdftoppmBin:    "pdftoppm",
			ThumbnailScale: 0.3,
			ThumbnailWidth: 180,
			Workers:        4,
		},
		Tasks: TaskConfig{
			StopTimeout:     5 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Watch: WatchConfig{Debounce: 2 * time.Second},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig builds the configuration from defaults, then the optional config.json
// at CONFIG_FILE (or path when non-empty), then environment variables.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = getEnv("CONFIG_FILE", "config.json")
	}
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}

	cfg.Profiles.File = getEnv("PROFILES_FILE", cfg.Profiles.File)
	cfg.Export.OutputDir = getEnv("OUTPUT_DIR", cfg.Export.OutputDir)
	cfg.Export.ReportXLSX = getEnvAsBool("EXPORT_REPORT", cfg.Export.ReportXLSX)
	if v, ok := os.LookupEnv("HISTORY_DSN"); ok {
		cfg.History.DSN = v
	}
	cfg.History.MaxConns = getEnvAsInt32("HISTORY_MAX_CONNS", cfg.History.MaxConns)
	cfg.History.MinConns = getEnvAsInt32("HISTORY_MIN_CONNS", cfg.History.MinConns)
	cfg.History.DialTimeout = getEnvAsDuration("HISTORY_DIAL_TIMEOUT", cfg.History.DialTimeout)
	cfg.Render.Renderer = getEnv("RENDERER", cfg.Render.Renderer)
	cfg.Render.PdftoppmBin = getEnv("PDFTOPPM_BIN", cfg.Render.PdftoppmBin)
	cfg.Render.ThumbnailScale = getEnvAsFloat64("THUMBNAIL_SCALE", cfg.Render.ThumbnailScale)
	cfg.Render.ThumbnailWidth = getEnvAsInt("THUMBNAIL_WIDTH", cfg.Render.ThumbnailWidth)
	cfg.Render.Workers = getEnvAsInt("THUMBNAIL_WORKERS", cfg.Render.Workers)
	cfg.Tasks.StopTimeout = getEnvAsDuration("TASK_STOP_TIMEOUT", cfg.Tasks.StopTimeout)
	cfg.Tasks.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", cfg.Tasks.ShutdownTimeout)
	cfg.Watch.Debounce = getEnvAsDuration("WATCH_DEBOUNCE", cfg.Watch.Debounce)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	return cfg, nil
}

// mergeFile applies config.json on top of cfg. A missing file is not an error.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return NewAppError(CodeConfig, "read config file", err)
	}

	configSchemaOnce.Do(func() {
		configSchema, configSchemaErr = CompileSchema("config.json", configFileSchema())
	})
	if configSchemaErr != nil {
		return NewAppError(CodeConfig, "config schema", configSchemaErr)
	}
	if err := ValidateJSONAgainstSchema(configSchema, data); err != nil {
		return NewAppError(CodeConfig, fmt.Sprintf("invalid config file %s", path), err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return NewAppError(CodeConfig, "decode config file", err)
	}
	s := fc.AppSettings
	if s.ProfilesFile != "" {
		c.Profiles.File = s.ProfilesFile
	}
	if s.OutputFolder != "" {
		c.Export.OutputDir = s.OutputFolder
	}
	if s.HistoryDSN != nil {
		c.History.DSN = *s.HistoryDSN
	}
	if s.Renderer != "" {
		c.Render.Renderer = s.Renderer
	}
	if s.ThumbnailScale > 0 {
		c.Render.ThumbnailScale = s.ThumbnailScale
	}
	if s.ThumbnailWidth > 0 {
		c.Render.ThumbnailWidth = s.ThumbnailWidth
	}
	if s.ExportReport != nil {
		c.Export.ReportXLSX = *s.ExportReport
	}
	if s.LogLevel != "" {
		c.Log.Level = s.LogLevel
	}
	if s.WatchDebounceMS > 0 {
		c.Watch.Debounce = time.Duration(s.WatchDebounceMS) * time.Millisecond
	}
	c.RecentFolders = fc.RecentFolders
	c.Version = fc.Version
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("PROFILES_FILE", c.Profiles.File, Required)
	v.Field("RENDERER", c.Render.Renderer, Required, OneOf("mupdf", "pdftoppm"))
	v.Field("LOG_FORMAT", c.Log.Format, OneOf("text", "json"))
	v.Check(c.Render.ThumbnailScale > 0 && c.Render.ThumbnailScale <= 4, "THUMBNAIL_SCALE", c.Render.ThumbnailScale, "must be in (0, 4]")
	v.Check(c.Render.Workers > 0, "THUMBNAIL_WORKERS", c.Render.Workers, "must be positive")
	v.Check(c.Tasks.StopTimeout > 0, "TASK_STOP_TIMEOUT", c.Tasks.StopTimeout, "must be positive")
	if dsn := strings.TrimSpace(c.History.DSN); dsn != "" && c.History.MaxConns < 1 {
		v.Check(false, "HISTORY_MAX_CONNS", c.History.MaxConns, "must be positive")
	}
	if v.HasErrors() {
		return NewAppError(CodeConfig, v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
