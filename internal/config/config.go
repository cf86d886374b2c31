// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/chatbi/internal/model"
	"github.com/jeranaias/chatbi/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete chatbi configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Backend location and model
	Server ServerConfig `toml:"server" json:"server"`

	// Stream decoding and throttling
	Stream StreamConfig `toml:"stream" json:"stream"`

	// Transcript persistence
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Logging
	Log LogConfig `toml:"log" json:"log"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`
}

// ServerConfig locates the ChatBI backend.
type ServerConfig struct {
	// BaseURL is the backend origin, e.g. http://localhost:8000
	BaseURL string `toml:"base_url" json:"base_url"`
	// QueryPath is the streaming query endpoint
	QueryPath string `toml:"query_path" json:"query_path"`
	// Model is the model/database selector sent with every query
	Model string `toml:"model" json:"model"`
	// TimeoutSecs bounds health and model-list requests (streams are unbounded)
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// Timeout returns TimeoutSecs as a duration.
func (s ServerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSecs) * time.Second
}

// StreamConfig controls frame decoding.
type StreamConfig struct {
	// MaxFrameBytes caps a single frame's data
	MaxFrameBytes int `toml:"max_frame_bytes" json:"max_frame_bytes"`
	// OpensPerSecond limits how often streams are opened (0 = unlimited)
	OpensPerSecond float64 `toml:"opens_per_second" json:"opens_per_second"`
	// OpenBurst is the number of opens allowed back to back
	OpenBurst int `toml:"open_burst" json:"open_burst"`
	// DecodeErrorsFailTurn turns an undecodable frame into a failed turn
	DecodeErrorsFailTurn bool `toml:"decode_errors_fail_turn" json:"decode_errors_fail_turn"`
}

// StorageConfig selects the transcript store.
type StorageConfig struct {
	// Backend is "file" or "sqlite"
	Backend string `toml:"backend" json:"backend"`
	// Dir holds one file per transcript for the file backend
	Dir string `toml:"dir" json:"dir"`
	// SQLitePath is the database for the sqlite backend
	SQLitePath string `toml:"sqlite_path" json:"sqlite_path"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	// File is the rotated JSON log file ("" disables file logging)
	File string `toml:"file" json:"file"`
	// Level is debug, info, warn or error
	Level string `toml:"level" json:"level"`
	// Console mirrors log records to stderr
	Console bool `toml:"console" json:"console"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// DefaultMode is the transcript new queries go to: "agent" or "analysis"
	DefaultMode string `toml:"default_mode" json:"default_mode"`
	// WordWrap is the markdown wrap width (0 = terminal width)
	WordWrap int `toml:"word_wrap" json:"word_wrap"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	cfg := &Config{
		Version: "1.0.0",

		Server: ServerConfig{
			BaseURL:     "http://localhost:8000",
			QueryPath:   "/api/chat/query",
			Model:       "qwen-plus",
			TimeoutSecs: 15,
		},

		Stream: StreamConfig{
			MaxFrameBytes:        1024 * 1024,
			OpensPerSecond:       2,
			OpenBurst:            4,
			DecodeErrorsFailTurn: false,
		},

		Storage: StorageConfig{
			Backend: "file",
		},

		Log: LogConfig{
			Level:   "info",
			Console: false,
		},

		UI: UIConfig{
			DefaultMode: "agent",
			WordWrap:    0,
		},
	}

	if dir, err := ConfigDir(); err == nil {
		cfg.Storage.Dir = filepath.Join(dir, "history")
		cfg.Storage.SQLitePath = filepath.Join(dir, "chatbi.db")
		cfg.Log.File = filepath.Join(dir, "logs", "chatbi.log")
	}
	return cfg
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the chatbi configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".chatbi"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ActivePath returns the config file Load would read, or the TOML path when
// neither exists yet.
func ActivePath() (string, error) {
	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	jsonPath, err := ConfigPathJSON()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath, nil
	}
	return tomlPath, nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	return cfg, finish(cfg)
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	// Determine file type and load accordingly
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish applies env overrides, defaults and validation.
func finish(cfg *Config) error {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// SetDefaults fills zero values left by a partial file or override.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}

	// Server
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = defaults.Server.BaseURL
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
	if c.Server.QueryPath == "" {
		c.Server.QueryPath = defaults.Server.QueryPath
	}
	if c.Server.Model == "" {
		c.Server.Model = defaults.Server.Model
	}
	if c.Server.TimeoutSecs == 0 {
		c.Server.TimeoutSecs = defaults.Server.TimeoutSecs
	}

	// Stream
	if c.Stream.MaxFrameBytes == 0 {
		c.Stream.MaxFrameBytes = defaults.Stream.MaxFrameBytes
	}
	if c.Stream.OpensPerSecond > 0 && c.Stream.OpenBurst == 0 {
		c.Stream.OpenBurst = 1
	}

	// Storage
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaults.Storage.Backend
	}
	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	if c.Storage.Dir == "" {
		c.Storage.Dir = defaults.Storage.Dir
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = defaults.Storage.SQLitePath
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}

	// UI
	if c.UI.DefaultMode == "" {
		c.UI.DefaultMode = defaults.UI.DefaultMode
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration as TOML with a header comment.
func SaveTOML(cfg *Config, path string) error {
	var sb strings.Builder
	sb.WriteString("# chatbi configuration file\n")
	sb.WriteString("# Generated by chatbi - edit with care\n\n")

	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration as indented JSON.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// Server
	if u, err := url.Parse(c.Server.BaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, ValidationError{
			Field:   "server.base_url",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host[:port]", c.Server.BaseURL),
		})
	}
	if !strings.HasPrefix(c.Server.QueryPath, "/") {
		errs = append(errs, ValidationError{
			Field:   "server.query_path",
			Message: "must start with '/'",
		})
	}
	if c.Server.TimeoutSecs < 1 || c.Server.TimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "server.timeout_secs",
			Message: fmt.Sprintf("must be between 1 and 600, got %d", c.Server.TimeoutSecs),
		})
	}

	// Stream
	if c.Stream.MaxFrameBytes < 1024 || c.Stream.MaxFrameBytes > 64*1024*1024 {
		errs = append(errs, ValidationError{
			Field:   "stream.max_frame_bytes",
			Message: fmt.Sprintf("must be between 1KB and 64MB, got %d", c.Stream.MaxFrameBytes),
		})
	}
	if c.Stream.OpensPerSecond < 0 {
		errs = append(errs, ValidationError{
			Field:   "stream.opens_per_second",
			Message: "cannot be negative",
		})
	}
	if c.Stream.OpenBurst < 0 {
		errs = append(errs, ValidationError{
			Field:   "stream.open_burst",
			Message: "cannot be negative",
		})
	}

	// Storage
	if c.Storage.Backend != "file" && c.Storage.Backend != "sqlite" {
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: file, sqlite", c.Storage.Backend),
		})
	}

	// Log
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	// UI
	if _, err := model.ParseKind(c.UI.DefaultMode); err != nil {
		errs = append(errs, ValidationError{
			Field:   "ui.default_mode",
			Message: fmt.Sprintf("invalid mode '%s', must be one of: agent, analysis", c.UI.DefaultMode),
		})
	}
	if c.UI.WordWrap < 0 {
		errs = append(errs, ValidationError{
			Field:   "ui.word_wrap",
			Message: "cannot be negative",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// DefaultKind returns UI.DefaultMode as a transcript kind.
func (c *Config) DefaultKind() model.Kind {
	k, err := model.ParseKind(c.UI.DefaultMode)
	if err != nil {
		return model.KindAgent
	}
	return k
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported variables:
//   - CHATBI_API_BASE_URL: overrides server.base_url
//   - CHATBI_MODEL: overrides server.model
//   - CHATBI_STORAGE_BACKEND: overrides storage.backend
//   - CHATBI_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if baseURL := os.Getenv("CHATBI_API_BASE_URL"); baseURL != "" {
		c.Server.BaseURL = baseURL
	}
	if modelName := os.Getenv("CHATBI_MODEL"); modelName != "" {
		c.Server.Model = modelName
	}
	if backend := os.Getenv("CHATBI_STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}
	if level := os.Getenv("CHATBI_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "server.model").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "server.model").
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup walks a dotted key down the struct tree to a leaf field.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("'%s' is a section, not a value", key)
			}
			return field, nil
		}

		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strVal)
			field.SetBool(lower == "1" || lower == "true" || lower == "yes")
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return errors.New("cannot assign nil")
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation, in file order.
func GetAllKeys() []string {
	var keys []string
	root := reflect.TypeOf(Config{})
	for i := 0; i < root.NumField(); i++ {
		section := root.Field(i)
		sectionKey := strings.Split(section.Tag.Get("toml"), ",")[0]
		if section.Type.Kind() != reflect.Struct {
			keys = append(keys, sectionKey)
			continue
		}
		for j := 0; j < section.Type.NumField(); j++ {
			leaf := strings.Split(section.Type.Field(j).Tag.Get("toml"), ",")[0]
			keys = append(keys, sectionKey+"."+leaf)
		}
	}
	return keys
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Clone creates a copy of the configuration. Config holds only value types.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns a string representation of the config for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
