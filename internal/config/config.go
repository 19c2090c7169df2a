// Package config loads service configuration with the precedence
// defaults < environment < file. Attendance timing values here are only
// the fallback; live sessions read their timings from the settings
// provider at session start.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Database   *DatabaseConfig   `json:"database"`
	HTTP       *HTTPConfig       `json:"http"`
	Auth       *AuthConfig       `json:"auth"`
	Attendance *AttendanceConfig `json:"attendance"`
}

type DatabaseConfig struct {
	Path    string        `json:"path"`
	Timeout time.Duration `json:"timeout"`
}

type HTTPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

// AttendanceConfig are the fallback session timings used when the
// settings provider cannot supply values.
type AttendanceConfig struct {
	Cadence          time.Duration `json:"cadence"`
	LeewayMultiplier int           `json:"leeway_multiplier"`
	SessionTimeout   time.Duration `json:"session_timeout"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Path:    "./data/attend.db",
			Timeout: 30 * time.Second,
		},
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         3002,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Auth: &AuthConfig{
			JWTSecret: "",
		},
		Attendance: &AttendanceConfig{
			Cadence:          10 * time.Second,
			LeewayMultiplier: 5,
			SessionTimeout:   time.Hour,
		},
	}
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.Database == nil || c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}
	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.Auth == nil || c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret cannot be empty")
	}
	if c.Attendance == nil {
		return fmt.Errorf("attendance configuration is required")
	}
	if c.Attendance.Cadence <= 0 {
		return fmt.Errorf("attendance cadence must be positive")
	}
	if c.Attendance.LeewayMultiplier < 1 {
		return fmt.Errorf("attendance leeway multiplier must be at least 1")
	}
	if c.Attendance.SessionTimeout <= 0 {
		return fmt.Errorf("attendance session timeout must be positive")
	}
	return nil
}

// LoadFromEnv overlays environment variables on the defaults.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if host := os.Getenv("ATTEND_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}
	if port := os.Getenv("ATTEND_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
	if dbPath := os.Getenv("ATTEND_DATABASE_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}
	if timeout := os.Getenv("ATTEND_DATABASE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Database.Timeout = d
		}
	}
	if secret := os.Getenv("ATTEND_JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
	if cadence := os.Getenv("ATTEND_CADENCE"); cadence != "" {
		if d, err := time.ParseDuration(cadence); err == nil {
			config.Attendance.Cadence = d
		}
	}
	if leeway := os.Getenv("ATTEND_LEEWAY_MULTIPLIER"); leeway != "" {
		if n, err := strconv.Atoi(leeway); err == nil {
			config.Attendance.LeewayMultiplier = n
		}
	}
	if timeout := os.Getenv("ATTEND_SESSION_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Attendance.SessionTimeout = d
		}
	}
	return config
}

// configFile mirrors Config with string durations for JSON parsing.
type configFile struct {
	Database *struct {
		Path    string `json:"path"`
		Timeout string `json:"timeout"`
	} `json:"database"`
	HTTP *struct {
		Host         string `json:"host"`
		Port         int    `json:"port"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
	} `json:"http"`
	Auth *struct {
		JWTSecret string `json:"jwt_secret"`
	} `json:"auth"`
	Attendance *struct {
		Cadence          string `json:"cadence"`
		LeewayMultiplier int    `json:"leeway_multiplier"`
		SessionTimeout   string `json:"session_timeout"`
	} `json:"attendance"`
}

// LoadFromFile overlays a JSON file on top of the environment overlay.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config := LoadFromEnv()
	if file.Database != nil {
		if file.Database.Path != "" {
			config.Database.Path = file.Database.Path
		}
		if d, err := time.ParseDuration(file.Database.Timeout); err == nil && d > 0 {
			config.Database.Timeout = d
		}
	}
	if file.HTTP != nil {
		if file.HTTP.Host != "" {
			config.HTTP.Host = file.HTTP.Host
		}
		if file.HTTP.Port > 0 {
			config.HTTP.Port = file.HTTP.Port
		}
		if d, err := time.ParseDuration(file.HTTP.ReadTimeout); err == nil && d > 0 {
			config.HTTP.ReadTimeout = d
		}
		if d, err := time.ParseDuration(file.HTTP.WriteTimeout); err == nil && d > 0 {
			config.HTTP.WriteTimeout = d
		}
	}
	if file.Auth != nil && file.Auth.JWTSecret != "" {
		config.Auth.JWTSecret = file.Auth.JWTSecret
	}
	if file.Attendance != nil {
		if d, err := time.ParseDuration(file.Attendance.Cadence); err == nil && d > 0 {
			config.Attendance.Cadence = d
		}
		if file.Attendance.LeewayMultiplier > 0 {
			config.Attendance.LeewayMultiplier = file.Attendance.LeewayMultiplier
		}
		if d, err := time.ParseDuration(file.Attendance.SessionTimeout); err == nil && d > 0 {
			config.Attendance.SessionTimeout = d
		}
	}
	return config, nil
}

// Load resolves configuration with full precedence. A missing file path
// is not an error; a named but unreadable file is.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadFromEnv(), nil
	}
	return LoadFromFile(path)
}
