// Package config loads todomd settings from YAML files, TODOMD_* environment
// variables and command-line overrides.
package config

import (
	"time"
)

// Config is the effective todomd configuration.
type Config struct {
	Document  DocumentConfig  `yaml:"document" mapstructure:"document"`
	Index     IndexConfig     `yaml:"index" mapstructure:"index"`
	Sync      SyncConfig      `yaml:"sync" mapstructure:"sync"`
	Timezone  string          `yaml:"timezone" mapstructure:"timezone"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Dashboard DashboardConfig `yaml:"dashboard" mapstructure:"dashboard"`
	Assist    AssistConfig    `yaml:"assist" mapstructure:"assist"`
	Projects  ProjectsConfig  `yaml:"projects" mapstructure:"projects"`
}

// DocumentConfig locates the Markdown document.
type DocumentConfig struct {
	// Path to the document. Empty runs without a document (db-only).
	Path string `yaml:"path" mapstructure:"path"`

	// Create makes an empty document when Path does not exist.
	Create bool `yaml:"create" mapstructure:"create"`

	// Watch enables the filesystem watch in daemon mode.
	Watch bool `yaml:"watch" mapstructure:"watch"`
}

// IndexConfig locates the SQLite index.
type IndexConfig struct {
	Path string `yaml:"path" mapstructure:"path"`

	// Ephemeral keeps the index in memory; the document is then the only
	// durable store.
	Ephemeral bool `yaml:"ephemeral" mapstructure:"ephemeral"`
}

// SyncConfig tunes write-back and change detection.
type SyncConfig struct {
	Debounce      time.Duration `yaml:"debounce" mapstructure:"debounce"`
	CheckInterval time.Duration `yaml:"check_interval" mapstructure:"check_interval"`
	AutoRollover  bool          `yaml:"auto_rollover" mapstructure:"auto_rollover"`
}

// MarshalYAML renders durations as strings such as "2s".
func (s SyncConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Debounce      string `yaml:"debounce"`
		CheckInterval string `yaml:"check_interval"`
		AutoRollover  bool   `yaml:"auto_rollover"`
	}{s.Debounce.String(), s.CheckInterval.String(), s.AutoRollover}, nil
}

// LogConfig controls where logs go.
type LogConfig struct {
	// File enables a rotating log file. Empty logs to stderr.
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// DashboardConfig configures the live dashboard.
type DashboardConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// AssistConfig configures task extraction with a language model.
type AssistConfig struct {
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ProjectsConfig points at the declared projects file.
type ProjectsConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// Location resolves Timezone, falling back to the local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}
