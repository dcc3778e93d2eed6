package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Document: DocumentConfig{
			Path:   "ToDo.md",
			Create: true,
			Watch:  true,
		},
		Index: IndexConfig{
			Path: filepath.Join(DirName, "index.db"),
		},
		Sync: SyncConfig{
			Debounce:      2 * time.Second,
			CheckInterval: 30 * time.Second,
			AutoRollover:  true,
		},
		Timezone: "Australia/Sydney",
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Dashboard: DashboardConfig{
			Port: 8080,
		},
		Assist: AssistConfig{
			Model:     "claude-sonnet-4-5",
			MaxTokens: 512,
		},
		Projects: ProjectsConfig{
			File: filepath.Join(DirName, "projects.toml"),
		},
	}
}

// setDefaults registers every key with viper so environment variables can
// override keys that no file mentions.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("document.path", d.Document.Path)
	v.SetDefault("document.create", d.Document.Create)
	v.SetDefault("document.watch", d.Document.Watch)
	v.SetDefault("index.path", d.Index.Path)
	v.SetDefault("index.ephemeral", d.Index.Ephemeral)
	v.SetDefault("sync.debounce", d.Sync.Debounce)
	v.SetDefault("sync.check_interval", d.Sync.CheckInterval)
	v.SetDefault("sync.auto_rollover", d.Sync.AutoRollover)
	v.SetDefault("timezone", d.Timezone)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("dashboard.port", d.Dashboard.Port)
	v.SetDefault("assist.model", d.Assist.Model)
	v.SetDefault("assist.api_key", d.Assist.APIKey)
	v.SetDefault("assist.max_tokens", d.Assist.MaxTokens)
	v.SetDefault("projects.file", d.Projects.File)
}

// WriteDefault writes a commented default configuration file.
func WriteDefault(path string) error {
	content := `# todomd configuration
document:
  path: ToDo.md
  create: true
  watch: true

index:
  path: .todomd/index.db
  # ephemeral: true keeps the index in memory (file-only mode)
  ephemeral: false

sync:
  debounce: 2s
  check_interval: 30s
  auto_rollover: true

timezone: Australia/Sydney

# log:
#   file: ~/.todomd/todomd.log
#   max_size_mb: 10

dashboard:
  port: 8080

assist:
  model: claude-sonnet-4-5
  # api_key is read from TODOMD_ASSIST_API_KEY or ANTHROPIC_API_KEY

projects:
  file: .todomd/projects.toml
`
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}
