package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// DirName is the per-user and per-project settings directory.
	DirName = ".todomd"

	// EnvPrefix prefixes environment overrides, e.g. TODOMD_SYNC_DEBOUNCE.
	EnvPrefix = "TODOMD"
)

// Load builds the configuration. With an explicit path only that file is
// read and it must exist. Otherwise ~/.todomd/config.yaml and then
// ./.todomd/config.yaml are merged when present. Environment variables
// override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		for _, p := range []string{GlobalConfigPath(), ProjectConfigPath()} {
			if p == "" {
				continue
			}
			if _, err := os.Stat(p); err != nil {
				continue
			}
			v.SetConfigFile(p)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", p, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Assist.APIKey == "" {
		cfg.Assist.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	cfg.Document.Path = ExpandHome(cfg.Document.Path)
	cfg.Index.Path = ExpandHome(cfg.Index.Path)
	cfg.Log.File = ExpandHome(cfg.Log.File)
	cfg.Projects.File = ExpandHome(cfg.Projects.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later and less clearly.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if c.Sync.Debounce < 0 || c.Sync.CheckInterval < 0 {
		return fmt.Errorf("sync intervals cannot be negative")
	}
	if !c.Index.Ephemeral && c.Index.Path == "" {
		return fmt.Errorf("index.path is required unless index.ephemeral is set")
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("invalid dashboard port %d", c.Dashboard.Port)
	}
	return nil
}

// Render returns the configuration as YAML with secrets masked.
func Render(c *Config) ([]byte, error) {
	out := *c
	if out.Assist.APIKey != "" {
		out.Assist.APIKey = "********"
	}
	return yaml.Marshal(&out)
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// GlobalConfigPath returns the path to the per-user config file.
func GlobalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, DirName, "config.yaml")
}

// ProjectConfigPath returns the path to the config file in the working directory.
func ProjectConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, DirName, "config.yaml")
}
