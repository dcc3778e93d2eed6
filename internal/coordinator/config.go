package coordinator

import (
	"log"
	"os"
	"time"

	"github.com/todomd/todomd/internal/markdown"
	"github.com/todomd/todomd/internal/schema"
)

// Config holds configuration for the coordinator.
type Config struct {
	// DebounceInterval is the quiet period after the last mutation before
	// the document is rewritten. Each mutation restarts it.
	DebounceInterval time.Duration

	// CheckInterval is how often the document is checked for external edits
	// and the day boundary is re-evaluated.
	CheckInterval time.Duration

	// Location decides which calendar day it is.
	Location *time.Location

	// Watch adds an fsnotify watch on file-backed documents so external
	// edits are picked up before the next periodic check.
	Watch bool

	// AutoRollover carries unfinished tasks forward on Start and whenever
	// the day changes.
	AutoRollover bool

	// Projects are declared in configuration and merged into every
	// imported document.
	Projects []schema.Project

	// Now overrides the clock, for tests.
	Now func() time.Time

	// Logger for coordinator activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	loc, err := time.LoadLocation(markdown.Timezone)
	if err != nil {
		loc = time.Local
	}
	return &Config{
		DebounceInterval: 2 * time.Second,
		CheckInterval:    30 * time.Second,
		Location:         loc,
		Watch:            true,
		AutoRollover:     true,
		Logger:           log.New(os.Stderr, "[coordinator] ", log.LstdFlags),
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.DebounceInterval <= 0 {
		out.DebounceInterval = d.DebounceInterval
	}
	if out.CheckInterval <= 0 {
		out.CheckInterval = d.CheckInterval
	}
	if out.Location == nil {
		out.Location = d.Location
	}
	if out.Logger == nil {
		out.Logger = d.Logger
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	return &out
}
