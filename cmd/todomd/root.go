package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/todomd/todomd/internal/config"
	"github.com/todomd/todomd/internal/coordinator"
	"github.com/todomd/todomd/internal/db"
	"github.com/todomd/todomd/internal/document"
	"github.com/todomd/todomd/internal/schema"
	"github.com/todomd/todomd/internal/ui"
)

var (
	configPath   string
	documentFlag string
	indexFlag    string
	timezoneFlag string
	verbose      bool

	// cfg is loaded before any command runs.
	cfg *config.Config
)

// skipConfig marks commands that must work without a valid configuration.
const skipConfig = "skip-config"

var rootCmd = &cobra.Command{
	Use:   "todomd",
	Short: "Markdown to-do document with a SQLite index",
	Long: `todomd keeps a daily Markdown to-do document (ToDo.md) and an indexed
SQLite copy of it in sync.

Edits made through todomd land in the index first and are written back to
the document shortly after. Edits made to the document in an editor are
picked up on the next command, or immediately while "todomd daemon" runs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipConfig] == "true" {
			return nil
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlagOverrides(loaded)
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "tasks", Title: "Tasks:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "maint", Title: "Maintenance:"},
	)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default ~/.todomd/config.yaml, ./.todomd/config.yaml)")
	flags.StringVar(&documentFlag, "document", "", "Markdown document path")
	flags.StringVar(&indexFlag, "index", "", "SQLite index path, or :memory:")
	flags.StringVar(&timezoneFlag, "timezone", "", "Timezone that decides the current day")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log sync activity to stderr")
}

// applyFlagOverrides lets command-line flags win over files and environment.
func applyFlagOverrides(c *config.Config) {
	if documentFlag != "" {
		c.Document.Path = config.ExpandHome(documentFlag)
	}
	if indexFlag == db.MemoryPath {
		c.Index.Ephemeral = true
	} else if indexFlag != "" {
		c.Index.Path = config.ExpandHome(indexFlag)
	}
	if timezoneFlag != "" {
		c.Timezone = timezoneFlag
	}
}

// fatal prints err and exits, as every command does on failure.
func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func stdout() *ui.Printer {
	return ui.NewPrinter(os.Stdout, ui.ShouldUseColor(os.Stdout))
}

// app bundles the index, the coordinator and the log sink for one command.
type app struct {
	cfg      *config.Config
	store    *db.DB
	coord    *coordinator.Coordinator
	projects []schema.Project
	logOut   io.WriteCloser
}

// openOptions selects how much of the stack a command needs.
type openOptions struct {
	// Connect binds the document. A missing document is tolerated in
	// db-only mode unless Require is set.
	Connect bool
	Require bool

	// Background enables the watcher and automatic rollover.
	Background bool
}

func openApp(ctx context.Context, c *config.Config, opts openOptions) (*app, error) {
	projects, err := config.LoadProjects(c.Projects.File)
	if err != nil {
		return nil, err
	}

	logOut := c.LogOutput()
	if !verbose && !opts.Background && c.Log.File == "" {
		_ = logOut.Close()
		logOut = nopWriteCloser{io.Discard}
	}

	indexPath := c.Index.Path
	if c.Index.Ephemeral {
		indexPath = db.MemoryPath
	}
	store, err := db.OpenContext(ctx, indexPath)
	if err != nil {
		_ = logOut.Close()
		return nil, err
	}

	var picker document.Picker
	if c.Document.Path != "" {
		picker = document.FilePicker{Path: c.Document.Path, Create: c.Document.Create}
	}
	coord, err := coordinator.New(store, picker, coordinatorConfig(c, projects, config.NewLogger(logOut, "coordinator"), opts.Background))
	if err != nil {
		_ = store.Close()
		_ = logOut.Close()
		return nil, err
	}

	a := &app{cfg: c, store: store, coord: coord, projects: projects, logOut: logOut}
	if opts.Connect && picker != nil {
		if err := coord.Connect(ctx); err != nil {
			if opts.Require {
				_ = a.Close(ctx)
				return nil, err
			}
			fmt.Fprintf(os.Stderr, "Warning: %v; continuing with the index only\n", err)
		}
	} else if opts.Require {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("%w: set document.path or --document", document.ErrNoDocument)
	}
	return a, nil
}

// coordinatorConfig maps the loaded settings onto the coordinator.
func coordinatorConfig(c *config.Config, projects []schema.Project, logger *log.Logger, background bool) *coordinator.Config {
	loc, err := c.Location()
	if err != nil {
		loc = nil
	}
	return &coordinator.Config{
		DebounceInterval: c.Sync.Debounce,
		CheckInterval:    c.Sync.CheckInterval,
		Location:         loc,
		Watch:            background && c.Document.Watch,
		AutoRollover:     background && c.Sync.AutoRollover,
		Projects:         projects,
		Logger:           logger,
	}
}

// Close writes back pending edits and releases everything.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.coord.IsConnected() {
		errs = append(errs, a.coord.Disconnect(ctx))
	}
	errs = append(errs, a.store.Close(), a.logOut.Close())
	return errors.Join(errs...)
}

// closeApp is the deferred form of Close. A failed write-back is reported;
// the edit itself is already safe in the index.
func closeApp(ctx context.Context, a *app) {
	if err := a.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
