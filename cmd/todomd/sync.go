package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/todomd/todomd/internal/config"
	"github.com/todomd/todomd/internal/coordinator"
	"github.com/todomd/todomd/internal/dashboard"
	"github.com/todomd/todomd/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Import the document into the index",
	Long: `Read the Markdown document and replace the index with its contents.

The document always wins: anything in the index that is not in the
document is discarded.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		start := time.Now()

		a, err := openApp(ctx, cfg, openOptions{Connect: true, Require: true})
		if err != nil {
			fatal("%v", err)
		}
		defer closeApp(ctx, a)

		doc, err := a.coord.LoadDocument(ctx)
		if err != nil {
			fatal("%v", err)
		}
		tasks := 0
		for _, s := range doc.Sections {
			tasks += s.TaskCount()
		}

		p := stdout()
		p.Success("Sync complete in %v", time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Document: %s\n", a.coord.DocumentName())
		fmt.Printf("   Sections: %d\n", len(doc.Sections))
		fmt.Printf("   Tasks:    %d\n", tasks)
		fmt.Printf("   Index:    %s\n", a.store.Path())
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show document, index and task counts",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := openApp(ctx, cfg, openOptions{Connect: true})
		if err != nil {
			fatal("%v", err)
		}
		defer closeApp(ctx, a)

		doc, err := a.coord.LoadDocument(ctx)
		if err != nil {
			fatal("%v", err)
		}

		st := ui.Status{
			Document: a.coord.DocumentName(),
			Index:    a.store.Path(),
			Mode:     string(a.coord.Mode()),
			State:    a.coord.State().String(),
			Today:    a.coord.Today(),
			Sections: len(doc.Sections),
		}
		for _, s := range doc.Sections {
			st.Tasks += s.TaskCount()
			for _, t := range s.OpenTasks() {
				st.OpenTasks++
				if t.DueDate != "" && t.DueDate < st.Today {
					st.Overdue++
				}
			}
		}
		stdout().Status(st)
	},
}

var rolloverCmd = &cobra.Command{
	Use:     "rollover",
	GroupID: "sync",
	Short:   "Carry unfinished tasks into today's section",
	Long: `Move every unfinished task of the most recent earlier section into the
section for --date (default today), marked with ⏭ and annotated when overdue
or due that day. Each date is rolled over at most once.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		date, _ := cmd.Flags().GetString("date")
		ctx := cmd.Context()

		a, err := openApp(ctx, cfg, openOptions{Connect: true})
		if err != nil {
			fatal("%v", err)
		}
		defer closeApp(ctx, a)

		res, err := a.coord.Rollover(ctx, date)
		if errors.Is(err, coordinator.ErrAlreadyRolledOver) {
			stdout().Warn("%v", err)
			return
		}
		if err != nil {
			fatal("%v", err)
		}
		if res.Empty() {
			fmt.Printf("Nothing to carry into %s\n", res.ToDate)
			return
		}
		stdout().Success("%s", res.Summary)
	},
}

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Keep the document and index in sync (foreground)",
	Long: `Run the sync coordinator in the foreground.

The daemon will:
  1. Import the document into the index
  2. Watch the document for edits and re-import them
  3. Write index changes back to the document after a quiet period
  4. Roll unfinished tasks over when the day changes
  5. Serve the live dashboard (WebSocket ws://localhost:<port>/ws)

Press Ctrl+C to stop; pending changes are written back first.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		noDashboard, _ := cmd.Flags().GetBool("no-dashboard")
		if cmd.Flags().Changed("port") {
			cfg.Dashboard.Port, _ = cmd.Flags().GetInt("port")
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		a, err := openApp(ctx, cfg, openOptions{Connect: true, Background: true})
		if err != nil {
			fatal("%v", err)
		}

		var server *dashboard.Server
		if !noDashboard {
			server = dashboard.NewServer(&dashboard.Config{
				Port:   cfg.Dashboard.Port,
				Source: a.coord,
				Logger: config.NewLogger(a.logOut, "dashboard"),
			})
			handler := dashboard.NewHandler(server, nil)
			defer handler.Attach(a.coord)()

			if err := server.Start(); err != nil {
				closeApp(context.Background(), a)
				fatal("failed to start dashboard: %v", err)
			}
		}

		p := stdout()
		p.Success("todomd daemon running (%s)", a.coord.Mode())
		if name := a.coord.DocumentName(); name != "" {
			fmt.Printf("   Document:  %s\n", name)
		}
		fmt.Printf("   Index:     %s\n", a.store.Path())
		if server != nil {
			fmt.Printf("   Dashboard: http://localhost:%d (ws://localhost:%d/ws)\n", cfg.Dashboard.Port, cfg.Dashboard.Port)
		}
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		runErr := a.coord.Run(ctx)

		fmt.Println("\nShutting down...")
		if server != nil {
			if err := server.Stop(); err != nil {
				fmt.Fprintf(os.Stderr, "Error stopping dashboard: %v\n", err)
			}
		}
		closeApp(context.Background(), a)
		if runErr != nil {
			fatal("%v", runErr)
		}
	},
}

func init() {
	rolloverCmd.Flags().String("date", "", "Target date (YYYY-MM-DD, default today)")

	daemonCmd.Flags().IntP("port", "p", 8080, "Dashboard port")
	daemonCmd.Flags().Bool("no-dashboard", false, "Do not serve the dashboard")

	rootCmd.AddCommand(syncCmd, statusCmd, rolloverCmd, daemonCmd)
}
