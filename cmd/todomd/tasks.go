package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/todomd/todomd/internal/assist"
	"github.com/todomd/todomd/internal/coordinator"
	"github.com/todomd/todomd/internal/schema"
	"github.com/todomd/todomd/internal/ui"
)

var showCmd = &cobra.Command{
	Use:     "show",
	GroupID: "tasks",
	Short:   "Show a day's section",
	Long: `Show one daily section from the index: priorities, schedule, follow-ups,
notes, completed tasks and blockers.

Task ids are shortened to their first 8 characters; every command that
takes an id accepts that prefix.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		date, _ := cmd.Flags().GetString("date")
		ctx := cmd.Context()

		a, err := openApp(ctx, cfg, openOptions{Connect: true})
		if err != nil {
			fatal("%v", err)
		}
		defer closeApp(ctx, a)

		s, err := a.coord.LoadCurrentSection(ctx, date)
		if errors.Is(err, coordinator.ErrNotFound) {
			if date == "" {
				date = a.coord.Today()
			}
			fmt.Printf("No section for %s\n", date)
			return
		}
		if err != nil {
			fatal("%v", err)
		}

		p := stdout()
		p.SetProjects(a.projects)
		p.Section(s, a.coord.Today())
	},
}

var projectsCmd = &cobra.Command{
	Use:     "projects",
	GroupID: "tasks",
	Short:   "List known projects",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := openApp(ctx, cfg, openOptions{Connect: true})
		if err != nil {
			fatal("%v", err)
		}
		defer closeApp(ctx, a)

		projects, err := a.coord.GetAllProjects(ctx)
		if err != nil {
			fatal("%v", err)
		}
		p := stdout()
		p.SetProjects(a.projects)
		p.Projects(projects)
	},
}

var addCmd = &cobra.Command{
	Use:     "add [text]",
	GroupID: "tasks",
	Short:   "Add a task",
	Long: `Add a task to today's section, or to --date.

The text may carry inline metadata, exactly as written in the document:
  #Project  @person  Due: YYYY-MM-DD  !P1 !P2 !P3
A natural-language date such as "tomorrow" or "by next friday" becomes the
due date when no Due: token is given. Flags override inline metadata.

With --ai the text is rewritten into a task line by a language model
(assist.api_key or ANTHROPIC_API_KEY); on failure the plain parser is used.
Without text on a terminal, an interactive form is shown.

Examples:
  todomd add "Send invoice by friday #Work !P2"
  todomd add --list priorities "Finish report"
  todomd add --ai "remind me to book flights for the offsite, fairly urgent"`,
	Run: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	listName, _ := cmd.Flags().GetString("list")
	date, _ := cmd.Flags().GetString("date")
	useAI, _ := cmd.Flags().GetBool("ai")

	list, err := schema.ParseListType(listName)
	if err != nil || !list.IsTaskList() || list == schema.ListCompleted {
		fatal("--list must be priorities, schedule or followUps")
	}

	a, err := openApp(ctx, cfg, openOptions{Connect: true})
	if err != nil {
		fatal("%v", err)
	}
	defer closeApp(ctx, a)

	text := strings.TrimSpace(strings.Join(args, " "))
	var in coordinator.TaskInput

	switch {
	case text == "" && ui.IsTerminal(os.Stdin) && ui.IsTerminal(os.Stdout):
		form := &ui.TaskForm{List: string(list)}
		projects, _ := a.coord.GetAllProjects(ctx)
		if err := ui.PromptTask(form, projects, ui.FormIO{}); err != nil {
			if errors.Is(err, ui.ErrAborted) {
				return
			}
			fatal("%v", err)
		}
		in = coordinator.TaskInput{
			Content:  form.Content,
			Project:  form.Project,
			Assignee: form.Assignee,
			DueDate:  form.DueDate,
			Priority: schema.Priority(form.Priority),
		}
		list = schema.ListType(form.List)
	case text == "":
		fatal("task text is required")
	default:
		t, err := parseTaskText(ctx, text, useAI, time.Now())
		if err != nil {
			fatal("%v", err)
		}
		in = inputFromTask(t)
	}
	applyTaskFlags(cmd, &in)

	var task *schema.Task
	if date == "" {
		task, err = a.coord.AddTask(ctx, in, list)
	} else {
		task, err = a.coord.AddTaskOn(ctx, date, in, list)
	}
	if err != nil {
		fatal("%v", err)
	}
	stdout().Success("Added %s", stdout().TaskLine(task, a.coord.Today()))
}

// parseTaskText turns free text into a task, with the model when asked.
func parseTaskText(ctx context.Context, text string, useAI bool, now time.Time) (*schema.Task, error) {
	if useAI {
		gen, err := assist.NewAnthropicGenerator(assist.AnthropicConfig{
			APIKey:    cfg.Assist.APIKey,
			Model:     cfg.Assist.Model,
			MaxTokens: cfg.Assist.MaxTokens,
		})
		if err == nil {
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			var t *schema.Task
			t, err = assist.Extract(ctx, gen, text, now)
			if err == nil {
				return t, nil
			}
		}
		fmt.Fprintf(os.Stderr, "Warning: --ai failed (%v); parsing locally\n", err)
	}
	return assist.ParseQuickAdd(text, now)
}

func inputFromTask(t *schema.Task) coordinator.TaskInput {
	return coordinator.TaskInput{
		Content:  t.Content,
		Project:  t.Project,
		Assignee: t.Assignee,
		DueDate:  t.DueDate,
		Priority: t.Priority,
	}
}

func applyTaskFlags(cmd *cobra.Command, in *coordinator.TaskInput) {
	if cmd.Flags().Changed("project") {
		in.Project, _ = cmd.Flags().GetString("project")
	}
	if cmd.Flags().Changed("assignee") {
		in.Assignee, _ = cmd.Flags().GetString("assignee")
	}
	if cmd.Flags().Changed("due") {
		in.DueDate, _ = cmd.Flags().GetString("due")
	}
	if cmd.Flags().Changed("priority") {
		p, _ := cmd.Flags().GetString("priority")
		in.Priority = schema.Priority(strings.ToUpper(p))
	}
}

var doneCmd = &cobra.Command{
	Use:     "done <id>",
	GroupID: "tasks",
	Short:   "Mark a task completed",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withTask(cmd, args[0], "Completed", func(ctx context.Context, c *coordinator.Coordinator, id string) error {
			return c.CompleteTask(ctx, id)
		})
	},
}

var reopenCmd = &cobra.Command{
	Use:     "reopen <id>",
	GroupID: "tasks",
	Short:   "Move a completed task back to its list",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withTask(cmd, args[0], "Reopened", func(ctx context.Context, c *coordinator.Coordinator, id string) error {
			status := schema.StatusPending
			return c.UpdateTask(ctx, id, coordinator.TaskPatch{Status: &status})
		})
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm <id>",
	GroupID: "tasks",
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withTask(cmd, args[0], "Deleted", func(ctx context.Context, c *coordinator.Coordinator, id string) error {
			return c.DeleteTask(ctx, id)
		})
	},
}

var editCmd = &cobra.Command{
	Use:     "edit <id>",
	GroupID: "tasks",
	Short:   "Change a task's text or metadata",
	Long: `Change fields of a task. Only the flags given are changed; pass an empty
value to clear one, e.g. --due "".`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		patch := coordinator.TaskPatch{}
		set := func(name string) *string {
			if !cmd.Flags().Changed(name) {
				return nil
			}
			v, _ := cmd.Flags().GetString(name)
			return &v
		}
		patch.Content = set("content")
		patch.Project = set("project")
		patch.Assignee = set("assignee")
		patch.DueDate = set("due")
		if p := set("priority"); p != nil {
			pr := schema.Priority(strings.ToUpper(*p))
			patch.Priority = &pr
		}
		if s := set("status"); s != nil {
			st := schema.Status(*s)
			patch.Status = &st
		}

		withTask(cmd, args[0], "Updated", func(ctx context.Context, c *coordinator.Coordinator, id string) error {
			return c.UpdateTask(ctx, id, patch)
		})
	},
}

// withTask resolves ref to a task id and runs fn on it.
func withTask(cmd *cobra.Command, ref, verb string, fn func(context.Context, *coordinator.Coordinator, string) error) {
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
	task, err := resolveTask(doc, ref)
	if err != nil {
		fatal("%v", err)
	}
	if err := fn(ctx, a.coord, task.ID); err != nil {
		fatal("%v", err)
	}
	stdout().Success("%s %q", verb, task.Content)
}

// resolveTask finds the task whose id is ref or starts with it.
func resolveTask(doc *schema.ParsedDocument, ref string) (*schema.Task, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("task id is required")
	}
	var matches []*schema.Task
	for _, s := range doc.Sections {
		for _, l := range schema.TaskLists {
			for _, t := range *s.List(l) {
				if t.ID == ref {
					return t, nil
				}
				if strings.HasPrefix(t.ID, ref) {
					matches = append(matches, t)
				}
			}
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no task matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%q matches %d tasks; use more of the id", ref, len(matches))
	}
}

var noteCmd = &cobra.Command{
	Use:     "note <text>",
	GroupID: "tasks",
	Short:   "Add a note to a day's Notes & Ideas",
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		date, _ := cmd.Flags().GetString("date")
		ctx := cmd.Context()
		a, err := openApp(ctx, cfg, openOptions{Connect: true})
		if err != nil {
			fatal("%v", err)
		}
		defer closeApp(ctx, a)

		n, err := a.coord.AddNote(ctx, date, strings.Join(args, " "))
		if err != nil {
			fatal("%v", err)
		}
		stdout().Success("Noted %q", n.Content)
	},
}

var blockerCmd = &cobra.Command{
	Use:     "blocker <text>",
	GroupID: "tasks",
	Short:   "Record a blocker and its next step",
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		date, _ := cmd.Flags().GetString("date")
		next, _ := cmd.Flags().GetString("next")
		ctx := cmd.Context()
		a, err := openApp(ctx, cfg, openOptions{Connect: true})
		if err != nil {
			fatal("%v", err)
		}
		defer closeApp(ctx, a)

		b, err := a.coord.AddBlocker(ctx, date, strings.Join(args, " "), next)
		if err != nil {
			fatal("%v", err)
		}
		stdout().Success("Blocked on %q", b.Content)
	},
}

func init() {
	showCmd.Flags().String("date", "", "Date to show (YYYY-MM-DD, default today)")

	addCmd.Flags().String("list", string(schema.ListSchedule), "List: priorities, schedule or followUps")
	addCmd.Flags().String("date", "", "Section date (YYYY-MM-DD, default today)")
	addCmd.Flags().Bool("ai", false, "Rewrite the text into a task with a language model")
	addCmd.Flags().String("project", "", "Project tag, e.g. #Work")
	addCmd.Flags().String("assignee", "", "Person responsible")
	addCmd.Flags().String("due", "", "Due date (YYYY-MM-DD)")
	addCmd.Flags().String("priority", "", "Priority: P1, P2 or P3")

	editCmd.Flags().String("content", "", "New task text")
	editCmd.Flags().String("project", "", "Project tag")
	editCmd.Flags().String("assignee", "", "Person responsible")
	editCmd.Flags().String("due", "", "Due date (YYYY-MM-DD)")
	editCmd.Flags().String("priority", "", "Priority: P1, P2 or P3")
	editCmd.Flags().String("status", "", "Status: pending, in_progress or completed")

	noteCmd.Flags().String("date", "", "Section date (YYYY-MM-DD, default today)")
	blockerCmd.Flags().String("date", "", "Section date (YYYY-MM-DD, default today)")
	blockerCmd.Flags().String("next", "", "Next step to unblock")

	rootCmd.AddCommand(showCmd, projectsCmd, addCmd, doneCmd, reopenCmd, rmCmd, editCmd, noteCmd, blockerCmd)
}
