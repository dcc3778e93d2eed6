package ui

import (
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/todomd/todomd/internal/schema"
)

// ErrAborted is returned when the user cancels the form.
var ErrAborted = errors.New("aborted")

// TaskForm holds the answers of the add-task form.
type TaskForm struct {
	Content  string
	List     string
	Project  string
	Assignee string
	DueDate  string
	Priority string
}

// FormIO overrides the form's terminal, for tests and accessible mode.
type FormIO struct {
	In         io.Reader
	Out        io.Writer
	Accessible bool
}

// PromptTask asks for a new task interactively. f carries the initial
// values and receives the answers.
func PromptTask(f *TaskForm, projects []schema.Project, fio FormIO) error {
	if f.List == "" {
		f.List = string(schema.ListSchedule)
	}

	projectOpts := []huh.Option[string]{huh.NewOption("(none)", "")}
	for _, p := range projects {
		projectOpts = append(projectOpts, huh.NewOption(p.Tag, p.Tag))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Task").
				Placeholder("What needs doing?").
				Value(&f.Content).
				Validate(validateContent),
			huh.NewSelect[string]().
				Title("List").
				Options(
					huh.NewOption("Schedule", string(schema.ListSchedule)),
					huh.NewOption("Priorities", string(schema.ListPriorities)),
					huh.NewOption("Follow-ups", string(schema.ListFollowUps)),
				).
				Value(&f.List),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Project").
				Options(projectOpts...).
				Value(&f.Project),
			huh.NewInput().
				Title("Assignee").
				Value(&f.Assignee).
				Validate(validateAssignee),
			huh.NewInput().
				Title("Due date").
				Placeholder("YYYY-MM-DD").
				Value(&f.DueDate).
				Validate(validateDue),
			huh.NewSelect[string]().
				Title("Priority").
				Options(
					huh.NewOption("none", ""),
					huh.NewOption("P1", string(schema.PriorityP1)),
					huh.NewOption("P2", string(schema.PriorityP2)),
					huh.NewOption("P3", string(schema.PriorityP3)),
				).
				Value(&f.Priority),
		),
	).WithAccessible(fio.Accessible)

	if fio.In != nil {
		form = form.WithInput(fio.In)
	}
	if fio.Out != nil {
		form = form.WithOutput(fio.Out)
	}

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrAborted
		}
		return err
	}
	f.Content = strings.TrimSpace(f.Content)
	f.Assignee = strings.TrimPrefix(strings.TrimSpace(f.Assignee), "@")
	f.DueDate = strings.TrimSpace(f.DueDate)
	return nil
}

func validateContent(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("task text is required")
	}
	return nil
}

func validateAssignee(s string) error {
	if strings.ContainsAny(strings.TrimPrefix(strings.TrimSpace(s), "@"), " \t") {
		return errors.New("assignee is a single word")
	}
	return nil
}

func validateDue(s string) error {
	s = strings.TrimSpace(s)
	if s != "" && !schema.IsDate(s) {
		return errors.New("use YYYY-MM-DD")
	}
	return nil
}
