package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/todomd/todomd/internal/schema"
)

// listTitles are the headings shown for each list, in display order.
var listTitles = []struct {
	list  schema.ListType
	title string
}{
	{schema.ListPriorities, "📌 Priorities"},
	{schema.ListSchedule, "📅 Schedule"},
	{schema.ListFollowUps, "🔄 Follow-ups"},
	{schema.ListNotes, "🧠 Notes & Ideas"},
	{schema.ListCompleted, "✅ Completed"},
	{schema.ListBlockers, "🧱 Blockers"},
}

// ShortID is the prefix of an id shown next to tasks. Commands accept it
// in place of the full id.
const ShortID = 8

// Printer writes styled output for one writer.
type Printer struct {
	w      io.Writer
	styles Styles

	// projectColors maps a tag to the color declared for it.
	projectColors map[string]lipgloss.Style
}

// NewPrinter returns a printer for w. When color is false the output is
// plain text.
func NewPrinter(w io.Writer, color bool) *Printer {
	r := newRenderer(w, color)
	return &Printer{w: w, styles: NewStyles(r), projectColors: make(map[string]lipgloss.Style)}
}

// SetProjects registers per-project colors.
func (p *Printer) SetProjects(projects []schema.Project) {
	for _, proj := range projects {
		if proj.Color != "" {
			p.projectColors[proj.Tag] = p.styles.Project.Foreground(lipgloss.Color(proj.Color))
		}
	}
}

// Section renders s. Open tasks due before today are highlighted.
func (p *Printer) Section(s *schema.DailySection, today string) {
	fmt.Fprintln(p.w, p.styles.Date.Render("# "+s.Date))

	empty := true
	for _, lt := range listTitles {
		var lines []string
		switch lt.list {
		case schema.ListNotes:
			for _, n := range s.Notes {
				lines = append(lines, "- "+n.Content)
			}
		case schema.ListBlockers:
			for _, b := range s.Blockers {
				line := "- " + b.Content
				if b.NextStep != "" {
					line += p.styles.Muted.Render(" → " + b.NextStep)
				}
				lines = append(lines, line)
			}
		default:
			for _, t := range *s.List(lt.list) {
				lines = append(lines, p.TaskLine(t, today))
			}
		}
		if len(lines) == 0 {
			continue
		}
		empty = false
		fmt.Fprintln(p.w)
		fmt.Fprintf(p.w, "%s %s\n", p.styles.List.Render(lt.title), p.styles.Muted.Render(fmt.Sprintf("(%d)", len(lines))))
		for _, line := range lines {
			fmt.Fprintln(p.w, "  "+line)
		}
	}
	if empty {
		fmt.Fprintln(p.w, p.styles.Muted.Render("  nothing recorded"))
	}
}

// TaskLine renders one task with its short id.
func (p *Printer) TaskLine(t *schema.Task, today string) string {
	box := "[ ]"
	switch t.Status {
	case schema.StatusCompleted:
		box = "[x]"
	case schema.StatusInProgress:
		box = "[~]"
	}

	content := t.Content
	if t.Status == schema.StatusCompleted {
		content = p.styles.Done.Render(content)
	}
	parts := []string{p.styles.Muted.Render(shortID(t.ID)), box, content}

	if t.Project != "" {
		style, ok := p.projectColors[t.Project]
		if !ok {
			style = p.styles.Project
		}
		parts = append(parts, style.Render(t.Project))
	}
	if t.Assignee != "" {
		parts = append(parts, p.styles.Assignee.Render("@"+t.Assignee))
	}
	if t.DueDate != "" {
		style := p.styles.Due
		if t.IsOpen() && today != "" && t.DueDate < today {
			style = p.styles.Overdue
		}
		parts = append(parts, style.Render("due "+t.DueDate))
	}
	switch t.Priority {
	case schema.PriorityP1:
		parts = append(parts, p.styles.P1.Render("!P1"))
	case schema.PriorityP2:
		parts = append(parts, p.styles.P2.Render("!P2"))
	case schema.PriorityP3:
		parts = append(parts, p.styles.P3.Render("!P3"))
	}
	if t.RolledFromDate != "" {
		parts = append(parts, p.styles.Muted.Render("(from "+t.RolledFromDate+")"))
	}
	return strings.Join(parts, " ")
}

// Status describes the daemon-independent state shown by "todomd status".
type Status struct {
	Document  string
	Index     string
	Mode      string
	State     string
	Today     string
	Sections  int
	Tasks     int
	OpenTasks int
	Overdue   int
}

// Status renders st as aligned key/value lines.
func (p *Printer) Status(st Status) {
	row := func(label, value string) {
		fmt.Fprintf(p.w, "%s%s\n", p.styles.Label.Render(label), value)
	}
	doc := st.Document
	if doc == "" {
		doc = p.styles.Muted.Render("(none)")
	}
	row("Document", doc)
	row("Index", st.Index)
	row("Mode", st.Mode)

	state := p.styles.Good.Render(st.State)
	if st.State == "disconnected" {
		state = p.styles.Bad.Render(st.State)
	}
	row("State", state)
	row("Today", st.Today)
	row("Sections", fmt.Sprint(st.Sections))
	row("Tasks", fmt.Sprintf("%d (%d open)", st.Tasks, st.OpenTasks))
	if st.Overdue > 0 {
		row("Overdue", p.styles.Overdue.Render(fmt.Sprint(st.Overdue)))
	}
}

// Projects renders one line per project.
func (p *Printer) Projects(projects []schema.Project) {
	if len(projects) == 0 {
		fmt.Fprintln(p.w, p.styles.Muted.Render("no projects"))
		return
	}
	for _, proj := range projects {
		style, ok := p.projectColors[proj.Tag]
		if !ok {
			style = p.styles.Project
		}
		fmt.Fprintf(p.w, "%s  %s\n", style.Render(proj.Tag), proj.Name)
	}
}

// Success prints a confirmation line.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, p.styles.Good.Render("✓")+" "+fmt.Sprintf(format, args...))
}

// Warn prints a warning line.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.w, p.styles.Due.Render("!")+" "+fmt.Sprintf(format, args...))
}

func shortID(id string) string {
	if len(id) > ShortID {
		return id[:ShortID]
	}
	return id
}
