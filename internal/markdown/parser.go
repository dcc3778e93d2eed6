package markdown

import (
	"regexp"
	"strings"
	"time"

	"github.com/todomd/todomd/internal/schema"
)

// Timezone is the zone named in every date header.
const Timezone = "Australia/Sydney"

var (
	dateHeaderRegex = regexp.MustCompile(`^# (\d{4}-\d{2}-\d{2}) \(Local: Australia\/Sydney\)$`)
	ruleRegex       = regexp.MustCompile(`^(-{3,}|\*{3,}|_{3,})$`)
	legendRegex     = regexp.MustCompile(`^>\s*Projects:\s*(.*)$`)
	legendTagRegex  = regexp.MustCompile(`#\w+`)
)

// sectionHeader ties a "## ..." heading to the list it opens.
type sectionHeader struct {
	list   schema.ListType
	marker string
	title  string
}

// sectionHeaders are listed in serialization order.
var sectionHeaders = []sectionHeader{
	{schema.ListPriorities, "📌 Priorities", "## 📌 Priorities (Top 3 max)"},
	{schema.ListSchedule, "📅 Schedule", "## 📅 Schedule"},
	{schema.ListFollowUps, "🔄 Follow-ups", "## 🔄 Follow-ups"},
	{schema.ListNotes, "🧠 Notes & Ideas", "## 🧠 Notes & Ideas"},
	{schema.ListCompleted, "✅ Completed", "## ✅ Completed"},
	{schema.ListBlockers, "🧱 Blockers", "## 🧱 Blockers"},
}

// BlockerSeparator splits a blocker line into content and next step.
const BlockerSeparator = " → "

// parser holds the scan state for one document.
type parser struct {
	doc      *schema.ParsedDocument
	current  *schema.DailySection
	list     schema.ListType
	declared []schema.Project
	now      time.Time
}

// ParseDocument reads a whole document.
//
// Parsing never fails: lines that do not fit the dialect are skipped, so a
// damaged document yields fewer records rather than an error. Sections are
// returned in document order and duplicate dates are kept as separate
// sections.
func ParseDocument(text string) *schema.ParsedDocument {
	p := &parser{
		doc: &schema.ParsedDocument{Sections: []*schema.DailySection{}},
		now: time.Now(),
	}
	for _, line := range strings.Split(text, "\n") {
		p.line(strings.TrimRight(line, "\r"))
	}
	p.closeSection()
	p.doc.Projects = schema.MergeProjects(p.declared, discoverProjects(p.doc.Sections)...)
	return p.doc
}

func (p *parser) line(raw string) {
	line := strings.TrimSpace(raw)

	if m := dateHeaderRegex.FindStringSubmatch(line); m != nil {
		p.closeSection()
		p.current = schema.NewSection(m[1])
		p.list = schema.ListNone
		return
	}

	if strings.HasPrefix(line, "## ") {
		if h, ok := lookupHeader(line); ok {
			p.list = h.list
		}
		return
	}

	if m := legendRegex.FindStringSubmatch(line); m != nil && p.current == nil {
		for _, tag := range legendTagRegex.FindAllString(m[1], -1) {
			p.declared = schema.MergeProjects(p.declared, schema.ProjectFromTag(tag))
		}
		return
	}

	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ">") || ruleRegex.MatchString(line) {
		return
	}

	if p.current == nil {
		return
	}

	switch p.list {
	case schema.ListPriorities, schema.ListSchedule, schema.ListFollowUps, schema.ListCompleted:
		if task, ok := DecodeTaskLine(line); ok {
			_ = p.current.Append(p.list, task)
		}
	case schema.ListNotes:
		content := strings.TrimSpace(strings.TrimPrefix(line, "-"))
		if content == "" {
			return
		}
		p.current.Notes = append(p.current.Notes, &schema.Note{
			ID:        schema.NewID(),
			Content:   content,
			Timestamp: p.now,
		})
	case schema.ListBlockers:
		if !strings.HasPrefix(line, "-") {
			return
		}
		if b, ok := decodeBlocker(line, p.now); ok {
			p.current.Blockers = append(p.current.Blockers, b)
		}
	}
}

func (p *parser) closeSection() {
	if p.current != nil {
		p.doc.Sections = append(p.doc.Sections, p.current)
		p.current = nil
	}
}

func lookupHeader(line string) (sectionHeader, bool) {
	for _, h := range sectionHeaders {
		if strings.Contains(line, h.marker) {
			return h, true
		}
	}
	return sectionHeader{}, false
}

func decodeBlocker(line string, now time.Time) (*schema.Blocker, bool) {
	body := strings.TrimSpace(strings.TrimPrefix(line, "-"))
	if body == "" {
		return nil, false
	}
	b := &schema.Blocker{ID: schema.NewID(), CreatedAt: now}
	content, next, found := strings.Cut(body, BlockerSeparator)
	b.Content = strings.TrimSpace(content)
	if found {
		b.NextStep = strings.TrimSpace(next)
	}
	if b.Content == "" {
		return nil, false
	}
	return b, true
}

// discoverProjects collects project tags in order of first use.
func discoverProjects(sections []*schema.DailySection) []schema.Project {
	var projects []schema.Project
	seen := make(map[string]bool)
	for _, s := range sections {
		for _, l := range schema.TaskLists {
			for _, t := range *s.List(l) {
				if t.Project == "" || seen[t.Project] {
					continue
				}
				seen[t.Project] = true
				projects = append(projects, schema.ProjectFromTag(t.Project))
			}
		}
	}
	return projects
}
