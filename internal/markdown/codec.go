// Package markdown converts between ToDo.md text and the schema types.
//
// The codec, parser and serializer are pure functions with no shared mutable
// state; they are safe for concurrent use.
package markdown

import (
	"regexp"
	"strings"

	"github.com/todomd/todomd/internal/schema"
)

// RolloverMarker prefixes the content of tasks carried from a previous day.
const RolloverMarker = "⏭ "

var (
	taskLineRegex = regexp.MustCompile(`^- \[( |x)\] (.+)$`)

	// Status annotations are display-only and never captured into fields.
	annotationRegexes = []*regexp.Regexp{
		regexp.MustCompile(`\[🆕 New\]`),
		regexp.MustCompile(`\[🔄 Day \d+\]`),
		regexp.MustCompile(`\[⚠\x{FE0F}? Overdue \d+ days?\]`),
		regexp.MustCompile(`\[🚧 Blocked\]`),
	}

	markerRegex = regexp.MustCompile(`^⏭\x{FE0F}?\s*`)
)

// extractor pulls one kind of inline metadata out of a task line.
type extractor struct {
	name  string
	re    *regexp.Regexp
	valid func(value string) bool
	apply func(t *schema.Task, value string)
}

// extract captures the first valid match of e and strips every valid
// match from text, so no token of this kind is left in the content.
func (e extractor) extract(text string) (rest, value string, ok bool) {
	var b strings.Builder
	last := 0
	for _, loc := range e.re.FindAllStringSubmatchIndex(text, -1) {
		v := text[loc[2]:loc[3]]
		if e.valid != nil && !e.valid(v) {
			continue
		}
		if !ok {
			value, ok = v, true
		}
		b.WriteString(text[last:loc[0]])
		b.WriteByte(' ')
		last = loc[1]
	}
	if !ok {
		return text, "", false
	}
	b.WriteString(text[last:])
	return b.String(), value, true
}

// metadataExtractors run in this exact order; each sees the text left over
// by the previous one.
var metadataExtractors = []extractor{
	{
		name:  "project",
		re:    regexp.MustCompile(`#(\w+)`),
		apply: func(t *schema.Task, v string) { t.Project = "#" + v },
	},
	{
		name:  "assignee",
		re:    regexp.MustCompile(`@(\w+)`),
		apply: func(t *schema.Task, v string) { t.Assignee = v },
	},
	{
		name:  "due",
		re:    regexp.MustCompile(`Due: (\d{4}-\d{2}-\d{2})`),
		valid: schema.IsDate,
		apply: func(t *schema.Task, v string) { t.DueDate = v },
	},
	{
		name:  "priority",
		re:    regexp.MustCompile(`!P([123])`),
		apply: func(t *schema.Task, v string) { t.Priority = schema.Priority("P" + v) },
	},
}

// IsTaskLine reports whether line has the "- [ ] " / "- [x] " shape.
func IsTaskLine(line string) bool {
	return taskLineRegex.MatchString(line)
}

// DecodeTaskLine parses a single checkbox line.
//
// It returns false when the line is not a task line or when nothing but
// metadata is left once tokens are stripped.
func DecodeTaskLine(line string) (*schema.Task, bool) {
	m := taskLineRegex.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}

	task := schema.NewTask("")
	if m[1] == "x" {
		task.SetStatus(schema.StatusCompleted, task.CreatedAt)
	}

	text := ExtractMetadata(task, m[2])
	text = StripAnnotations(text)
	if text == "" {
		return nil, false
	}
	task.Content = text
	return task, true
}

// ExtractMetadata runs the metadata extractors over text, filling the fields
// of t, and returns the remaining text with whitespace collapsed.
func ExtractMetadata(t *schema.Task, text string) string {
	for _, e := range metadataExtractors {
		rest, value, ok := e.extract(text)
		if !ok {
			continue
		}
		e.apply(t, value)
		text = rest
	}
	return collapseSpaces(text)
}

// CanonicalLine returns the line t encodes to once it has been through a
// decode. Tasks that read back from the same line share a canonical line
// even when their stored content still carries a rollover marker.
func CanonicalLine(t *schema.Task) string {
	line := EncodeTaskLine(t)
	if d, ok := DecodeTaskLine(line); ok {
		return EncodeTaskLine(d)
	}
	return line
}

// StripAnnotations removes status annotations and a leading rollover marker.
func StripAnnotations(text string) string {
	for _, re := range annotationRegexes {
		text = re.ReplaceAllString(text, " ")
	}
	text = collapseSpaces(text)
	text = markerRegex.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// EncodeTaskLine renders t as a checkbox line. Metadata follows the content
// in a fixed order: project, assignee, due date, priority.
func EncodeTaskLine(t *schema.Task) string {
	box := "- [ ]"
	if t.Status == schema.StatusCompleted {
		box = "- [x]"
	}

	parts := []string{box, collapseSpaces(t.Content)}
	if t.Project != "" {
		parts = append(parts, schema.NormalizeTag(t.Project))
	}
	if t.Assignee != "" {
		parts = append(parts, "@"+strings.TrimPrefix(t.Assignee, "@"))
	}
	if t.DueDate != "" {
		parts = append(parts, "Due: "+t.DueDate)
	}
	if t.Priority != schema.PriorityNone {
		parts = append(parts, "!"+string(t.Priority))
	}
	return strings.Join(parts, " ")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
