package markdown

import (
	"fmt"
	"strings"

	"github.com/todomd/todomd/internal/schema"
)

// DateHeader returns the heading line that opens the section for date.
func DateHeader(date string) string {
	return fmt.Sprintf("# %s (Local: %s)", date, Timezone)
}

// SerializeDocument renders sections in the given order as canonical text.
//
// When projects is non-empty a "> Projects:" legend precedes the first
// section so that declared but unused tags survive a round trip.
func SerializeDocument(sections []*schema.DailySection, projects []schema.Project) string {
	var b strings.Builder

	if len(projects) > 0 {
		tags := make([]string, 0, len(projects))
		for _, p := range projects {
			if tag := schema.NormalizeTag(p.Tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		if len(tags) > 0 {
			fmt.Fprintf(&b, "> Projects: %s\n\n", strings.Join(tags, " "))
		}
	}

	for _, s := range sections {
		writeSection(&b, s)
	}
	return b.String()
}

// SerializeSection renders a single section, including its trailing rule.
func SerializeSection(s *schema.DailySection) string {
	var b strings.Builder
	writeSection(&b, s)
	return b.String()
}

func writeSection(b *strings.Builder, s *schema.DailySection) {
	b.WriteString(DateHeader(s.Date))
	b.WriteString("\n\n")

	for _, h := range sectionHeaders {
		b.WriteString(h.title)
		b.WriteString("\n")
		switch h.list {
		case schema.ListNotes:
			for _, n := range s.Notes {
				b.WriteString("- ")
				b.WriteString(singleLine(n.Content))
				b.WriteString("\n")
			}
		case schema.ListBlockers:
			for _, bl := range s.Blockers {
				b.WriteString(encodeBlocker(bl))
				b.WriteString("\n")
			}
		default:
			for _, t := range *s.List(h.list) {
				b.WriteString(EncodeTaskLine(t))
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
}

func encodeBlocker(bl *schema.Blocker) string {
	line := "- " + singleLine(bl.Content)
	if bl.NextStep != "" {
		line += BlockerSeparator + singleLine(bl.NextStep)
	}
	return line
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
