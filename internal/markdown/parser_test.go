package markdown

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/todomd/todomd/internal/schema"
)

const sampleDocument = `# 2025-01-10 (Local: Australia/Sydney)

## 📌 Priorities (Top 3 max)
- [ ] Finish report #DataTables Due: 2025-01-09 !P1

## ✅ Completed
- [x] Email client @Jim
`

const fullDocument = `> Projects: #Home #Work

# 2025-01-09 (Local: Australia/Sydney)

## 📌 Priorities (Top 3 max)
- [ ] Draft plan #Work !P1
- [ ] Book dentist #Home Due: 2025-01-09

## 📅 Schedule
- [ ] 10:00 standup @team

## 🔄 Follow-ups
- [ ] Chase invoice @Sam Due: 2025-01-15 !P2

## 🧠 Notes & Ideas
- Try the new coffee place
Loose idea without dash

## ✅ Completed
- [x] Water plants

## 🧱 Blockers
- Waiting on legal → ping Kim on Monday
- VPN broken

---

# 2025-01-10 (Local: Australia/Sydney)

## 📅 Schedule
- [ ] Gym

---
`

// sectionOpts compares sections by their text-visible content only.
var sectionOpts = cmp.Options{
	ignoreVolatile,
	cmpopts.IgnoreFields(schema.DailySection{}, "ID"),
	cmpopts.IgnoreFields(schema.Note{}, "ID", "Timestamp"),
	cmpopts.IgnoreFields(schema.Blocker{}, "ID", "CreatedAt"),
	cmpopts.EquateEmpty(),
}

func TestParseDocument_Scenario(t *testing.T) {
	doc := ParseDocument(sampleDocument)

	if len(doc.Sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(doc.Sections))
	}
	s := doc.Sections[0]
	if s.Date != "2025-01-10" {
		t.Errorf("Date = %q, want 2025-01-10", s.Date)
	}

	wantPriorities := []*schema.Task{{
		Content:  "Finish report",
		Project:  "#DataTables",
		DueDate:  "2025-01-09",
		Priority: schema.PriorityP1,
		Status:   schema.StatusPending,
	}}
	if diff := cmp.Diff(wantPriorities, s.Priorities, ignoreVolatile); diff != "" {
		t.Errorf("priorities mismatch (-want +got):\n%s", diff)
	}

	wantCompleted := []*schema.Task{{
		Content:  "Email client",
		Assignee: "Jim",
		Status:   schema.StatusCompleted,
	}}
	if diff := cmp.Diff(wantCompleted, s.Completed, ignoreVolatile); diff != "" {
		t.Errorf("completed mismatch (-want +got):\n%s", diff)
	}
	if s.Completed[0].CompletedAt == nil {
		t.Error("completed task should carry CompletedAt")
	}

	if len(doc.Projects) != 1 || doc.Projects[0].Tag != "#DataTables" {
		t.Errorf("Projects = %+v, want [#DataTables]", doc.Projects)
	}
}

func TestParseDocument_AllSections(t *testing.T) {
	doc := ParseDocument(fullDocument)

	if len(doc.Sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(doc.Sections))
	}
	s := doc.Sections[0]

	counts := map[string]int{
		"priorities": len(s.Priorities),
		"schedule":   len(s.Schedule),
		"followUps":  len(s.FollowUps),
		"notes":      len(s.Notes),
		"completed":  len(s.Completed),
		"blockers":   len(s.Blockers),
	}
	want := map[string]int{"priorities": 2, "schedule": 1, "followUps": 1, "notes": 2, "completed": 1, "blockers": 2}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("list sizes mismatch (-want +got):\n%s", diff)
	}

	if s.Notes[1].Content != "Loose idea without dash" {
		t.Errorf("note = %q", s.Notes[1].Content)
	}
	if s.Blockers[0].Content != "Waiting on legal" || s.Blockers[0].NextStep != "ping Kim on Monday" {
		t.Errorf("blocker = %+v", s.Blockers[0])
	}
	if s.Blockers[1].NextStep != "" {
		t.Errorf("blocker without arrow got next step %q", s.Blockers[1].NextStep)
	}

	var tags []string
	for _, p := range doc.Projects {
		tags = append(tags, p.Tag)
	}
	if diff := cmp.Diff([]string{"#Home", "#Work"}, tags); diff != "" {
		t.Errorf("projects mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDocument_NoSections(t *testing.T) {
	doc := ParseDocument("- [ ] orphan task\n## 📌 Priorities\n- [ ] still orphan\n")
	if len(doc.Sections) != 0 {
		t.Errorf("got %d sections, want 0", len(doc.Sections))
	}

	if doc := ParseDocument(""); len(doc.Sections) != 0 {
		t.Errorf("empty input produced %d sections", len(doc.Sections))
	}
}

func TestParseDocument_MalformedLineIsSkipped(t *testing.T) {
	withBad := strings.Replace(fullDocument,
		"- [ ] 10:00 standup @team\n",
		"- [ ] 10:00 standup @team\n- missing checkbox\n- [ ] !P1\n", 1)

	clean := ParseDocument(fullDocument)
	dirty := ParseDocument(withBad)

	if diff := cmp.Diff(clean.Sections, dirty.Sections, sectionOpts); diff != "" {
		t.Errorf("malformed lines changed the parse (-clean +dirty):\n%s", diff)
	}
}

func TestParseDocument_DuplicateDates(t *testing.T) {
	text := "# 2025-01-10 (Local: Australia/Sydney)\n## 📅 Schedule\n- [ ] a\n" +
		"# 2025-01-10 (Local: Australia/Sydney)\n## 📅 Schedule\n- [ ] b\n"

	doc := ParseDocument(text)
	if len(doc.Sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(doc.Sections))
	}
	if doc.Sections[0].Schedule[0].Content != "a" || doc.Sections[1].Schedule[0].Content != "b" {
		t.Error("duplicate-date sections were merged or reordered")
	}
}

func TestParseDocument_MalformedDateHeader(t *testing.T) {
	text := "# 2025-1-9 (Local: Australia/Sydney)\n## 📅 Schedule\n- [ ] lost\n" +
		"# 2025-01-10 (Local: Australia/Sydney)\n## 📅 Schedule\n- [ ] kept\n" +
		"# 2025-01-11 (Local: Europe/London)\n- [ ] attributed to previous\n"

	doc := ParseDocument(text)
	if len(doc.Sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(doc.Sections))
	}
	var got []string
	for _, task := range doc.Sections[0].Schedule {
		got = append(got, task.Content)
	}
	if diff := cmp.Diff([]string{"kept", "attributed to previous"}, got); diff != "" {
		t.Errorf("schedule mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDocument_CRLF(t *testing.T) {
	doc := ParseDocument(strings.ReplaceAll(sampleDocument, "\n", "\r\n"))
	if len(doc.Sections) != 1 || len(doc.Sections[0].Priorities) != 1 {
		t.Fatalf("CRLF document parsed as %+v", doc.Sections)
	}
}
