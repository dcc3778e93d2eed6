package markdown

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/todomd/todomd/internal/schema"
)

// ignoreVolatile drops fields that are not carried by the text format.
var ignoreVolatile = cmpopts.IgnoreFields(schema.Task{}, "ID", "CreatedAt", "UpdatedAt", "CompletedAt", "RolledFromDate")

func TestDecodeTaskLine(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		want   *schema.Task
		wantOK bool
	}{
		{
			name:   "plain pending",
			line:   "- [ ] Buy milk",
			want:   &schema.Task{Content: "Buy milk", Status: schema.StatusPending},
			wantOK: true,
		},
		{
			name:   "completed",
			line:   "- [x] Email client @Jim",
			want:   &schema.Task{Content: "Email client", Status: schema.StatusCompleted, Assignee: "Jim"},
			wantOK: true,
		},
		{
			name: "all metadata",
			line: "- [ ] Finish report #DataTables Due: 2025-01-09 !P1",
			want: &schema.Task{
				Content:  "Finish report",
				Status:   schema.StatusPending,
				Project:  "#DataTables",
				DueDate:  "2025-01-09",
				Priority: schema.PriorityP1,
			},
			wantOK: true,
		},
		{
			name: "metadata in the middle",
			line: "- [ ] Call #Ops @Ann about rota !P2 today",
			want: &schema.Task{
				Content:  "Call about rota today",
				Status:   schema.StatusPending,
				Project:  "#Ops",
				Assignee: "Ann",
				Priority: schema.PriorityP2,
			},
			wantOK: true,
		},
		{
			name:   "first project wins, later tags stripped",
			line:   "- [ ] Sync #A and #B",
			want:   &schema.Task{Content: "Sync and", Status: schema.StatusPending, Project: "#A"},
			wantOK: true,
		},
		{
			name: "repeated tokens of every kind",
			line: "- [ ] Sync #Alpha with #Beta @ann @bob Due: 2025-01-09 Due: 2025-02-01 !P2 !P1",
			want: &schema.Task{
				Content:  "Sync with",
				Status:   schema.StatusPending,
				Project:  "#Alpha",
				Assignee: "ann",
				DueDate:  "2025-01-09",
				Priority: schema.PriorityP2,
			},
			wantOK: true,
		},
		{
			name:   "first valid due date wins",
			line:   "- [ ] Plan Due: 2025-13-40 Due: 2025-03-01",
			want:   &schema.Task{Content: "Plan Due: 2025-13-40", Status: schema.StatusPending, DueDate: "2025-03-01"},
			wantOK: true,
		},
		{
			name:   "annotations and marker stripped",
			line:   "- [ ] ⏭ Review PR [🔄 Day 3] [⚠️ Overdue 2 days] [🚧 Blocked] [🆕 New]",
			want:   &schema.Task{Content: "Review PR", Status: schema.StatusPending},
			wantOK: true,
		},
		{
			name:   "invalid calendar date stays in content",
			line:   "- [ ] Plan Due: 2025-13-40",
			want:   &schema.Task{Content: "Plan Due: 2025-13-40", Status: schema.StatusPending},
			wantOK: true,
		},
		{
			name:   "only metadata",
			line:   "- [ ] #Work @Bob !P1",
			wantOK: false,
		},
		{
			name:   "missing checkbox",
			line:   "- Buy milk",
			wantOK: false,
		},
		{
			name:   "uppercase X is not a checkbox",
			line:   "- [X] Buy milk",
			wantOK: false,
		},
		{
			name:   "empty body",
			line:   "- [ ] ",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodeTaskLine(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("DecodeTaskLine(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if diff := cmp.Diff(tt.want, got, ignoreVolatile); diff != "" {
				t.Errorf("DecodeTaskLine(%q) mismatch (-want +got):\n%s", tt.line, diff)
			}
			if err := got.Validate(); err != nil {
				t.Errorf("decoded task invalid: %v", err)
			}
		})
	}
}

func TestEncodeTaskLine(t *testing.T) {
	task := &schema.Task{
		Content:  "Finish report",
		Status:   schema.StatusPending,
		Project:  "DataTables",
		Assignee: "@Jim",
		DueDate:  "2025-01-09",
		Priority: schema.PriorityP1,
	}
	want := "- [ ] Finish report #DataTables @Jim Due: 2025-01-09 !P1"
	if got := EncodeTaskLine(task); got != want {
		t.Errorf("EncodeTaskLine() = %q, want %q", got, want)
	}

	task.Status = schema.StatusCompleted
	if got := EncodeTaskLine(task); got[:5] != "- [x]" {
		t.Errorf("completed task encoded as %q", got)
	}
}

func TestTaskLineRoundTrip(t *testing.T) {
	tasks := []*schema.Task{
		{Content: "Buy milk", Status: schema.StatusPending},
		{Content: "Email client", Status: schema.StatusCompleted, Assignee: "Jim"},
		{Content: "Finish report", Status: schema.StatusPending, Project: "#DataTables", DueDate: "2025-01-09", Priority: schema.PriorityP1},
		{Content: "Review (draft 2)", Status: schema.StatusPending, Priority: schema.PriorityP3},
		{Content: "Pay rent", Status: schema.StatusCompleted, Project: "#Home", DueDate: "2025-02-01"},
	}

	for _, want := range tasks {
		line := EncodeTaskLine(want)
		got, ok := DecodeTaskLine(line)
		if !ok {
			t.Fatalf("DecodeTaskLine(%q) rejected an encoded task", line)
		}
		if diff := cmp.Diff(want, got, ignoreVolatile); diff != "" {
			t.Errorf("round trip of %q mismatch (-want +got):\n%s", line, diff)
		}
	}

	// Hand-written lines with repeated tokens settle after one decode.
	for _, line := range []string{
		"- [ ] Sync #Alpha with #Beta @ann @bob",
		"- [x] Ship !P3 it !P1 #Ops Due: 2025-01-02 Due: 2025-01-03",
	} {
		first, ok := DecodeTaskLine(line)
		if !ok {
			t.Fatalf("DecodeTaskLine(%q) rejected the line", line)
		}
		encoded := EncodeTaskLine(first)
		second, ok := DecodeTaskLine(encoded)
		if !ok {
			t.Fatalf("DecodeTaskLine(%q) rejected an encoded task", encoded)
		}
		if diff := cmp.Diff(first, second, ignoreVolatile); diff != "" {
			t.Errorf("%q changed across a round trip (-first +second):\n%s", line, diff)
		}
		if again := EncodeTaskLine(second); again != encoded {
			t.Errorf("encoding is not stable: %q then %q", encoded, again)
		}
	}
}

func TestCanonicalLine(t *testing.T) {
	stored := &schema.Task{Content: RolloverMarker + "Review PR (Overdue)", Status: schema.StatusInProgress, Project: "#Dev"}
	parsed, ok := DecodeTaskLine(EncodeTaskLine(stored))
	if !ok {
		t.Fatal("DecodeTaskLine() rejected an encoded task")
	}
	if CanonicalLine(stored) != CanonicalLine(parsed) {
		t.Errorf("CanonicalLine() = %q and %q, want equal", CanonicalLine(stored), CanonicalLine(parsed))
	}
	if want := "- [ ] Review PR (Overdue) #Dev"; CanonicalLine(stored) != want {
		t.Errorf("CanonicalLine() = %q, want %q", CanonicalLine(stored), want)
	}
}

func TestMetadataExtractors_Isolated(t *testing.T) {
	inputs := map[string]string{
		"project":  "a #Tag b",
		"assignee": "a @who b",
		"due":      "a Due: 2025-03-04 b",
		"priority": "a !P2 b",
	}

	for _, e := range metadataExtractors {
		t.Run(e.name, func(t *testing.T) {
			rest, value, ok := e.extract(inputs[e.name])
			if !ok {
				t.Fatalf("%s extractor did not match %q", e.name, inputs[e.name])
			}
			if value == "" {
				t.Errorf("%s extractor captured nothing", e.name)
			}
			if collapseSpaces(rest) != "a b" {
				t.Errorf("%s extractor left %q", e.name, rest)
			}
		})
	}
}
