// Package rollover carries unfinished tasks from one day's section into the next.
//
// Rollover is a pure computation. It does not mark or remove the source
// tasks; running it twice over the same section yields two sets of copies.
// The coordinator is responsible for relocating originals exactly once.
package rollover

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/todomd/todomd/internal/markdown"
	"github.com/todomd/todomd/internal/schema"
)

const (
	OverdueSuffix  = " (Overdue)"
	DueTodaySuffix = " (Due today)"

	summaryTop = 3
)

var (
	markerRegex = regexp.MustCompile(`^(⏭\x{FE0F}?\s*)+`)
	suffixRegex = regexp.MustCompile(`(\s*\((Overdue|Due today)\))+$`)
)

// Result is the outcome of one rollover.
type Result struct {
	Carried       []*schema.Task
	OverdueCount  int
	DueTodayCount int
	Summary       string

	FromDate string
	ToDate   string

	origins map[string]schema.ListType
}

// Origin returns the list the carried task with id came from.
func (r *Result) Origin(id string) schema.ListType {
	if l, ok := r.origins[id]; ok {
		return l
	}
	return schema.ListNone
}

// Empty reports whether nothing was carried.
func (r *Result) Empty() bool {
	return len(r.Carried) == 0
}

// Rollover computes the tasks to carry from prev into currentDate.
func Rollover(prev *schema.DailySection, currentDate string) *Result {
	return RolloverAt(prev, currentDate, time.Now())
}

// RolloverAt is Rollover with an explicit creation time for the copies.
func RolloverAt(prev *schema.DailySection, currentDate string, now time.Time) *Result {
	r := &Result{
		Carried: []*schema.Task{},
		ToDate:  currentDate,
		origins: make(map[string]schema.ListType),
	}
	if prev == nil {
		r.Summary = summarize(r)
		return r
	}
	r.FromDate = prev.Date

	for _, l := range schema.OpenLists {
		for _, src := range *prev.List(l) {
			if !src.IsOpen() {
				continue
			}
			t := carry(src, prev.Date, now)
			switch {
			case t.DueDate == "":
			case t.DueDate < currentDate:
				r.OverdueCount++
				t.Content += OverdueSuffix
			case t.DueDate == currentDate:
				r.DueTodayCount++
				t.Content += DueTodaySuffix
			}
			r.Carried = append(r.Carried, t)
			r.origins[t.ID] = l
		}
	}

	r.Summary = summarize(r)
	return r
}

// carry copies src as a fresh task with a single rollover marker.
func carry(src *schema.Task, fromDate string, now time.Time) *schema.Task {
	t := src.Clone()
	t.ID = schema.NewID()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.CompletedAt = nil
	t.RolledFromDate = fromDate
	t.Content = markdown.RolloverMarker + BaseContent(src.Content)
	return t
}

// BaseContent strips rollover decoration so a task rolled twice is not
// marked twice.
func BaseContent(content string) string {
	content = strings.TrimSpace(content)
	content = markerRegex.ReplaceAllString(content, "")
	content = suffixRegex.ReplaceAllString(content, "")
	return strings.TrimSpace(content)
}

func summarize(r *Result) string {
	if len(r.Carried) == 0 {
		return "Nothing to roll over."
	}

	var b strings.Builder
	noun := "tasks"
	if len(r.Carried) == 1 {
		noun = "task"
	}
	fmt.Fprintf(&b, "Rolled over %d %s", len(r.Carried), noun)
	if r.FromDate != "" {
		fmt.Fprintf(&b, " from %s", r.FromDate)
	}
	fmt.Fprintf(&b, " (%d overdue, %d due today).", r.OverdueCount, r.DueTodayCount)

	top := make([]*schema.Task, len(r.Carried))
	copy(top, r.Carried)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Priority.Rank() < top[j].Priority.Rank()
	})
	if len(top) > summaryTop {
		top = top[:summaryTop]
	}

	b.WriteString(" Top: ")
	for i, t := range top {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(BaseContent(t.Content))
		if t.Priority != schema.PriorityNone {
			fmt.Fprintf(&b, " [%s]", t.Priority)
		}
	}
	return b.String()
}
