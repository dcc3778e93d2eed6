// Package assist turns free-form text into tasks, either locally with
// natural-language date parsing or by asking a language model.
package assist

import (
	"errors"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/todomd/todomd/internal/markdown"
	"github.com/todomd/todomd/internal/schema"
)

// ErrEmptyTask is returned when no task content remains after metadata and
// dates are removed.
var ErrEmptyTask = errors.New("task has no content")

// dateConnectors are dropped when they directly precede a parsed date, so
// "Send invoice by next friday" becomes "Send invoice".
var dateConnectors = map[string]bool{
	"by": true, "on": true, "due": true, "before": true, "until": true,
}

var dateParser = newDateParser()

func newDateParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// ParseQuickAdd builds a pending task from one line of text. Inline tokens
// (#Project, @person, Due: YYYY-MM-DD, !P1) are extracted as in the
// document format. Without an explicit Due: token, a natural-language date
// such as "tomorrow" or "next friday" relative to now sets the due date.
func ParseQuickAdd(text string, now time.Time) (*schema.Task, error) {
	t := schema.NewTask("")
	t.CreatedAt, t.UpdatedAt = now, now
	content := markdown.ExtractMetadata(t, text)

	if t.DueDate == "" && content != "" {
		r, err := dateParser.Parse(content, now)
		if err == nil && r != nil {
			t.DueDate = r.Time.In(now.Location()).Format(schema.DateLayout)
			content = removeDate(content, r.Index, r.Text)
		}
	}

	t.Content = content
	if t.Content == "" {
		return nil, ErrEmptyTask
	}
	return t, nil
}

// removeDate cuts the matched date phrase and a connector word before it.
func removeDate(content string, index int, match string) string {
	if index < 0 || index+len(match) > len(content) {
		return content
	}
	before := strings.Fields(content[:index])
	after := content[index+len(match):]
	if n := len(before); n > 0 && dateConnectors[strings.ToLower(before[n-1])] {
		before = before[:n-1]
	}
	return strings.Join(strings.Fields(strings.Join(before, " ")+" "+after), " ")
}
