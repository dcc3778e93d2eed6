package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/todomd/todomd/internal/markdown"
	"github.com/todomd/todomd/internal/schema"
)

// ErrNoTask is returned when a model reply contains no task line.
var ErrNoTask = errors.New("no task line in reply")

// Role of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role
	Content string
}

// Options tune a single generation.
type Options struct {
	System      string
	MaxTokens   int
	Temperature *float64
}

// Generator produces text from a conversation. Providers live behind it.
type Generator interface {
	Generate(ctx context.Context, messages []Message, opts Options) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, messages []Message, opts Options) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, messages []Message, opts Options) (string, error) {
	return f(ctx, messages, opts)
}

const extractPrompt = `You turn a request into exactly one Markdown to-do line.
Format: - [ ] <task> #Project @person Due: YYYY-MM-DD !P1
Include a #Project, @person, Due: date or !P1/!P2/!P3 priority only when the request implies it.
Resolve relative dates against today, %s (%s).
Reply with the line only.`

// Extract asks gen to rewrite text as a task line and decodes the first
// task line in the reply. The task is always pending.
func Extract(ctx context.Context, gen Generator, text string, now time.Time) (*schema.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyTask
	}

	reply, err := gen.Generate(ctx, []Message{{Role: RoleUser, Content: text}}, Options{
		System:    fmt.Sprintf(extractPrompt, now.Format(schema.DateLayout), now.Weekday()),
		MaxTokens: 256,
	})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	for _, line := range strings.Split(reply, "\n") {
		t, ok := markdown.DecodeTaskLine(strings.TrimSpace(line))
		if !ok {
			continue
		}
		t.SetStatus(schema.StatusPending, now)
		t.CreatedAt, t.UpdatedAt = now, now
		return t, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNoTask, reply)
}
