package coordinator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/todomd/todomd/internal/document"
	"github.com/todomd/todomd/internal/markdown"
	"github.com/todomd/todomd/internal/schema"
)

// mutated marks the document dirty, restarts the debounce and publishes ev.
// The mutation is already durable in the index.
func (c *Coordinator) mutated(ev Event) {
	c.mu.Lock()
	c.gen++
	if c.handle != nil {
		c.state = StateDirty
		c.scheduleLocked()
	}
	c.mu.Unlock()

	c.emit(ev)
}

// scheduleLocked replaces any pending write-back with a fresh one.
func (c *Coordinator) scheduleLocked() {
	c.stopTimerLocked()
	var t *time.Timer
	t = time.AfterFunc(c.config.DebounceInterval, func() {
		c.mu.Lock()
		if c.timer == t {
			c.timer = nil
		}
		c.mu.Unlock()

		if err := c.writeBack(context.Background()); err != nil {
			c.logger.Printf("Write-back failed, will retry: %v", err)
		}
	})
	c.timer = t
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Flush writes pending changes to the document now instead of waiting for
// the debounce. It is a no-op when nothing is pending.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.Lock()
	c.stopTimerLocked()
	c.mu.Unlock()
	return c.writeBack(ctx)
}

// writeBack serializes the index into the document. On failure the change
// stays in the index and another attempt is scheduled.
func (c *Coordinator) writeBack(ctx context.Context) error {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	c.mu.Lock()
	h := c.handle
	if h == nil || c.state != StateDirty {
		c.mu.Unlock()
		return nil
	}
	gen := c.gen
	c.state = StateSyncing
	c.mu.Unlock()

	data, err := c.render(ctx)
	if err == nil {
		err = h.Write(ctx, data)
	}
	if err != nil {
		c.mu.Lock()
		if c.handle == h {
			c.state = StateDirty
			if c.timer == nil {
				c.scheduleLocked()
			}
		}
		c.mu.Unlock()

		c.emit(Event{Type: EventSyncError, Err: err})
		return fmt.Errorf("write-back to %s: %w", h.Name(), err)
	}

	sig := document.SignalOf(data, c.config.Now())
	if observed, err := h.Signal(ctx); err == nil {
		sig.ModTime = observed.ModTime
	}

	c.mu.Lock()
	c.lastSig = sig
	if c.handle == h && c.gen == gen {
		c.state = StateIdle
	} else if c.handle == h {
		// A mutation landed during the write; its timer is already pending.
		c.state = StateDirty
	}
	c.mu.Unlock()

	c.emit(Event{Type: EventSyncComplete, Summary: h.Name()})
	return nil
}

func (c *Coordinator) render(ctx context.Context) ([]byte, error) {
	doc, err := c.LoadDocument(ctx)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	return []byte(markdown.SerializeDocument(doc.Sections, doc.Projects)), nil
}

// CheckExternal re-imports the document when its content changed since the
// last observation. It reports whether an import happened.
//
// Import replaces the whole index. If a local mutation was still waiting
// for write-back it is lost; this is logged and published as
// EventExternalOverwrite.
func (c *Coordinator) CheckExternal(ctx context.Context) (bool, error) {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	c.mu.Lock()
	h := c.handle
	prev := c.lastSig
	c.mu.Unlock()
	if h == nil {
		return false, nil
	}

	sig, err := h.Signal(ctx)
	if err != nil {
		c.emit(Event{Type: EventSyncError, Err: err})
		return false, fmt.Errorf("check %s: %w", h.Name(), err)
	}
	if !sig.Changed(prev) {
		return false, nil
	}

	data, err := h.Read(ctx)
	if err != nil {
		c.emit(Event{Type: EventSyncError, Err: err})
		return false, fmt.Errorf("read %s: %w", h.Name(), err)
	}
	incoming := c.parse(data)

	before, err := c.store.LoadDocument(ctx)
	if err != nil {
		return false, fmt.Errorf("load index: %w", err)
	}

	c.mu.Lock()
	gen := c.gen
	clobbered := c.state == StateDirty
	c.mu.Unlock()

	if err := c.store.ReplaceDocument(ctx, incoming); err != nil {
		c.emit(Event{Type: EventSyncError, Err: err})
		return false, fmt.Errorf("import %s: %w", h.Name(), err)
	}

	c.mu.Lock()
	if c.handle == h {
		c.lastSig = document.SignalOf(data, sig.ModTime)
		// A mutation that landed after the import stays dirty with its
		// write-back pending.
		if c.gen == gen {
			c.stopTimerLocked()
			c.state = StateIdle
		}
	}
	c.mu.Unlock()

	dates := changedDates(before, incoming)
	ev := Event{Type: EventExternalChange, Dates: dates}
	if clobbered {
		ev.Type = EventExternalOverwrite
		ev.Clobbered = true
		c.logger.Printf("Warning: external edit to %s overwrote unsaved local changes (dates %v)", h.Name(), dates)
	} else {
		c.logger.Printf("Imported external edit to %s (dates %v)", h.Name(), dates)
	}
	c.emit(ev)
	return true, nil
}

// changedDates lists the dates whose rendered sections differ.
func changedDates(before, after *schema.ParsedDocument) []string {
	render := func(doc *schema.ParsedDocument) map[string]string {
		out := make(map[string]string)
		for _, s := range doc.Sections {
			out[s.Date] += markdown.SerializeSection(s)
		}
		return out
	}
	a, b := render(before), render(after)

	var dates []string
	for d, text := range a {
		if b[d] != text {
			dates = append(dates, d)
		}
	}
	for d := range b {
		if _, ok := a[d]; !ok {
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)
	return dates
}
