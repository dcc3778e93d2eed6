package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/todomd/todomd/internal/db"
	"github.com/todomd/todomd/internal/document"
	"github.com/todomd/todomd/internal/rollover"
	"github.com/todomd/todomd/internal/schema"
)

// lifecycle holds the background loop state.
type lifecycle struct {
	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	watcher *document.Watcher
	lastDay string
}

// Start launches the background loop: periodic external-change checks, an
// optional filesystem watch and day-boundary rollover. It returns at once;
// call Stop to end it.
func (c *Coordinator) Start(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.running {
		return fmt.Errorf("coordinator already running")
	}
	ctx, cancel := context.WithCancel(ctx)

	c.lastDay = c.Today()
	if c.config.AutoRollover {
		c.rolloverDay(ctx, c.lastDay)
	}

	var (
		events <-chan document.ChangeEvent
		errs   <-chan error
	)
	if c.config.Watch {
		if w := c.startWatcher(); w != nil {
			c.watcher = w
			events, errs = w.Events(), w.Errors()
		}
	}

	c.running = true
	c.cancel = cancel
	c.wg.Add(1)
	go c.loop(ctx, events, errs)

	c.logger.Printf("Started (mode %s, check every %s)", c.Mode(), c.config.CheckInterval)
	return nil
}

// Stop ends the background loop and writes back anything pending.
func (c *Coordinator) Stop() error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if !c.running {
		return nil
	}
	c.cancel()
	c.wg.Wait()

	if c.watcher != nil {
		if err := c.watcher.Stop(); err != nil {
			c.logger.Printf("Error stopping watcher: %v", err)
		}
		c.watcher = nil
	}
	c.running = false

	if err := c.Flush(context.Background()); err != nil {
		return fmt.Errorf("final write-back: %w", err)
	}
	c.logger.Println("Stopped")
	return nil
}

// Run is Start followed by Stop once ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return c.Stop()
}

func (c *Coordinator) startWatcher() *document.Watcher {
	c.mu.Lock()
	fh, ok := c.handle.(*document.FileHandle)
	c.mu.Unlock()
	if !ok {
		return nil
	}

	w, err := document.NewWatcher(fh.Name())
	if err != nil {
		c.logger.Printf("Warning: cannot watch %s: %v", fh.Name(), err)
		return nil
	}
	if err := w.Start(); err != nil {
		c.logger.Printf("Warning: cannot watch %s: %v", fh.Name(), err)
		_ = w.Stop()
		return nil
	}
	return w
}

func (c *Coordinator) loop(ctx context.Context, events <-chan document.ChangeEvent, errs <-chan error) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			c.check(ctx)
			c.checkDay(ctx)

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			c.logger.Printf("Document event: %s %s", ev.Op, ev.Path)
			c.check(ctx)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			c.logger.Printf("Watcher error: %v", err)
		}
	}
}

func (c *Coordinator) check(ctx context.Context) {
	if _, err := c.CheckExternal(ctx); err != nil && ctx.Err() == nil {
		c.logger.Printf("External change check failed: %v", err)
	}
}

func (c *Coordinator) checkDay(ctx context.Context) {
	today := c.Today()
	if today == c.lastDay {
		return
	}
	c.logger.Printf("Day changed: %s -> %s", c.lastDay, today)
	c.lastDay = today
	if c.config.AutoRollover {
		c.rolloverDay(ctx, today)
	}
}

func (c *Coordinator) rolloverDay(ctx context.Context, date string) {
	res, err := c.Rollover(ctx, date)
	switch {
	case errors.Is(err, ErrAlreadyRolledOver):
	case err != nil:
		c.logger.Printf("Rollover to %s failed: %v", date, err)
	default:
		c.logger.Printf("Rollover to %s: %s", date, res.Summary)
	}
}

// Rollover carries unfinished tasks from the latest section before date
// into date's section and removes the originals, in one transaction.
//
// It runs at most once per date: a repeat, or a date not after the last
// rollover, returns ErrAlreadyRolledOver.
func (c *Coordinator) Rollover(ctx context.Context, date string) (*rollover.Result, error) {
	if date == "" {
		date = c.Today()
	}
	if !schema.IsDate(date) {
		return nil, fmt.Errorf("%w: date %q", ErrInvalidInput, date)
	}

	last, err := c.store.GetMeta(ctx, metaLastRollover)
	switch {
	case err == nil && last >= date:
		return nil, fmt.Errorf("%s: %w (last %s)", date, ErrAlreadyRolledOver, last)
	case err != nil && !errors.Is(err, db.ErrNotFound):
		return nil, fmt.Errorf("read last rollover: %w", err)
	}

	prev, err := c.store.LatestSectionBefore(ctx, date)
	if errors.Is(err, db.ErrNotFound) {
		prev = nil
	} else if err != nil {
		return nil, fmt.Errorf("find previous section: %w", err)
	}

	res := rollover.RolloverAt(prev, date, c.config.Now())
	if res.Empty() {
		if err := c.store.SetMeta(ctx, metaLastRollover, date); err != nil {
			return nil, err
		}
		return res, nil
	}

	placements := make([]db.Placement, 0, len(res.Carried))
	for _, t := range res.Carried {
		placements = append(placements, db.Placement{Task: t, List: res.Origin(t.ID)})
	}
	var originals []string
	for _, t := range prev.OpenTasks() {
		originals = append(originals, t.ID)
	}

	if err := c.store.ApplyRollover(ctx, date, placements, originals, metaLastRollover); err != nil {
		return nil, fmt.Errorf("apply rollover: %w", err)
	}

	c.mutated(Event{Type: EventRollover, Date: date, Summary: res.Summary})
	return res, nil
}
