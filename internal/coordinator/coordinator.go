package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/todomd/todomd/internal/db"
	"github.com/todomd/todomd/internal/document"
	"github.com/todomd/todomd/internal/markdown"
	"github.com/todomd/todomd/internal/schema"
)

// Store is the indexed record store. *db.DB implements it.
type Store interface {
	ReplaceDocument(ctx context.Context, doc *schema.ParsedDocument) error
	LoadDocument(ctx context.Context) (*schema.ParsedDocument, error)
	GetSectionByDate(ctx context.Context, date string) (*schema.DailySection, error)
	LatestSectionBefore(ctx context.Context, date string) (*schema.DailySection, error)

	InsertTask(ctx context.Context, date string, list schema.ListType, t *schema.Task) error
	GetTask(ctx context.Context, id string) (*db.TaskRecord, error)
	UpdateTask(ctx context.Context, t *schema.Task) error
	UpdateAndMoveTask(ctx context.Context, t *schema.Task, list schema.ListType) error
	DeleteTask(ctx context.Context, id string) error
	ApplyRollover(ctx context.Context, date string, carried []db.Placement, removeIDs []string, metaKey string) error

	InsertNote(ctx context.Context, date string, n *schema.Note) error
	InsertBlocker(ctx context.Context, date string, b *schema.Blocker) error

	ListProjects(ctx context.Context) ([]schema.Project, error)
	UpsertProject(ctx context.Context, p schema.Project) error

	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error

	Ephemeral() bool
}

const metaLastRollover = "last_rollover"

// Coordinator owns the index and the connected document.
type Coordinator struct {
	store  Store
	picker document.Picker
	config *Config
	logger *log.Logger

	// syncMu serializes document I/O: connect, write-back and external checks.
	syncMu sync.Mutex

	mu      sync.Mutex
	handle  document.Handle
	state   State
	lastSig document.Signal
	timer   *time.Timer
	gen     uint64
	subs    map[int]func(Event)
	nextSub int

	lifecycle
}

// New creates a coordinator over store. picker may be nil, in which case
// the coordinator can only run in db-only mode.
func New(store Store, picker document.Picker, config *Config) (*Coordinator, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	config = config.withDefaults()

	return &Coordinator{
		store:  store,
		picker: picker,
		config: config,
		logger: config.Logger,
		state:  StateDisconnected,
		subs:   make(map[int]func(Event)),
	}, nil
}

// Subscribe registers fn for every event and returns a function that
// removes it. fn runs on the goroutine that caused the event and must not
// call back into Connect, Flush or CheckExternal.
func (c *Coordinator) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Coordinator) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = c.config.Now()
	}
	if ev.Err != nil {
		ev.Error = ev.Err.Error()
	}

	c.mu.Lock()
	subs := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// Today returns the current date in the configured timezone.
func (c *Coordinator) Today() string {
	return c.config.Now().In(c.config.Location).Format(schema.DateLayout)
}

// IsConnected reports whether a document is bound.
func (c *Coordinator) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle != nil
}

// State returns the current synchronization state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Mode reports which stores are live.
func (c *Coordinator) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.handle == nil:
		return ModeDBOnly
	case c.store.Ephemeral():
		return ModeFileOnly
	default:
		return ModeHybrid
	}
}

// DocumentName returns the connected document's name, or "".
func (c *Coordinator) DocumentName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil {
		return ""
	}
	return c.handle.Name()
}

// Connect acquires the document, parses it and overwrites the index with
// it. Tasks whose lines are unchanged since the index last saw them keep
// their ids. On failure the coordinator stays disconnected.
func (c *Coordinator) Connect(ctx context.Context) error {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	if c.picker == nil {
		return fmt.Errorf("%w: %w", ErrConnectFailed, document.ErrNoDocument)
	}

	h, err := c.picker.Pick(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	data, err := h.Read(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	sig, err := h.Signal(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	doc := c.parse(data)
	if err := c.store.ReplaceDocument(ctx, doc); err != nil {
		return fmt.Errorf("%w: import document: %w", ErrConnectFailed, err)
	}

	c.mu.Lock()
	c.stopTimerLocked()
	c.handle = h
	c.lastSig = document.SignalOf(data, sig.ModTime)
	c.state = StateIdle
	c.mu.Unlock()

	c.logger.Printf("Connected to %s (%d sections)", h.Name(), len(doc.Sections))
	c.emit(Event{Type: EventConnected, Summary: h.Name()})
	return nil
}

// Disconnect writes back pending changes and releases the document.
// The index keeps serving reads and writes in db-only mode.
func (c *Coordinator) Disconnect(ctx context.Context) error {
	flushErr := c.Flush(ctx)

	c.mu.Lock()
	c.stopTimerLocked()
	name := ""
	if c.handle != nil {
		name = c.handle.Name()
	}
	c.handle = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if name != "" {
		c.logger.Printf("Disconnected from %s", name)
		c.emit(Event{Type: EventDisconnected, Summary: name})
	}
	return flushErr
}

// parse reads document text and merges declared projects.
func (c *Coordinator) parse(data []byte) *schema.ParsedDocument {
	doc := markdown.ParseDocument(string(data))
	doc.Projects = schema.MergeProjects(doc.Projects, c.config.Projects...)
	return doc
}

// LoadCurrentSection returns the section for date from the index.
func (c *Coordinator) LoadCurrentSection(ctx context.Context, date string) (*schema.DailySection, error) {
	if date == "" {
		date = c.Today()
	}
	s, err := c.store.GetSectionByDate(ctx, date)
	if err != nil {
		return nil, c.mapErr(err, "section "+date)
	}
	return s, nil
}

// LoadDocument returns every section in the index.
func (c *Coordinator) LoadDocument(ctx context.Context) (*schema.ParsedDocument, error) {
	doc, err := c.store.LoadDocument(ctx)
	if err != nil {
		return nil, err
	}
	doc.Projects = schema.MergeProjects(doc.Projects, c.config.Projects...)
	return doc, nil
}

// GetAllProjects returns stored projects followed by declared ones.
func (c *Coordinator) GetAllProjects(ctx context.Context) ([]schema.Project, error) {
	projects, err := c.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	return schema.MergeProjects(projects, c.config.Projects...), nil
}

// TaskInput is the data for a new task. Content may carry inline metadata
// tokens; explicit fields win over tokens.
type TaskInput struct {
	Content  string
	Project  string
	Assignee string
	DueDate  string
	Priority schema.Priority
}

// AddTask appends a task to list in today's section.
func (c *Coordinator) AddTask(ctx context.Context, in TaskInput, list schema.ListType) (*schema.Task, error) {
	return c.AddTaskOn(ctx, c.Today(), in, list)
}

// AddTaskOn appends a task to list in the section for date, creating the
// section if needed.
func (c *Coordinator) AddTaskOn(ctx context.Context, date string, in TaskInput, list schema.ListType) (*schema.Task, error) {
	if !schema.IsDate(date) {
		return nil, fmt.Errorf("%w: date %q", ErrInvalidInput, date)
	}
	if !list.IsTaskList() {
		return nil, fmt.Errorf("%w: %q is not a task list", ErrInvalidInput, list)
	}

	now := c.config.Now()
	t := schema.NewTask("")
	t.CreatedAt, t.UpdatedAt = now, now
	t.Content = markdown.ExtractMetadata(t, in.Content)
	applyInput(t, in)
	if list == schema.ListCompleted {
		t.SetStatus(schema.StatusCompleted, now)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if err := c.registerProject(ctx, t.Project); err != nil {
		return nil, err
	}
	if err := c.store.InsertTask(ctx, date, list, t); err != nil {
		return nil, fmt.Errorf("failed to add task: %w", err)
	}

	c.mutated(Event{Type: EventTaskChanged, Action: ActionAdded, Date: date, Task: t.Clone()})
	return t, nil
}

func applyInput(t *schema.Task, in TaskInput) {
	if in.Project != "" {
		t.Project = schema.NormalizeTag(in.Project)
	}
	if in.Assignee != "" {
		t.Assignee = strings.TrimPrefix(in.Assignee, "@")
	}
	if in.DueDate != "" {
		t.DueDate = in.DueDate
	}
	if in.Priority != schema.PriorityNone {
		t.Priority = in.Priority
	}
}

// TaskPatch lists the fields to change; nil means unchanged. An empty
// string clears an optional field.
type TaskPatch struct {
	Content  *string
	Project  *string
	Assignee *string
	DueDate  *string
	Priority *schema.Priority
	Status   *schema.Status
}

// UpdateTask applies patch to the task with id. A status change relocates
// the task: completing moves it to Completed, reopening moves it back to
// the list it was completed from.
func (c *Coordinator) UpdateTask(ctx context.Context, id string, patch TaskPatch) error {
	rec, err := c.store.GetTask(ctx, id)
	if err != nil {
		return c.mapErr(err, "task "+id)
	}
	t := rec.Task
	now := c.config.Now()

	if patch.Content != nil {
		var tokens schema.Task
		t.Content = markdown.ExtractMetadata(&tokens, *patch.Content)
		applyInput(t, TaskInput{Project: tokens.Project, Assignee: tokens.Assignee, DueDate: tokens.DueDate, Priority: tokens.Priority})
	}
	if patch.Project != nil {
		t.Project = schema.NormalizeTag(*patch.Project)
	}
	if patch.Assignee != nil {
		t.Assignee = strings.TrimPrefix(*patch.Assignee, "@")
	}
	if patch.DueDate != nil {
		t.DueDate = *patch.DueDate
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}

	target := rec.List
	action := ActionUpdated
	if patch.Status != nil && *patch.Status != t.Status {
		t.SetStatus(*patch.Status, now)
		switch {
		case t.Status == schema.StatusCompleted:
			target = schema.ListCompleted
			action = ActionCompleted
		case rec.List == schema.ListCompleted:
			target = reopenList(rec.PreviousList)
		}
	}
	t.UpdatedAt = now

	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := c.registerProject(ctx, t.Project); err != nil {
		return err
	}
	if target == rec.List {
		err = c.store.UpdateTask(ctx, t)
	} else {
		err = c.store.UpdateAndMoveTask(ctx, t, target)
	}
	if err != nil {
		return c.mapErr(err, "task "+id)
	}

	c.mutated(Event{Type: EventTaskChanged, Action: action, Date: rec.Date, Task: t.Clone()})
	return nil
}

func reopenList(previous schema.ListType) schema.ListType {
	for _, l := range schema.OpenLists {
		if l == previous {
			return l
		}
	}
	return schema.ListSchedule
}

// CompleteTask marks a task completed and moves it to Completed.
func (c *Coordinator) CompleteTask(ctx context.Context, id string) error {
	status := schema.StatusCompleted
	return c.UpdateTask(ctx, id, TaskPatch{Status: &status})
}

// DeleteTask removes a task permanently.
func (c *Coordinator) DeleteTask(ctx context.Context, id string) error {
	rec, err := c.store.GetTask(ctx, id)
	if err != nil {
		return c.mapErr(err, "task "+id)
	}
	if err := c.store.DeleteTask(ctx, id); err != nil {
		return c.mapErr(err, "task "+id)
	}
	c.mutated(Event{Type: EventTaskChanged, Action: ActionDeleted, Date: rec.Date, Task: rec.Task})
	return nil
}

// AddNote appends a note to the section for date.
func (c *Coordinator) AddNote(ctx context.Context, date, text string) (*schema.Note, error) {
	if date == "" {
		date = c.Today()
	}
	text = strings.Join(strings.Fields(text), " ")
	if text == "" || !schema.IsDate(date) {
		return nil, fmt.Errorf("%w: note needs text and a valid date", ErrInvalidInput)
	}

	n := &schema.Note{ID: schema.NewID(), Content: text, Timestamp: c.config.Now()}
	if err := c.store.InsertNote(ctx, date, n); err != nil {
		return nil, fmt.Errorf("failed to add note: %w", err)
	}
	c.mutated(Event{Type: EventSectionChanged, Date: date, Summary: "note"})
	return n, nil
}

// AddBlocker appends a blocker to the section for date.
func (c *Coordinator) AddBlocker(ctx context.Context, date, content, nextStep string) (*schema.Blocker, error) {
	if date == "" {
		date = c.Today()
	}
	content = strings.TrimSpace(content)
	if content == "" || !schema.IsDate(date) {
		return nil, fmt.Errorf("%w: blocker needs content and a valid date", ErrInvalidInput)
	}
	if strings.Contains(content, markdown.BlockerSeparator) {
		return nil, fmt.Errorf("%w: blocker content cannot contain %q", ErrInvalidInput, markdown.BlockerSeparator)
	}

	b := &schema.Blocker{
		ID:        schema.NewID(),
		Content:   content,
		NextStep:  strings.TrimSpace(nextStep),
		CreatedAt: c.config.Now(),
	}
	if err := c.store.InsertBlocker(ctx, date, b); err != nil {
		return nil, fmt.Errorf("failed to add blocker: %w", err)
	}
	c.mutated(Event{Type: EventSectionChanged, Date: date, Summary: "blocker"})
	return b, nil
}

func (c *Coordinator) registerProject(ctx context.Context, tag string) error {
	if tag == "" {
		return nil
	}
	if err := c.store.UpsertProject(ctx, schema.ProjectFromTag(tag)); err != nil {
		return fmt.Errorf("failed to register project %s: %w", tag, err)
	}
	return nil
}

func (c *Coordinator) mapErr(err error, what string) error {
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
