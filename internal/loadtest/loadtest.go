// Package loadtest measures the document codec and the SQLite index under
// realistic document sizes and concurrent readers.
//
// A fixture is a synthetic ToDo document of N daily sections. The same
// fixture drives codec timings (parse, serialize, import) and concurrent
// section reads against the index, the access pattern of the dashboard
// and CLI running next to a daemon.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/todomd/todomd/internal/db"
	"github.com/todomd/todomd/internal/markdown"
	"github.com/todomd/todomd/internal/schema"
)

var projectTags = []string{"#Work", "#Home", "#DataTables", "#Garden", "#Travel"}

var assignees = []string{"", "", "", "ann", "jim", "kim"}

// Fixture is a populated index plus the document it was built from.
type Fixture struct {
	DB         *db.DB
	Document   *schema.ParsedDocument
	Markdown   string
	Dates      []string
	TotalTasks int
	OpenTasks  int
}

// LatencyStats captures performance metrics from load tests.
type LatencyStats struct {
	Min          time.Duration
	Max          time.Duration
	Mean         time.Duration
	P50          time.Duration // Median
	P95          time.Duration
	P99          time.Duration
	TotalQueries int
	Errors       int
	Durations    []time.Duration
}

// CodecStats holds one LatencyStats per codec stage.
type CodecStats struct {
	Parse     *LatencyStats
	Serialize *LatencyStats
	Import    *LatencyStats
}

// GenerateDocument builds a deterministic document with days sections
// ending at end, each holding tasksPerDay tasks.
//
// Tasks are spread across the lists with realistic metadata:
//   - at most three priorities per day, weighted toward P2
//   - about a third of tasks completed
//   - projects, assignees and due dates on a subset of tasks
//
// Every section also gets a note, and every fifth section a blocker.
func GenerateDocument(days, tasksPerDay int, end time.Time) *schema.ParsedDocument {
	// #nosec G404 - deterministic fixture data, not security sensitive
	rng := rand.New(rand.NewSource(42))
	doc := &schema.ParsedDocument{}

	for d := days - 1; d >= 0; d-- {
		day := end.AddDate(0, 0, -d)
		date := day.Format(schema.DateLayout)
		s := schema.NewSection(date)

		for i := 0; i < tasksPerDay; i++ {
			t := generateTask(rng, day, i)
			list := schema.ListSchedule
			switch {
			case t.Status == schema.StatusCompleted:
				list = schema.ListCompleted
			case len(s.Priorities) < 3 && t.Priority == schema.PriorityP1:
				list = schema.ListPriorities
			case rng.Float64() < 0.25:
				list = schema.ListFollowUps
			}
			_ = s.Append(list, t)
		}

		s.Notes = append(s.Notes, &schema.Note{
			ID:        schema.NewID(),
			Content:   fmt.Sprintf("Retro thoughts for %s", date),
			Timestamp: day,
		})
		if d%5 == 0 {
			s.Blockers = append(s.Blockers, &schema.Blocker{
				ID:        schema.NewID(),
				Content:   fmt.Sprintf("Waiting on review %d", d),
				NextStep:  "ping the reviewer",
				CreatedAt: day,
			})
		}
		doc.Sections = append(doc.Sections, s)
	}

	for _, tag := range projectTags {
		doc.Projects = append(doc.Projects, schema.ProjectFromTag(tag))
	}
	return doc
}

func generateTask(rng *rand.Rand, day time.Time, i int) *schema.Task {
	t := &schema.Task{
		ID:        schema.NewID(),
		Content:   fmt.Sprintf("Task %d for %s", i, day.Format("Jan 2")),
		Status:    schema.StatusPending,
		CreatedAt: day,
		UpdatedAt: day,
	}

	// Priority distribution: 10% P1, 40% P2, 20% P3, 30% none.
	switch r := rng.Float64(); {
	case r < 0.1:
		t.Priority = schema.PriorityP1
	case r < 0.5:
		t.Priority = schema.PriorityP2
	case r < 0.7:
		t.Priority = schema.PriorityP3
	}

	if rng.Float64() < 0.6 {
		t.Project = projectTags[rng.Intn(len(projectTags))]
	}
	t.Assignee = assignees[rng.Intn(len(assignees))]
	if rng.Float64() < 0.3 {
		t.DueDate = day.AddDate(0, 0, rng.Intn(14)).Format(schema.DateLayout)
	}
	if rng.Float64() < 0.33 {
		t.SetStatus(schema.StatusCompleted, day.Add(time.Duration(rng.Intn(8))*time.Hour))
	}
	return t
}

// CreateFixture generates a document, round-trips it through the Markdown
// codec and imports the result into a fresh index at dbPath.
func CreateFixture(ctx context.Context, dbPath string, days, tasksPerDay int) (*Fixture, error) {
	if days <= 0 || tasksPerDay < 0 {
		return nil, fmt.Errorf("invalid fixture size %d days x %d tasks", days, tasksPerDay)
	}

	database, err := db.OpenContext(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	text := markdown.SerializeDocument(GenerateDocument(days, tasksPerDay, time.Now()).Sections, nil)
	doc := markdown.ParseDocument(text)
	if err := database.ReplaceDocument(ctx, doc); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to import fixture: %w", err)
	}

	f := &Fixture{DB: database, Document: doc, Markdown: text}
	for _, s := range doc.Sections {
		f.Dates = append(f.Dates, s.Date)
		f.TotalTasks += s.TaskCount()
		f.OpenTasks += len(s.OpenTasks())
	}
	return f, nil
}

// Close closes the fixture's index.
func (f *Fixture) Close() error {
	if f.DB != nil {
		return f.DB.Close()
	}
	return nil
}

// MeasureCodec times iterations of parse, serialize and import of the
// fixture document.
func (f *Fixture) MeasureCodec(ctx context.Context, iterations int) (*CodecStats, error) {
	if iterations <= 0 {
		iterations = 1
	}
	parse := make([]time.Duration, 0, iterations)
	serialize := make([]time.Duration, 0, iterations)
	imports := make([]time.Duration, 0, iterations)

	for i := 0; i < iterations; i++ {
		start := time.Now()
		doc := markdown.ParseDocument(f.Markdown)
		parse = append(parse, time.Since(start))

		start = time.Now()
		_ = markdown.SerializeDocument(doc.Sections, doc.Projects)
		serialize = append(serialize, time.Since(start))

		start = time.Now()
		if err := f.DB.ReplaceDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("import iteration %d: %w", i, err)
		}
		imports = append(imports, time.Since(start))
		f.Document = doc
	}

	return &CodecStats{
		Parse:     computeLatencyStats(parse),
		Serialize: computeLatencyStats(serialize),
		Import:    computeLatencyStats(imports),
	}, nil
}

// RunConcurrentReads starts readers goroutines that each load
// readsPerReader random sections by date.
func (f *Fixture) RunConcurrentReads(ctx context.Context, readers, readsPerReader int) (*LatencyStats, error) {
	if len(f.Dates) == 0 {
		return nil, errors.New("fixture has no sections")
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		durations = make([]time.Duration, 0, readers*readsPerReader)
		errCount  int
	)

	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func(readerID int) {
			defer wg.Done()
			// #nosec G404 - deterministic date selection
			rng := rand.New(rand.NewSource(int64(readerID)))
			local := make([]time.Duration, 0, readsPerReader)
			failed := 0

			for i := 0; i < readsPerReader; i++ {
				date := f.Dates[rng.Intn(len(f.Dates))]
				start := time.Now()
				_, err := f.DB.GetSectionByDate(ctx, date)
				local = append(local, time.Since(start))
				if err != nil {
					failed++
				}
			}

			mu.Lock()
			durations = append(durations, local...)
			errCount += failed
			mu.Unlock()
		}(r)
	}
	wg.Wait()

	stats := computeLatencyStats(durations)
	stats.Errors = errCount
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

// VerifyNoRaceConditions runs concurrent section reads while a writer adds
// and removes tasks on the latest date. Readers check that every section
// they load is internally consistent.
func (f *Fixture) VerifyNoRaceConditions(readers int, duration time.Duration) error {
	if len(f.Dates) == 0 {
		return errors.New("fixture has no sections")
	}
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var wg sync.WaitGroup
	errorsChan := make(chan error, readers+1)
	latest := f.Dates[len(f.Dates)-1]

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ctx.Err() == nil; i++ {
			t := schema.NewTask(fmt.Sprintf("churn %d", i))
			if err := f.DB.InsertTask(ctx, latest, schema.ListSchedule, t); err != nil {
				if ctx.Err() == nil {
					errorsChan <- fmt.Errorf("writer insert failed: %w", err)
				}
				return
			}
			if err := f.DB.DeleteTask(ctx, t.ID); err != nil {
				if ctx.Err() == nil {
					errorsChan <- fmt.Errorf("writer delete failed: %w", err)
				}
				return
			}
		}
	}()

	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func(readerID int) {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-ctx.Done():
					return
				default:
				}

				date := f.Dates[(readerID+i)%len(f.Dates)]
				s, err := f.DB.GetSectionByDate(ctx, date)
				if err != nil {
					if ctx.Err() == nil {
						errorsChan <- fmt.Errorf("reader %d read failed: %w", readerID, err)
					}
					return
				}
				if err := checkSection(s, date); err != nil {
					errorsChan <- fmt.Errorf("reader %d: %w", readerID, err)
					return
				}
				time.Sleep(time.Millisecond)
			}
		}(r)
	}

	wg.Wait()
	close(errorsChan)
	for err := range errorsChan {
		if err != nil {
			return err
		}
	}
	return nil
}

func checkSection(s *schema.DailySection, date string) error {
	if s.Date != date {
		return fmt.Errorf("asked for %s, got section %s", date, s.Date)
	}
	seen := make(map[string]bool)
	for _, l := range schema.TaskLists {
		for _, t := range *s.List(l) {
			if t.ID == "" {
				return fmt.Errorf("section %s has a task with empty ID", date)
			}
			if seen[t.ID] {
				return fmt.Errorf("section %s lists task %s twice", date, t.ID)
			}
			seen[t.ID] = true
			if (l == schema.ListCompleted) != (t.Status == schema.StatusCompleted) {
				return fmt.Errorf("section %s: task %s with status %s in %s", date, t.ID, t.Status, l)
			}
		}
	}
	return nil
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return &LatencyStats{
		Min:          sorted[0],
		Max:          sorted[len(sorted)-1],
		Mean:         sum / time.Duration(len(durations)),
		P50:          sorted[len(sorted)*50/100],
		P95:          sorted[len(sorted)*95/100],
		P99:          sorted[len(sorted)*99/100],
		TotalQueries: len(durations),
		Durations:    sorted,
	}
}

// PrintStats writes the statistics under a title.
func (s *LatencyStats) PrintStats(w io.Writer, title string) {
	fmt.Fprintf(w, "%s:\n", title)
	fmt.Fprintf(w, "  Total:         %d\n", s.TotalQueries)
	fmt.Fprintf(w, "  Errors:        %d\n", s.Errors)
	fmt.Fprintf(w, "  Min:           %v\n", s.Min)
	fmt.Fprintf(w, "  P50 (Median):  %v\n", s.P50)
	fmt.Fprintf(w, "  Mean:          %v\n", s.Mean)
	fmt.Fprintf(w, "  P95:           %v\n", s.P95)
	fmt.Fprintf(w, "  P99:           %v\n", s.P99)
	fmt.Fprintf(w, "  Max:           %v\n", s.Max)
}

// GetStats returns statistics about the fixture.
func (f *Fixture) GetStats() map[string]interface{} {
	stats := map[string]interface{}{
		"sections":    len(f.Dates),
		"total_tasks": f.TotalTasks,
		"open_tasks":  f.OpenTasks,
		"bytes":       len(f.Markdown),
	}
	if f.TotalTasks > 0 {
		stats["open_percent"] = float64(f.OpenTasks) / float64(f.TotalTasks) * 100
	}
	return stats
}
