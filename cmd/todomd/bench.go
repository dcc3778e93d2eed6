package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/todomd/todomd/internal/loadtest"
)

var benchCmd = &cobra.Command{
	Use:     "bench",
	GroupID: "maint",
	Short:   "Measure codec and index performance on a synthetic document",
	Long: `Generate a synthetic document, import it into a scratch index and measure:

  - parse, serialize and import time for the whole document
  - section read latency under concurrent readers (P50/P95/P99)
  - consistency of reads while a writer churns tasks

Examples:
  # One year of history, 15 tasks a day
  todomd bench --days 365 --tasks 15

  # Output as JSON
  todomd bench --json`,
	Args: cobra.NoArgs,
	Annotations: map[string]string{
		skipConfig: "true",
	},
	Run: runBench,
}

// benchReport is the --json output.
type benchReport struct {
	Fixture   map[string]interface{} `json:"fixture"`
	Parse     *loadtest.LatencyStats `json:"parse"`
	Serialize *loadtest.LatencyStats `json:"serialize"`
	Import    *loadtest.LatencyStats `json:"import"`
	Reads     *loadtest.LatencyStats `json:"reads"`
	RaceCheck string                 `json:"race_check"`
}

func init() {
	benchCmd.Flags().Int("days", 90, "Number of daily sections")
	benchCmd.Flags().Int("tasks", 12, "Tasks per section")
	benchCmd.Flags().Int("readers", 20, "Concurrent readers")
	benchCmd.Flags().Int("reads", 50, "Reads per reader")
	benchCmd.Flags().Int("iterations", 5, "Codec iterations")
	benchCmd.Flags().Duration("race", 2*time.Second, "Duration of the read/write consistency check (0 skips it)")
	benchCmd.Flags().Bool("json", false, "Output results as JSON")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) {
	days, _ := cmd.Flags().GetInt("days")
	tasks, _ := cmd.Flags().GetInt("tasks")
	readers, _ := cmd.Flags().GetInt("readers")
	reads, _ := cmd.Flags().GetInt("reads")
	iterations, _ := cmd.Flags().GetInt("iterations")
	race, _ := cmd.Flags().GetDuration("race")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	ctx := cmd.Context()

	dir, err := os.MkdirTemp("", "todomd-bench-")
	if err != nil {
		fatal("%v", err)
	}
	defer os.RemoveAll(dir)

	if !jsonOutput {
		fmt.Printf("Generating %d sections x %d tasks...\n", days, tasks)
	}
	f, err := loadtest.CreateFixture(ctx, filepath.Join(dir, "bench.db"), days, tasks)
	if err != nil {
		fatal("%v", err)
	}
	defer f.Close()

	codec, err := f.MeasureCodec(ctx, iterations)
	if err != nil {
		fatal("%v", err)
	}
	readStats, err := f.RunConcurrentReads(ctx, readers, reads)
	if err != nil {
		fatal("%v", err)
	}

	raceResult := "skipped"
	if race > 0 {
		raceResult = "ok"
		if err := f.VerifyNoRaceConditions(readers, race); err != nil {
			raceResult = err.Error()
		}
	}

	if jsonOutput {
		report := benchReport{
			Fixture:   f.GetStats(),
			Parse:     codec.Parse,
			Serialize: codec.Serialize,
			Import:    codec.Import,
			Reads:     readStats,
			RaceCheck: raceResult,
		}
		// Raw samples are too long for a report.
		for _, s := range []*loadtest.LatencyStats{report.Parse, report.Serialize, report.Import, report.Reads} {
			s.Durations = nil
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fatal("%v", err)
		}
		return
	}

	fmt.Printf("Document: %d sections, %d tasks (%d open), %d bytes\n\n", len(f.Dates), f.TotalTasks, f.OpenTasks, len(f.Markdown))
	codec.Parse.PrintStats(os.Stdout, "Parse")
	codec.Serialize.PrintStats(os.Stdout, "Serialize")
	codec.Import.PrintStats(os.Stdout, "Import")
	readStats.PrintStats(os.Stdout, fmt.Sprintf("Section reads (%d readers)", readers))
	fmt.Printf("\nConsistency check: %s\n", raceResult)
}
