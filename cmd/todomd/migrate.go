package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/todomd/todomd/internal/migrate"
)

var exportCmd = &cobra.Command{
	Use:     "export <file.jsonl>",
	GroupID: "maint",
	Short:   "Write a JSONL snapshot of every section",
	Long: `Write the whole index as a JSON Lines snapshot: a header record with the
project list, then one record per daily section. The document is imported
first so the snapshot matches it.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := openApp(ctx, cfg, openOptions{Connect: true})
		if err != nil {
			fatal("%v", err)
		}
		defer closeApp(ctx, a)

		result, err := migrate.Export(ctx, a.coord, args[0])
		if err != nil {
			fatal("%v", err)
		}
		stdout().Success("Exported %d sections, %d tasks to %s", result.Sections, result.Tasks, args[0])
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file.jsonl>",
	GroupID: "maint",
	Short:   "Restore a JSONL snapshot into the index and the document",
	Long: `Replace the index with a JSONL snapshot, then rewrite the document from
it. The current document is copied to <document>.backup.<timestamp> first
unless --no-backup is given.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		noBackup, _ := cmd.Flags().GetBool("no-backup")
		ctx := cmd.Context()

		if cfg.Document.Path != "" {
			result, err := migrate.Convert(ctx, migrate.ConvertOptions{
				FromJSONL:  args[0],
				ToMarkdown: cfg.Document.Path,
				DryRun:     dryRun,
				Backup:     !noBackup,
			})
			if err != nil {
				fatal("%v", err)
			}
			if result.BackupCreated != "" {
				fmt.Printf("   Backup: %s\n", result.BackupCreated)
			}
		}
		if dryRun {
			doc, err := migrate.FromJSONL(args[0])
			if err != nil {
				fatal("%v", err)
			}
			fmt.Printf("Would import %d sections\n", len(doc.Sections))
			return
		}

		a, err := openApp(ctx, cfg, openOptions{})
		if err != nil {
			fatal("%v", err)
		}
		defer closeApp(ctx, a)

		result, err := migrate.Import(ctx, a.store, args[0])
		if err != nil {
			fatal("%v", err)
		}
		stdout().Success("Imported %d sections, %d tasks, %d notes, %d blockers",
			result.Sections, result.Tasks, result.Notes, result.Blockers)
	},
}

var convertCmd = &cobra.Command{
	Use:     "convert <file.jsonl> <file.md>",
	GroupID: "maint",
	Short:   "Render a JSONL snapshot as a Markdown document",
	Args:    cobra.ExactArgs(2),
	Annotations: map[string]string{
		skipConfig: "true",
	},
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		backup, _ := cmd.Flags().GetBool("backup")

		result, err := migrate.Convert(cmd.Context(), migrate.ConvertOptions{
			FromJSONL:  args[0],
			ToMarkdown: args[1],
			DryRun:     dryRun,
			Backup:     backup,
		})
		if err != nil {
			fatal("%v", err)
		}
		if dryRun {
			fmt.Printf("Would write %d bytes (%d sections, %d tasks) to %s\n", result.BytesWritten, result.Sections, result.Tasks, args[1])
			return
		}
		if result.BackupCreated != "" {
			fmt.Printf("   Backup: %s\n", result.BackupCreated)
		}
		stdout().Success("Wrote %s (%d sections, %d tasks)", args[1], result.Sections, result.Tasks)
	},
}

func init() {
	importCmd.Flags().Bool("dry-run", false, "Validate the snapshot without writing")
	importCmd.Flags().Bool("no-backup", false, "Do not back up the document before rewriting it")

	convertCmd.Flags().Bool("dry-run", false, "Preview without writing")
	convertCmd.Flags().Bool("backup", true, "Back up an existing output file first")

	rootCmd.AddCommand(exportCmd, importCmd, convertCmd)
}
