// Command todomd keeps a Markdown to-do document and its SQLite index in
// sync and edits both from the command line.
package main

import (
	"os"

	// Embedded zone data so Australia/Sydney resolves on hosts without it.
	_ "time/tzdata"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
