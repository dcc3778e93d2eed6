// Package coordinator keeps the SQLite index and the ToDo.md document in sync.
//
// # Stores
//
// The index is always written first and is the only store reads are served
// from. The document is a synchronization target: on Connect it is parsed
// and overwrites the index, and afterwards local mutations are written back
// to it after a trailing debounce.
//
// # States
//
//	disconnected  no document; the index is authoritative
//	idle          document connected, index and document agree
//	dirty         a local mutation is waiting for write-back
//	syncing       write-back in flight
//
// # External edits
//
// A periodic check (and, optionally, a filesystem watch) compares the
// document's content hash with the last one observed. A change is imported
// wholesale: last external write wins, with no field-level merge. When this
// discards a mutation that had not been written back yet, the coordinator
// logs a warning and emits EventExternalOverwrite with Clobbered set, so the
// race is observable instead of silent.
//
// # Rollover
//
// On each day boundary the coordinator carries unfinished tasks from the
// latest earlier section into today's. Originals are removed in the same
// transaction and the date is recorded, so every task moves forward exactly
// once per transition no matter how often Rollover is invoked.
//
// # Usage
//
//	store, _ := db.Open("~/.todomd/index.db")
//	c, _ := coordinator.New(store, document.FilePicker{Path: "ToDo.md"}, nil)
//	if err := c.Connect(ctx); err != nil {
//	    // still usable in db-only mode
//	}
//	task, _ := c.AddTask(ctx, coordinator.TaskInput{Content: "Ship #Work !P1"}, schema.ListPriorities)
//	_ = c.CompleteTask(ctx, task.ID)
//	_ = c.Run(ctx) // background checks until ctx is done
package coordinator
