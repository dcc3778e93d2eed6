package coordinator_test

import (
	"context"
	"fmt"
	"log"

	"github.com/todomd/todomd/internal/coordinator"
	"github.com/todomd/todomd/internal/db"
	"github.com/todomd/todomd/internal/document"
	"github.com/todomd/todomd/internal/schema"
)

// This example demonstrates a one-shot edit: import the document, add a
// task and write it back.
// Note: This is for documentation only and won't run as a test.
func ExampleNew() {
	store, err := db.Open(".todomd/index.db")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	c, err := coordinator.New(store, document.FilePicker{Path: "ToDo.md"}, nil)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		log.Fatal(err)
	}

	task, err := c.AddTask(ctx, coordinator.TaskInput{Content: "Send invoice #Work"}, schema.ListSchedule)
	if err != nil {
		log.Fatal(err)
	}

	// Disconnect flushes the pending write-back.
	if err := c.Disconnect(ctx); err != nil {
		log.Fatal(err)
	}
	fmt.Println("Added", task.ID)
}

// This example demonstrates running the coordinator in the background and
// following its events.
func ExampleCoordinator_Run() {
	store, err := db.Open(".todomd/index.db")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	c, err := coordinator.New(store, document.FilePicker{Path: "ToDo.md", Create: true}, nil)
	if err != nil {
		log.Fatal(err)
	}

	unsubscribe := c.Subscribe(func(ev coordinator.Event) {
		switch ev.Type {
		case coordinator.EventExternalOverwrite:
			log.Printf("local edits lost to an external change of %v", ev.Dates)
		case coordinator.EventSyncError:
			log.Printf("write-back failed, will retry: %s", ev.Error)
		}
	})
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		log.Printf("running without a document: %v", err)
	}
	if err := c.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
