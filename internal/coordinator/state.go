package coordinator

import (
	"time"

	"github.com/todomd/todomd/internal/schema"
)

// State is the synchronization state of the coordinator.
type State int

const (
	StateDisconnected State = iota
	StateIdle
	StateDirty
	StateSyncing
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateIdle:
		return "connected-idle"
	case StateDirty:
		return "connected-dirty"
	case StateSyncing:
		return "syncing"
	default:
		return "unknown"
	}
}

// Mode says which stores are live.
type Mode string

const (
	// ModeHybrid: document connected, persistent index.
	ModeHybrid Mode = "hybrid"
	// ModeDBOnly: no document; the index is the only store.
	ModeDBOnly Mode = "db-only"
	// ModeFileOnly: document connected, index held in memory only.
	ModeFileOnly Mode = "file-only"
)

// EventType identifies what happened.
type EventType string

const (
	EventConnected         EventType = "connected"
	EventDisconnected      EventType = "disconnected"
	EventTaskChanged       EventType = "task_update"
	EventSectionChanged    EventType = "section_update"
	EventSyncComplete      EventType = "sync_complete"
	EventSyncError         EventType = "sync_error"
	EventExternalChange    EventType = "external_change"
	EventExternalOverwrite EventType = "external_overwrite"
	EventRollover          EventType = "rollover"
)

// Action qualifies EventTaskChanged.
type Action string

const (
	ActionAdded     Action = "added"
	ActionUpdated   Action = "updated"
	ActionCompleted Action = "completed"
	ActionDeleted   Action = "deleted"
)

// Event is delivered to subscribers after the change it describes is
// durable in the index.
type Event struct {
	Type EventType `json:"type"`
	Time time.Time `json:"time"`

	Date   string       `json:"date,omitempty"`
	Dates  []string     `json:"dates,omitempty"`
	Action Action       `json:"action,omitempty"`
	Task   *schema.Task `json:"task,omitempty"`

	// Clobbered is set when an external edit discarded local changes that
	// had not been written back.
	Clobbered bool `json:"clobbered,omitempty"`

	Summary string `json:"summary,omitempty"`
	Err     error  `json:"-"`
	Error   string `json:"error,omitempty"`
}
