package dashboard

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/todomd/todomd/internal/coordinator"
)

// TaskUpdateData contains task change information
type TaskUpdateData struct {
	TaskID   string `json:"task_id"`
	Action   string `json:"action"` // added, updated, completed, deleted
	Date     string `json:"date"`
	Status   string `json:"status,omitempty"`
	Content  string `json:"content,omitempty"`
	Project  string `json:"project,omitempty"`
	Assignee string `json:"assignee,omitempty"`
	DueDate  string `json:"due_date,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// SectionUpdateData reports a note or blocker added to a section.
type SectionUpdateData struct {
	Date string `json:"date"`
	Kind string `json:"kind"`
}

// SyncData reports a write-back attempt.
type SyncData struct {
	Document string `json:"document,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ExternalChangeData reports an imported external edit.
type ExternalChangeData struct {
	Dates     []string `json:"dates"`
	Clobbered bool     `json:"clobbered"`
}

// RolloverData reports a completed rollover.
type RolloverData struct {
	Date    string `json:"date"`
	Summary string `json:"summary"`
}

// ConnectionData reports the document being bound or released.
type ConnectionData struct {
	Connected bool   `json:"connected"`
	Document  string `json:"document,omitempty"`
}

// StatsData contains running counters since the handler started
type StatsData struct {
	Added           int       `json:"added"`
	Updated         int       `json:"updated"`
	Completed       int       `json:"completed"`
	Deleted         int       `json:"deleted"`
	Syncs           int       `json:"syncs"`
	SyncErrors      int       `json:"sync_errors"`
	ExternalChanges int       `json:"external_changes"`
	Clobbers        int       `json:"clobbers"`
	Rollovers       int       `json:"rollovers"`
	LastSync        time.Time `json:"last_sync,omitzero"`
}

// Subscriber is anything that publishes coordinator events.
type Subscriber interface {
	Subscribe(fn func(coordinator.Event)) func()
}

// Handler turns coordinator events into dashboard messages.
type Handler struct {
	server *Server
	logger *log.Logger

	mu    sync.Mutex
	stats StatsData
}

// NewHandler creates a handler broadcasting through server. New clients
// are greeted with the handler's current stats.
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = server.logger
	}
	h := &Handler{server: server, logger: logger}
	server.welcome = h.statsMessage
	return h
}

// Attach subscribes to src and returns the unsubscribe function.
func (h *Handler) Attach(src Subscriber) func() {
	return src.Subscribe(h.OnEvent)
}

// OnEvent handles one coordinator event.
func (h *Handler) OnEvent(ev coordinator.Event) {
	var (
		typ  MessageType
		data interface{}
	)

	h.mu.Lock()
	switch ev.Type {
	case coordinator.EventTaskChanged:
		typ = MessageTypeTaskUpdate
		d := TaskUpdateData{Action: string(ev.Action), Date: ev.Date}
		if t := ev.Task; t != nil {
			d.TaskID = t.ID
			d.Status = string(t.Status)
			d.Content = t.Content
			d.Project = t.Project
			d.Assignee = t.Assignee
			d.DueDate = t.DueDate
			d.Priority = string(t.Priority)
		}
		switch ev.Action {
		case coordinator.ActionAdded:
			h.stats.Added++
		case coordinator.ActionCompleted:
			h.stats.Completed++
		case coordinator.ActionDeleted:
			h.stats.Deleted++
		default:
			h.stats.Updated++
		}
		data = d

	case coordinator.EventSectionChanged:
		typ = MessageTypeSectionUpdate
		data = SectionUpdateData{Date: ev.Date, Kind: ev.Summary}

	case coordinator.EventSyncComplete:
		typ = MessageTypeSyncComplete
		h.stats.Syncs++
		h.stats.LastSync = ev.Time
		data = SyncData{Document: ev.Summary}

	case coordinator.EventSyncError:
		typ = MessageTypeSyncError
		h.stats.SyncErrors++
		data = SyncData{Error: ev.Error}

	case coordinator.EventExternalChange, coordinator.EventExternalOverwrite:
		typ = MessageTypeExternalChange
		h.stats.ExternalChanges++
		if ev.Clobbered {
			h.stats.Clobbers++
		}
		dates := ev.Dates
		if dates == nil {
			dates = []string{}
		}
		data = ExternalChangeData{Dates: dates, Clobbered: ev.Clobbered}

	case coordinator.EventRollover:
		typ = MessageTypeRollover
		h.stats.Rollovers++
		data = RolloverData{Date: ev.Date, Summary: ev.Summary}

	case coordinator.EventConnected, coordinator.EventDisconnected:
		typ = MessageTypeConnection
		data = ConnectionData{Connected: ev.Type == coordinator.EventConnected, Document: ev.Summary}

	default:
		h.mu.Unlock()
		h.logger.Printf("Ignoring unknown event %q", ev.Type)
		return
	}
	h.mu.Unlock()

	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}
	h.server.Broadcast(Message{Type: typ, Timestamp: ev.Time, Data: dataJSON})

	if typ == MessageTypeTaskUpdate || typ == MessageTypeRollover {
		h.server.Broadcast(h.statsMessage())
	}
}

func (h *Handler) statsMessage() Message {
	stats := h.GetStats()
	dataJSON, err := json.Marshal(stats)
	if err != nil {
		h.logger.Printf("Failed to marshal stats: %v", err)
	}
	return Message{Type: MessageTypeStats, Timestamp: time.Now(), Data: dataJSON}
}

// GetStats returns the current statistics
func (h *Handler) GetStats() StatsData {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}
