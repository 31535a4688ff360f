package dashboard

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/ironlog/ironlog/internal/scheduler"
	"github.com/ironlog/ironlog/internal/status"
	ironsync "github.com/ironlog/ironlog/internal/sync"
)

// PullAppliedData is the payload of a pull_applied message
type PullAppliedData struct {
	ChangedRows int `json:"changed_rows"`
}

// SyncResultData is the payload of a sync_result message
type SyncResultData struct {
	Trigger   string `json:"trigger"`
	Skipped   string `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Pushed    int    `json:"pushed"`
	Accepted  int    `json:"accepted"`
	Pulled    int    `json:"pulled"`
	Applied   int    `json:"applied"`
}

// Handler bridges the status publisher and event stream to the server.
type Handler struct {
	server *Server
	logger *log.Logger

	mu     sync.Mutex
	latest *status.Status
}

// NewHandler creates a new event handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}

	h := &Handler{server: server, logger: logger}
	server.SetWelcome(h.statusMessage)
	return h
}

// Attach subscribes to pub and events. The returned function detaches.
func (h *Handler) Attach(pub *status.Publisher, events *status.Events) (detach func()) {
	unsubStatus := pub.Subscribe(h.OnStatus)
	unsubEvents := func() {}
	if events != nil {
		unsubEvents = events.Subscribe(h.OnEvent)
	}
	return func() {
		unsubStatus()
		unsubEvents()
	}
}

// OnStatus records and broadcasts a status transition
func (h *Handler) OnStatus(st status.Status) {
	h.mu.Lock()
	h.latest = &st
	h.mu.Unlock()

	if msg, ok := h.statusMessage(); ok {
		h.server.Broadcast(msg)
	}
}

// OnEvent broadcasts one-off engine events
func (h *Handler) OnEvent(ev status.Event) {
	switch ev.Type {
	case status.EventPullApplied:
		h.logger.Printf("Pull applied: %d rows", ev.ChangedRows)
		dataJSON, err := json.Marshal(PullAppliedData{ChangedRows: ev.ChangedRows})
		if err != nil {
			h.logger.Printf("Failed to marshal pull data: %v", err)
			return
		}
		h.server.Broadcast(Message{
			Type:      MessageTypePullApplied,
			Timestamp: time.Now(),
			Data:      dataJSON,
		})
	}
}

// statusMessage renders the latest status, false before the first one.
func (h *Handler) statusMessage() (Message, bool) {
	h.mu.Lock()
	latest := h.latest
	h.mu.Unlock()
	if latest == nil {
		return Message{}, false
	}

	dataJSON, err := json.Marshal(latest)
	if err != nil {
		h.logger.Printf("Failed to marshal status: %v", err)
		return Message{}, false
	}
	return Message{
		Type:      MessageTypeStatus,
		Timestamp: time.Now(),
		Data:      dataJSON,
	}, true
}

// syncResultMessage summarizes a manual sync
func syncResultMessage(outcome scheduler.Outcome, err error) Message {
	data := SyncResultData{
		Trigger:  string(outcome.Trigger),
		Pushed:   outcome.Push.Pushed,
		Accepted: outcome.Push.Accepted,
		Pulled:   outcome.Pull.Pulled,
		Applied:  outcome.Pull.Applied,
	}
	if outcome.Skipped != nil {
		data.Skipped = outcome.Skipped.Error()
	}
	if err != nil {
		data.Error = err.Error()
		data.ErrorKind = ironsync.ErrorKind(err).String()
	}

	dataJSON, _ := json.Marshal(data)
	return Message{
		Type:      MessageTypeSyncResult,
		Timestamp: time.Now(),
		Data:      dataJSON,
	}
}
