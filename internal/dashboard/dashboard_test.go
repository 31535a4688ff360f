package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/ironlog/ironlog/internal/scheduler"
	"github.com/ironlog/ironlog/internal/status"
	ironsync "github.com/ironlog/ironlog/internal/sync"
)

func startTestServer(t *testing.T, config *Config) *Server {
	t.Helper()

	if config == nil {
		config = &Config{}
	}
	config.Port = 0
	config.Logger = log.New(io.Discard, "", 0)

	server := NewServer(config)
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { server.Stop() })
	return server
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

// readUntil skips messages until one of type typ arrives.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, typ MessageType) Message {
	t.Helper()
	for {
		msg := readMessage(t, ctx, conn)
		if msg.Type == typ {
			return msg
		}
	}
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(&Config{Port: 0, Logger: log.New(io.Discard, "", 0)})

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if addr := server.GetAddr(); addr == "" {
		t.Fatal("Server address is empty")
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestWebSocket_StatusOnConnectAndTransitions(t *testing.T) {
	server := startTestServer(t, nil)
	handler := NewHandler(server, log.New(io.Discard, "", 0))

	pub := status.NewPublisher(status.Status{IsOnline: true, PendingChanges: 2})
	events := status.NewEvents()
	detach := handler.Attach(pub, events)
	defer detach()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeStatus {
		t.Fatalf("welcome type = %s, want %s", msg.Type, MessageTypeStatus)
	}
	var st status.Status
	if err := json.Unmarshal(msg.Data, &st); err != nil {
		t.Fatalf("Failed to unmarshal status: %v", err)
	}
	if st.PendingChanges != 2 || !st.IsOnline {
		t.Errorf("welcome status = %+v", st)
	}

	if count := server.ClientCount(); count != 1 {
		t.Errorf("Expected 1 client, got %d", count)
	}

	// The attach-time snapshot may still be in flight; skip until the
	// transition arrives.
	pub.Update(func(s *status.Status) { s.IsSyncing = true })
	for !st.IsSyncing {
		msg = readUntil(t, ctx, conn, MessageTypeStatus)
		if err := json.Unmarshal(msg.Data, &st); err != nil {
			t.Fatalf("Failed to unmarshal status: %v", err)
		}
	}

	events.PullApplied(7)
	msg = readUntil(t, ctx, conn, MessageTypePullApplied)
	var pulled PullAppliedData
	if err := json.Unmarshal(msg.Data, &pulled); err != nil {
		t.Fatalf("Failed to unmarshal pull data: %v", err)
	}
	if pulled.ChangedRows != 7 {
		t.Errorf("changed rows = %d, want 7", pulled.ChangedRows)
	}
}

func TestMultipleClients(t *testing.T) {
	server := startTestServer(t, nil)
	handler := NewHandler(server, log.New(io.Discard, "", 0))
	handler.OnStatus(status.Status{IsOnline: true})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	numClients := 3
	for i := 0; i < numClients; i++ {
		conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
		if err != nil {
			t.Fatalf("Failed to connect client %d: %v", i, err)
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		readMessage(t, ctx, conn)
	}

	if count := server.ClientCount(); count != numClients {
		t.Errorf("Expected %d clients, got %d", numClients, count)
	}
}

func TestHealth(t *testing.T) {
	server := startTestServer(t, nil)

	resp, err := http.Get("http://" + server.GetAddr() + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode health: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("health = %v", body)
	}
}

func TestSyncEndpoint(t *testing.T) {
	var calls atomic.Int32
	server := startTestServer(t, &Config{
		Sync: func(ctx context.Context) (scheduler.Outcome, error) {
			if calls.Add(1) == 2 {
				return scheduler.Outcome{Trigger: scheduler.TriggerManual},
					&ironsync.TransportError{Op: "push", Err: errors.New("boom")}
			}
			return scheduler.Outcome{
				Trigger: scheduler.TriggerManual,
				Push:    ironsync.PushResult{Pushed: 3, Accepted: 3},
				Pull:    ironsync.PullResult{Pulled: 1, Applied: 1},
			}, nil
		},
	})
	url := "http://" + server.GetAddr() + "/sync"

	if resp, err := http.Get(url); err != nil {
		t.Fatalf("GET /sync failed: %v", err)
	} else {
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("GET status = %d", resp.StatusCode)
		}
	}

	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("POST /sync failed: %v", err)
	}
	var result SyncResultData
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || result.Pushed != 3 || result.Applied != 1 || result.Trigger != "manual" {
		t.Errorf("status=%d result=%+v", resp.StatusCode, result)
	}

	resp, err = http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("POST /sync failed: %v", err)
	}
	result = SyncResultData{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway || result.ErrorKind != "transport" {
		t.Errorf("status=%d result=%+v", resp.StatusCode, result)
	}
}

func TestVisibilityEndpoint(t *testing.T) {
	var mu sync.Mutex
	var got []bool
	server := startTestServer(t, &Config{SetVisible: func(v bool) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	}})
	base := "http://" + server.GetAddr() + "/visibility"

	for _, q := range []string{"?visible=false", "?visible=true", "?visible=maybe"} {
		resp, err := http.Post(base+q, "text/plain", nil)
		if err != nil {
			t.Fatalf("POST failed: %v", err)
		}
		resp.Body.Close()
		if q == "?visible=maybe" && resp.StatusCode != http.StatusBadRequest {
			t.Errorf("bad value status = %d", resp.StatusCode)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] || !got[1] {
		t.Errorf("visibility calls = %v, want [false true]", got)
	}
}

func TestSyncEndpoint_Disabled(t *testing.T) {
	server := startTestServer(t, nil)
	resp, err := http.Post("http://"+server.GetAddr()+"/sync", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /sync failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", resp.StatusCode)
	}
}
