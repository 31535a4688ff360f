package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/snappy"

	"github.com/ironlog/ironlog/internal/db"
	"github.com/ironlog/ironlog/internal/schema"
	"github.com/ironlog/ironlog/internal/sync"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL + "/"
	cfg.Logger = log.New(io.Discard, "", 0)
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg)
}

func testSession() *schema.Session {
	s := &schema.Session{Date: "2024-01-01", SplitType: schema.SplitPPL, WorkoutType: "push"}
	s.ID = "S1"
	s.Init(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	return s
}

func TestPush_RequestAndResponse(t *testing.T) {
	var (
		gotPath, gotAuth, gotRequestID string
		gotBody                        map[string]map[string][]map[string]any
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.Write([]byte(`{"server_time":"2024-01-01T11:00:00.000Z","synced_ids":{"sessions":["S1"],"bogus":["x"]}}`))
	}, func(c *Config) {
		c.Token = func(context.Context) (string, error) { return "tok", nil }
	})

	resp, err := client.Push(context.Background(), sync.PushRequest{
		Payload: db.Snapshot{schema.TableSessions: {testSession()}},
	})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	if gotPath != "/rpc/sync_push" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotRequestID == "" {
		t.Error("missing X-Request-ID")
	}
	rows := gotBody["payload"]["sessions"]
	if len(rows) != 1 || rows[0]["id"] != "S1" || rows[0]["workout_type"] != "push" {
		t.Errorf("payload = %v", gotBody)
	}
	if _, leaked := rows[0]["is_dirty"]; leaked {
		t.Error("local-only is_dirty sent over the wire")
	}

	want := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	if resp.ServerTime == nil || !resp.ServerTime.Equal(want) {
		t.Errorf("ServerTime = %v, want %v", resp.ServerTime, want)
	}
	if ids := resp.SyncedIDs[schema.TableSessions]; len(ids) != 1 || ids[0] != "S1" {
		t.Errorf("SyncedIDs = %v", resp.SyncedIDs)
	}
	if len(resp.SyncedIDs) != 1 {
		t.Errorf("unknown table kept: %v", resp.SyncedIDs)
	}
}

func TestPush_MissingIDsAndTime(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}, nil)

	resp, err := client.Push(context.Background(), sync.PushRequest{Payload: db.Snapshot{}})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if resp.ServerTime != nil || resp.SyncedIDs != nil {
		t.Errorf("resp = %+v, want both nil", resp)
	}
}

func TestPush_Compressed(t *testing.T) {
	var decoded map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Encoding") != "snappy" {
			t.Errorf("Content-Encoding = %q", r.Header.Get("Content-Encoding"))
		}
		body, _ := io.ReadAll(r.Body)
		plain, err := snappy.Decode(nil, body)
		if err != nil {
			t.Errorf("body is not snappy: %v", err)
		}
		json.Unmarshal(plain, &decoded)
		w.Write([]byte(`{"serverTime":"2024-01-01T11:00:00Z","syncedIds":{"sessions":["S1"]}}`))
	}, func(c *Config) { c.Compress = true })

	resp, err := client.Push(context.Background(), sync.PushRequest{
		Payload: db.Snapshot{schema.TableSessions: {testSession()}},
	})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if _, ok := decoded["payload"]; !ok {
		t.Errorf("decoded body = %v", decoded)
	}
	if len(resp.SyncedIDs[schema.TableSessions]) != 1 {
		t.Errorf("camelCase synced ids not parsed: %v", resp.SyncedIDs)
	}
}

func TestPull_LenientTableKeys(t *testing.T) {
	var since map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rpc/sync_pull" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&since)
		w.Write([]byte(`{
			"server_time": "2024-01-02T00:00:00.000Z",
			"sessions": [{"id": "S1"}],
			"exerciseSets": [{"id": "E1"}, {"id": "E2"}],
			"weight_logs": [],
			"something_else": 42
		}`))
	}, nil)

	resp, err := client.Pull(context.Background(), db.CursorEpoch)
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if since["since_server_time"] != "1970-01-01T00:00:00.000Z" {
		t.Errorf("since_server_time = %q", since["since_server_time"])
	}
	if len(resp.Rows[schema.TableSessions]) != 1 || len(resp.Rows[schema.TableExerciseSets]) != 2 {
		t.Errorf("rows = %v", resp.Rows)
	}
	if resp.ServerTime == nil || resp.ServerTime.Day() != 2 {
		t.Errorf("ServerTime = %v", resp.ServerTime)
	}
}

func TestCall_StatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	}, nil)

	_, err := client.Pull(context.Background(), db.CursorEpoch)
	var status *StatusError
	if !errors.As(err, &status) {
		t.Fatalf("Pull() error = %v, want *StatusError", err)
	}
	if status.Code != http.StatusUnauthorized || status.Body != "token expired" {
		t.Errorf("StatusError = %+v", status)
	}
}

func TestHealth(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead || r.URL.Path != "/health" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}, nil)

	if err := client.Health(context.Background()); err != nil {
		t.Errorf("Health() = %v", err)
	}
	healthy.Store(false)
	if err := client.Health(context.Background()); err == nil {
		t.Error("expected error for 503")
	}
}
