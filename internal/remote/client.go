// Package remote is the HTTP client for the sync authority's RPC endpoints.
//
// Wire contract:
//
//	POST {base}/rpc/sync_push  {"payload": {table: [rows]}}
//	    -> {"server_time": "...", "synced_ids": {table: [ids]}}
//	POST {base}/rpc/sync_pull  {"since_server_time": "..."}
//	    -> {"server_time": "...", table: [rows], ...}
//	HEAD {base}/health
//
// Response table keys may be snake_case or camelCase.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"

	"github.com/ironlog/ironlog/internal/schema"
	"github.com/ironlog/ironlog/internal/sync"
)

// timeLayout is the wire format for instants.
const timeLayout = "2006-01-02T15:04:05.000Z"

// maxErrorBody caps how much of a failed response is kept in StatusError.
const maxErrorBody = 4096

// TokenSource returns the bearer token for a request. An empty token sends
// no Authorization header.
type TokenSource func(ctx context.Context) (string, error)

// Config holds configuration for the client.
type Config struct {
	// BaseURL of the authority, e.g. https://sync.example.com
	BaseURL string

	// Timeout per request (default: 30s)
	Timeout time.Duration

	// Compress request bodies with snappy (default: false)
	Compress bool

	// Token supplies the bearer token (default: none)
	Token TokenSource

	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client

	// Logger for transport events (default: stderr with [remote] prefix)
	Logger *log.Logger
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
		Logger:  log.New(os.Stderr, "[remote] ", log.LstdFlags),
	}
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("authority returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("authority returned %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

// Client implements sync.Remote over HTTP.
type Client struct {
	config Config
	http   *http.Client
	logger *log.Logger
}

var _ sync.Remote = (*Client)(nil)

// New creates a client.
func New(config Config) *Client {
	defaults := DefaultConfig()
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	return &Client{config: config, http: httpClient, logger: config.Logger}
}

// Push implements sync.Remote.
func (c *Client) Push(ctx context.Context, req sync.PushRequest) (*sync.PushResponse, error) {
	var raw struct {
		ServerTime      *string             `json:"server_time"`
		ServerTimeCamel *string             `json:"serverTime"`
		SyncedIDs       map[string][]string `json:"synced_ids"`
		SyncedIDsCamel  map[string][]string `json:"syncedIds"`
	}
	if err := c.call(ctx, "sync_push", req, &raw); err != nil {
		return nil, err
	}

	serverTime, err := parseServerTime(firstNonNil(raw.ServerTime, raw.ServerTimeCamel))
	if err != nil {
		return nil, err
	}

	resp := &sync.PushResponse{ServerTime: serverTime}
	ids := raw.SyncedIDs
	if ids == nil {
		ids = raw.SyncedIDsCamel
	}
	if ids != nil {
		resp.SyncedIDs = make(map[schema.Table][]string, len(ids))
		for key, list := range ids {
			table, err := schema.ParseTable(key)
			if err != nil {
				c.logger.Printf("Ignoring synced_ids for unknown table %q", key)
				continue
			}
			resp.SyncedIDs[table] = list
		}
	}
	return resp, nil
}

// Pull implements sync.Remote.
func (c *Client) Pull(ctx context.Context, since time.Time) (*sync.PullResponse, error) {
	body := map[string]string{"since_server_time": since.UTC().Format(timeLayout)}

	var raw map[string]json.RawMessage
	if err := c.call(ctx, "sync_pull", body, &raw); err != nil {
		return nil, err
	}

	resp := &sync.PullResponse{Rows: map[schema.Table][]json.RawMessage{}}
	for key, value := range raw {
		if key == "server_time" || key == "serverTime" {
			var s *string
			if err := json.Unmarshal(value, &s); err != nil {
				return nil, fmt.Errorf("invalid server_time: %w", err)
			}
			t, err := parseServerTime(s)
			if err != nil {
				return nil, err
			}
			resp.ServerTime = t
			continue
		}

		table, err := schema.ParseTable(key)
		if err != nil {
			continue
		}
		var rows []json.RawMessage
		if err := json.Unmarshal(value, &rows); err != nil {
			return nil, fmt.Errorf("invalid rows for %s: %w", table, err)
		}
		resp.Rows[table] = append(resp.Rows[table], rows...)
	}
	return resp, nil
}

// Health probes the authority. It succeeds on any 2xx response.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.config.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// call POSTs body as JSON to /rpc/{name} and decodes the reply into out.
func (c *Client) call(ctx context.Context, name string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", name, err)
	}
	if c.config.Compress {
		payload = snappy.Encode(nil, payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/rpc/"+name, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.Must(uuid.NewV7()).String())
	if c.config.Compress {
		req.Header.Set("Content-Encoding", "snappy")
	}
	if c.config.Token != nil {
		token, err := c.config.Token(ctx)
		if err != nil {
			return fmt.Errorf("failed to get token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", name, err)
	}
	return nil
}

func firstNonNil(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// parseServerTime returns nil for a missing or empty value so the caller
// falls back to its own clock.
func parseServerTime(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil, fmt.Errorf("invalid server_time %q: %w", *s, err)
	}
	t = schema.Normalize(t)
	return &t, nil
}
