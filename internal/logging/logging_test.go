package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogger_Prefix(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSink(&buf).Logger("scheduler")
	logger.Printf("sync cycle complete")

	if !strings.HasPrefix(buf.String(), "[scheduler] ") {
		t.Errorf("expected component prefix, got %q", buf.String())
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ironlog.log")

	sink, err := Open(Config{File: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	sink.Logger("daemon").Printf("started")
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "[daemon] ") || !strings.Contains(string(data), "started") {
		t.Errorf("unexpected log contents %q", data)
	}
}

func TestOpen_Stderr(t *testing.T) {
	sink, err := Open(Config{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if sink.Writer() != os.Stderr {
		t.Error("expected stderr sink")
	}
	if err := sink.Close(); err != nil {
		t.Errorf("Close on stderr sink failed: %v", err)
	}
}
