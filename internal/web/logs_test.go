package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var timeZero time.Time

func TestLogBuffer_PartialLines(t *testing.T) {
	b := NewLogBuffer(10)
	_, _ = b.Write([]byte("one\ntw"))
	_, _ = b.Write([]byte("o\r\n\nthr"))

	lines, _ := b.Snapshot(0)
	if strings.Join(lines, "|") != "one|two" {
		t.Fatalf("lines=%q", lines)
	}
	_, _ = b.Write([]byte("ee\n"))
	lines, _ = b.Snapshot(0)
	if len(lines) != 3 || lines[2] != "three" {
		t.Fatalf("lines=%q", lines)
	}
}

func TestLogBuffer_DropsOldest(t *testing.T) {
	b := NewLogBuffer(2)
	_, _ = b.Write([]byte("a\nb\nc\n"))
	lines, dropped := b.Snapshot(5)
	if dropped != 1 || strings.Join(lines, "|") != "b|c" {
		t.Fatalf("lines=%q dropped=%d", lines, dropped)
	}
	lines, _ = b.Snapshot(1)
	if len(lines) != 1 || lines[0] != "c" {
		t.Fatalf("tail=%q", lines)
	}
}

func TestAPILogs(t *testing.T) {
	b := NewLogBuffer(10)
	_, _ = b.Write([]byte("level=INFO msg=status\n"))
	ts := httptest.NewServer(Handler(Deps{Logs: b}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/logs?tail=5")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var out LogsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Lines) != 1 || out.Lines[0] != "level=INFO msg=status" {
		t.Fatalf("lines=%q", out.Lines)
	}

	bad, err := http.Get(ts.URL + "/api/logs?tail=0")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("code=%d", bad.StatusCode)
	}

	txt, err := http.Get(ts.URL + "/api/logs?format=text")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer txt.Body.Close()
	if ct := txt.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type=%q", ct)
	}
}
