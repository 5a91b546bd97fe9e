package accesslog

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestWriterOneLinePerRecord tests that each record lands as a single line
func TestWriterOneLinePerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")

	w, err := OpenWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	recs := []Record{
		{Timestamp: time.Now().UTC(), Method: "GET", URI: "/", Status: 200, Pool: "blue", Release: "v1"},
		{Timestamp: time.Now().UTC(), Method: "GET", URI: "/api", Status: 502, Pool: ""},
	}
	for _, rec := range recs {
		if err := w.Write(rec); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}

	parsed, err := ParseLine(lines[0])
	if err != nil {
		t.Fatalf("ParseLine failed: %v", err)
	}
	if parsed.Status != 200 || parsed.Pool != "blue" {
		t.Errorf("Round trip mismatch: %+v", parsed)
	}
}

// TestParseLineMalformed tests that garbage yields ErrMalformed
func TestParseLineMalformed(t *testing.T) {
	for _, line := range []string{"", "   ", "{truncated", "not json at all"} {
		_, err := ParseLine(line)
		if err == nil {
			t.Errorf("Expected error for %q", line)
			continue
		}
		var malformed *ErrMalformed
		if !errors.As(err, &malformed) {
			t.Errorf("Expected ErrMalformed for %q, got %v", line, err)
		}
	}
}

// TestResolvedPool tests pool normalization
func TestResolvedPool(t *testing.T) {
	cases := []struct {
		pool string
		want string
	}{
		{"blue", "blue"},
		{"GREEN", "green"},
		{" blue ", "blue"},
		{"", ""},
		{"purple", ""},
	}
	for _, tc := range cases {
		rec := Record{Pool: tc.pool}
		if got := rec.ResolvedPool(); got != tc.want {
			t.Errorf("ResolvedPool(%q) = %q, want %q", tc.pool, got, tc.want)
		}
	}
}

// TestSucceeded tests status classification
func TestSucceeded(t *testing.T) {
	for status, want := range map[int]bool{200: true, 204: true, 299: true, 301: false, 404: false, 502: false, 0: false} {
		rec := Record{Status: status}
		if rec.Succeeded() != want {
			t.Errorf("Succeeded() for status %d = %v, want %v", status, rec.Succeeded(), want)
		}
	}
}
