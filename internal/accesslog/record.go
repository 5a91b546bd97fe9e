// Package accesslog defines the structured log contract between the proxy
// and the watcher. The proxy appends one JSON object per line; the watcher
// parses them back. This file is the only coupling between the two.
package accesslog

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Record is one request outcome as written to the access log
type Record struct {
	Timestamp            time.Time `json:"timestamp"`
	ClientIP             string    `json:"client_ip"`
	Method               string    `json:"method"`
	URI                  string    `json:"uri"`
	Status               int       `json:"status"`
	Pool                 string    `json:"pool"`    // Serving pool, empty if unresolved
	Release              string    `json:"release"` // Release id reported by the backend
	UpstreamStatus       string    `json:"upstream_status"`
	UpstreamAddr         string    `json:"upstream_addr"`
	RequestTime          float64   `json:"request_time"`           // Total time, seconds
	UpstreamResponseTime float64   `json:"upstream_response_time"` // Final attempt time, seconds
}

// Succeeded reports whether the outcome classifies as a success (2xx)
func (r Record) Succeeded() bool {
	return r.Status >= 200 && r.Status < 300
}

// ResolvedPool returns the normalized serving pool, or "" when the record
// carries no recognizable pool (both upstreams failed, or a foreign value)
func (r Record) ResolvedPool() string {
	pool := strings.ToLower(strings.TrimSpace(r.Pool))
	if pool == "blue" || pool == "green" {
		return pool
	}
	return ""
}

// ErrMalformed wraps parse failures so callers can count them as a soft
// metric instead of treating them as fatal
type ErrMalformed struct {
	Line string
	Err  error
}

func (e *ErrMalformed) Error() string {
	return fmt.Sprintf("malformed access log line: %v", e.Err)
}

func (e *ErrMalformed) Unwrap() error { return e.Err }

// ParseLine decodes a single access log line
func ParseLine(line string) (Record, error) {
	var rec Record
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return rec, &ErrMalformed{Line: line, Err: fmt.Errorf("empty line")}
	}
	if err := json.Unmarshal([]byte(trimmed), &rec); err != nil {
		return rec, &ErrMalformed{Line: line, Err: err}
	}
	return rec, nil
}
