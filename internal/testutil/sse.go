package testutil

import (
	"bufio"
	"strings"
	"testing"
)

// SSEEvent represents a parsed Server-Sent Event.
type SSEEvent struct {
	Type string // event: value
	Data string // data: value (multi-line joined with \n)
}

// ParseSSEEvents parses an SSE stream into structured events.
//
// Follows the W3C spec: multiple "data:" lines join with newline, an empty
// line terminates an event, data before event defaults the type to
// "message", and ":" comment lines are ignored.
func ParseSSEEvents(t *testing.T, body string) []SSEEvent {
	t.Helper()

	var events []SSEEvent
	scanner := bufio.NewScanner(strings.NewReader(body))

	var current SSEEvent
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.Type = strings.TrimPrefix(line, "event: ")

		case strings.HasPrefix(line, "data: "):
			if current.Type == "" {
				current.Type = "message"
			}
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))

		case line == "":
			if current.Type != "" {
				current.Data = strings.Join(dataLines, "\n")
				events = append(events, current)
				current = SSEEvent{}
				dataLines = nil
			}

		default:
			if !strings.HasPrefix(line, ":") {
				t.Fatalf("unexpected SSE line: %q", line)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("SSE scan error: %v", err)
	}
	if current.Type != "" {
		t.Fatalf("SSE stream ended without terminating event %q", current.Type)
	}

	return events
}

// FindEvent finds the first event of a given type. Returns nil if absent.
func FindEvent(events []SSEEvent, eventType string) *SSEEvent {
	for i := range events {
		if events[i].Type == eventType {
			return &events[i]
		}
	}
	return nil
}

// FindAllEvents finds all events of a given type.
func FindAllEvents(events []SSEEvent, eventType string) []SSEEvent {
	var found []SSEEvent
	for _, e := range events {
		if e.Type == eventType {
			found = append(found, e)
		}
	}
	return found
}
