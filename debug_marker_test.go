package astral

import (
	"fmt"
	"sync"
	"testing"
)

type recordedMarker struct {
	begin bool
	label string
}

type recordingSink struct {
	calls []recordedMarker
}

func (s *recordingSink) BeginMarker(r, g, b uint8, label string) {
	s.calls = append(s.calls, recordedMarker{begin: true, label: label})
}

func (s *recordingSink) EndMarker() {
	s.calls = append(s.calls, recordedMarker{begin: false})
}

// recordingLogger captures Errorf calls. Safe for concurrent use so the
// shader watcher tests can poll it.
type recordingLogger struct {
	nopLogger
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Errorf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

func TestMarkerGuard_BalancedNesting(t *testing.T) {
	sink := &recordingSink{}
	logger := &recordingLogger{}
	guard := NewMarkerGuard(sink, logger)

	guard.BeginMarker(255, 0, 0, "frame")
	guard.BeginMarker(0, 255, 0, "pass")
	guard.EndMarker()
	guard.EndMarker()

	if !guard.CheckBalanced() {
		t.Errorf("Expected balanced stack")
	}
	if len(logger.errors) != 0 {
		t.Errorf("Expected no errors, got %v", logger.errors)
	}
	if len(sink.calls) != 4 {
		t.Fatalf("Expected 4 sink calls, got %d", len(sink.calls))
	}
	if sink.calls[0].label != "frame" || sink.calls[1].label != "pass" {
		t.Errorf("Labels recorded out of order: %v", sink.calls)
	}
}

func TestMarkerGuard_UnmatchedEnd(t *testing.T) {
	sink := &recordingSink{}
	logger := &recordingLogger{}
	guard := NewMarkerGuard(sink, logger)

	// Programming error: no open scope. Must be flagged and
	// swallowed, never forwarded to the sink.
	guard.EndMarker()

	if len(logger.errors) != 1 {
		t.Fatalf("Expected 1 flagged error, got %v", logger.errors)
	}
	if len(sink.calls) != 0 {
		t.Errorf("Unmatched end must not reach the sink, got %v", sink.calls)
	}
	if guard.Depth() != 0 {
		t.Errorf("Expected depth 0, got %d", guard.Depth())
	}
}

func TestMarkerGuard_LeakedScope(t *testing.T) {
	logger := &recordingLogger{}
	guard := NewMarkerGuard(NopMarkerSink{}, logger)

	guard.BeginMarker(0, 0, 255, "leaked")
	if guard.CheckBalanced() {
		t.Errorf("Expected CheckBalanced to report the open scope")
	}
	if len(logger.errors) != 1 {
		t.Errorf("Expected 1 flagged error, got %v", logger.errors)
	}
}

func TestMarkerScope_EndsOnPanic(t *testing.T) {
	sink := &recordingSink{}
	func() {
		defer func() { recover() }()
		MarkerScope(sink, 1, 2, 3, "scoped", func() {
			panic("inside")
		})
	}()

	if len(sink.calls) != 2 || sink.calls[1].begin {
		t.Errorf("Expected end call after panic, got %v", sink.calls)
	}
}

func TestWideLabel(t *testing.T) {
	wide := WideLabel("GPU")
	expected := []uint16{'G', 'P', 'U', 0}
	if len(wide) != len(expected) {
		t.Fatalf("Expected %d code units, got %d", len(expected), len(wide))
	}
	for i := range expected {
		if wide[i] != expected[i] {
			t.Errorf("Code unit %d: expected %d, got %d", i, expected[i], wide[i])
		}
	}
	// Non-BMP runes encode as surrogate pairs, still null-terminated.
	wide = WideLabel("𝔊")
	if len(wide) != 3 || wide[2] != 0 {
		t.Errorf("Expected surrogate pair plus terminator, got %v", wide)
	}
}
