package astral

import (
	"unicode/utf16"

	"github.com/cogentcore/webgpu/wgpu"
)

// MarkerSink receives named, colored instrumentation scopes around
// command recording. Sinks are best-effort: they must never block,
// never fail the enclosing render operation, and never retain the
// label beyond the call. Begin/End must be strictly nested per
// recording context, and a context's sink must only be driven from
// the single goroutine recording into it.
type MarkerSink interface {
	BeginMarker(r, g, b uint8, label string)
	EndMarker()
}

// NopMarkerSink is the sink to install when no profiling tool is
// attached; call sites stay unconditional.
type NopMarkerSink struct{}

func (NopMarkerSink) BeginMarker(r, g, b uint8, label string) {}
func (NopMarkerSink) EndMarker()                              {}

// EncoderMarkerSink forwards marker scopes to a wgpu command encoder's
// debug groups. The wgpu API carries no scope color, so the color is
// dropped; it stays in the MarkerSink signature for tools that do use
// it.
type EncoderMarkerSink struct {
	Encoder *wgpu.CommandEncoder
}

func (s EncoderMarkerSink) BeginMarker(r, g, b uint8, label string) {
	s.Encoder.PushDebugGroup(label)
}

func (s EncoderMarkerSink) EndMarker() {
	s.Encoder.PopDebugGroup()
}

// MarkerGuard enforces stack discipline over any sink. An EndMarker
// with no open scope is a programming error: it is reported through
// the logger and swallowed, never propagated into the caller's
// control flow. One guard per recording context.
type MarkerGuard struct {
	sink   MarkerSink
	logger Logger
	depth  int
	labels []string
}

func NewMarkerGuard(sink MarkerSink, logger Logger) *MarkerGuard {
	if sink == nil {
		sink = NopMarkerSink{}
	}
	if logger == nil {
		logger = NewDefaultLogger("astral", false)
	}
	return &MarkerGuard{sink: sink, logger: logger}
}

func (g *MarkerGuard) BeginMarker(r, gr, b uint8, label string) {
	g.depth++
	g.labels = append(g.labels, label)
	g.sink.BeginMarker(r, gr, b, label)
}

func (g *MarkerGuard) EndMarker() {
	if g.depth == 0 {
		g.logger.Errorf("EndMarker without a matching BeginMarker")
		return
	}
	g.depth--
	g.labels = g.labels[:len(g.labels)-1]
	g.sink.EndMarker()
}

// Depth is the number of currently open scopes.
func (g *MarkerGuard) Depth() int {
	return g.depth
}

// CheckBalanced reports scopes left open at the end of recording.
// Returns true when the stack is balanced.
func (g *MarkerGuard) CheckBalanced() bool {
	if g.depth == 0 {
		return true
	}
	g.logger.Errorf("%d marker scope(s) left open, innermost %q", g.depth, g.labels[len(g.labels)-1])
	return false
}

// MarkerScope runs fn inside a begin/end pair. End runs even when fn
// panics, keeping the profiling tool's stack consistent.
func MarkerScope(sink MarkerSink, r, g, b uint8, label string, fn func()) {
	sink.BeginMarker(r, g, b, label)
	defer sink.EndMarker()
	fn()
}

// WideLabel converts a marker label to a null-terminated UTF-16
// string for PIX-style native tools. The caller owns the returned
// slice; native calls must not retain the pointer past the call.
func WideLabel(label string) []uint16 {
	encoded := utf16.Encode([]rune(label))
	return append(encoded, 0)
}
