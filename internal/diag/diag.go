// Package diag carries discrete diagnostic events from the engine to
// whatever surface wants them. Collaborators receive events, never engine
// internals.
package diag

import (
	"log/slog"

	"github.com/whharris917/atlas-sub000/internal/pyast"
)

type Kind string

const (
	UnresolvedAnnotation Kind = "unresolved_annotation"
	MissingField         Kind = "missing_field"
	AmbiguousInheritance Kind = "ambiguous_inheritance"
)

type Event struct {
	Kind     Kind
	Module   string
	Symbol   string
	Detail   string
	Location pyast.Location
}

type Sink interface {
	Emit(Event)
}

type nopSink struct{}

func (nopSink) Emit(Event) {}

func Nop() Sink { return nopSink{} }

// LogSink writes events through slog at warn level.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Emit(ev Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("diagnostic",
		"kind", string(ev.Kind),
		"module", ev.Module,
		"symbol", ev.Symbol,
		"detail", ev.Detail,
		"file", ev.Location.File,
		"line", ev.Location.Line,
	)
}

// Collector buffers events, mainly for tests and report attachments.
type Collector struct {
	Events []Event
}

func (c *Collector) Emit(ev Event) {
	c.Events = append(c.Events, ev)
}
