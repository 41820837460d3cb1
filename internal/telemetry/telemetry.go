// Package telemetry carries analytics and audit events out of the core.
//
// A Sink receives named events with a bounded set of fields. Sinks are
// injected; the core never depends on a concrete backend. Failures inside a
// sink, including panics, are contained by Multi and Safe so they can never
// break a user-facing operation.
package telemetry

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Event names emitted by the assistant.
const (
	EventSearch         = "search"
	EventAskPastor      = "ask_pastor"
	EventGeneratePrayer = "generate_prayer"
	EventGenerateQuiz   = "generate_quiz"
	EventReadChapter    = "read_chapter"
	EventAppAction      = "app_action"
)

// Status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// MaxFieldRunes bounds Input and Output in audit events.
const MaxFieldRunes = 200

// Event is one analytics or audit record.
type Event struct {
	Name     string
	Action   string
	Status   string
	Input    string
	Output   string
	Err      string
	Duration time.Duration
	Flags    map[string]bool
}

// Sink consumes events.
type Sink interface {
	Track(ctx context.Context, ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event)

func (f SinkFunc) Track(ctx context.Context, ev Event) { f(ctx, ev) }

// Nop discards every event.
type Nop struct{}

func (Nop) Track(context.Context, Event) {}

// Multi fans an event out to every sink. A panicking sink is skipped.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

type multi []Sink

func (m multi) Track(ctx context.Context, ev Event) {
	for _, s := range m {
		Safe(s).Track(ctx, ev)
	}
}

// Safe wraps s so that a panic inside Track is logged and swallowed.
func Safe(s Sink) Sink {
	if s == nil {
		return Nop{}
	}
	if _, ok := s.(safe); ok {
		return s
	}
	return safe{inner: s}
}

type safe struct{ inner Sink }

func (s safe) Track(ctx context.Context, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Warn().Interface("panic", rec).Str("event", ev.Name).Msg("telemetry sink panicked")
		}
	}()
	s.inner.Track(ctx, ev)
}

// LogSink writes events as structured log lines.
type LogSink struct {
	Logger zerolog.Logger
}

func (s LogSink) Track(_ context.Context, ev Event) {
	e := s.Logger.Info()
	if ev.Status == StatusError {
		e = s.Logger.Warn()
	}
	e = e.Str("event", ev.Name).
		Str("action", ev.Action).
		Str("status", ev.Status).
		Str("input", Truncate(ev.Input, MaxFieldRunes)).
		Str("output", Truncate(ev.Output, MaxFieldRunes)).
		Dur("duration", ev.Duration)
	if ev.Err != "" {
		e = e.Str("error", ev.Err)
	}
	for k, v := range ev.Flags {
		e = e.Bool(k, v)
	}
	e.Msg("audit")
}

// Truncate shortens s to at most n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
