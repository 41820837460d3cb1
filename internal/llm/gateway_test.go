package llm

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"
	"google.golang.org/genai"

	"github.com/tbourn/bibleai/internal/telemetry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeModel struct {
	mu      sync.Mutex
	calls   int
	results []result
	chunks  []string
	err     error
}

type result struct {
	text string
	err  error
}

func (f *fakeModel) Generate(_ context.Context, _ Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.results[f.calls]
	f.calls++
	return r.text, r.err
}

func (f *fakeModel) Stream(ctx context.Context, _ Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, c := range f.chunks {
			if ctx.Err() != nil {
				return
			}
			if !yield(c, nil) {
				return
			}
		}
		if f.err != nil {
			yield("", f.err)
		}
	}
}

type recordingSleep struct {
	waits []time.Duration
	err   error
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return r.err
}

type captureSink struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (c *captureSink) Track(_ context.Context, ev telemetry.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func TestGenerate_RetriesOnceThenSucceeds(t *testing.T) {
	m := &fakeModel{results: []result{{err: errors.New("503")}, {text: "ok"}}}
	sl := &recordingSleep{}
	sink := &captureSink{}
	g := NewGateway(m, WithSleep(sl.sleep), WithSink(sink), WithAuditLogger(zerolog.Nop()))

	got, err := g.Generate(context.Background(), Request{Action: telemetry.EventSearch, Prompt: "grace"})
	if err != nil || got != "ok" {
		t.Fatalf("got %q, %v", got, err)
	}
	if m.calls != 2 {
		t.Fatalf("calls = %d; want 2", m.calls)
	}
	if len(sl.waits) != 1 || sl.waits[0] != DefaultRetryDelay {
		t.Fatalf("waits = %v; want one %v", sl.waits, DefaultRetryDelay)
	}
	if len(sink.events) != 1 || sink.events[0].Status != telemetry.StatusSuccess || sink.events[0].Name != telemetry.EventSearch {
		t.Fatalf("events = %+v", sink.events)
	}
}

func TestGenerate_SecondErrorReturnedUnchanged(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")
	m := &fakeModel{results: []result{{err: first}, {err: second}}}
	sl := &recordingSleep{}
	sink := &captureSink{}
	g := NewGateway(m, WithSleep(sl.sleep), WithSink(sink), WithAuditLogger(zerolog.Nop()))

	_, err := g.Generate(context.Background(), Request{Action: "ask_pastor"})
	if err != second {
		t.Fatalf("err = %v; want the second error itself", err)
	}
	if m.calls != 2 || len(sl.waits) != 1 {
		t.Fatalf("calls=%d waits=%d", m.calls, len(sl.waits))
	}
	if sink.events[0].Status != telemetry.StatusError || sink.events[0].Err != "second" {
		t.Fatalf("event = %+v", sink.events[0])
	}
}

func TestGenerate_CancelledDuringWait(t *testing.T) {
	m := &fakeModel{results: []result{{err: errors.New("boom")}, {text: "never"}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := NewGateway(m, WithRetryDelay(time.Hour), WithAuditLogger(zerolog.Nop()))

	_, err := g.Generate(ctx, Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
	if m.calls != 1 {
		t.Fatalf("calls = %d; retry must not run after cancellation", m.calls)
	}
}

func TestGenerate_NoRetryOnSuccess(t *testing.T) {
	m := &fakeModel{results: []result{{text: "fine"}}}
	sl := &recordingSleep{}
	g := NewGateway(m, WithSleep(sl.sleep), WithAuditLogger(zerolog.Nop()))
	if _, err := g.Generate(context.Background(), Request{}); err != nil {
		t.Fatal(err)
	}
	if len(sl.waits) != 0 || m.calls != 1 {
		t.Fatalf("calls=%d waits=%v", m.calls, sl.waits)
	}
}

func TestGenerate_PanickingSinkIgnored(t *testing.T) {
	m := &fakeModel{results: []result{{text: "fine"}}}
	boom := telemetry.SinkFunc(func(context.Context, telemetry.Event) { panic("analytics down") })
	g := NewGateway(m, WithSink(boom), WithAuditLogger(zerolog.Nop()))
	if got, err := g.Generate(context.Background(), Request{}); err != nil || got != "fine" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestGenerate_AuditTruncatesInput(t *testing.T) {
	var buf bytes.Buffer
	m := &fakeModel{results: []result{{text: strings.Repeat("y", 300)}}}
	g := NewGateway(m, WithAuditLogger(zerolog.New(&buf)))
	_, _ = g.Generate(context.Background(), Request{Action: "generate_prayer", Prompt: strings.Repeat("x", 300)})

	line := buf.String()
	if !strings.Contains(line, `"action":"generate_prayer"`) {
		t.Fatalf("audit line missing action: %s", line)
	}
	if strings.Contains(line, strings.Repeat("x", telemetry.MaxFieldRunes+1)) {
		t.Fatal("input not truncated")
	}
}

func TestStream_YieldsAndAudits(t *testing.T) {
	m := &fakeModel{chunks: []string{"In the ", "beginning"}}
	sink := &captureSink{}
	g := NewGateway(m, WithSink(sink), WithAuditLogger(zerolog.Nop()))

	var updates []string
	full, err := Accumulate(g.Stream(context.Background(), Request{Action: telemetry.EventReadChapter}), func(s string) {
		updates = append(updates, s)
	})
	if err != nil || full != "In the beginning" {
		t.Fatalf("full=%q err=%v", full, err)
	}
	if len(updates) != 2 || updates[0] != "In the " {
		t.Fatalf("updates = %q", updates)
	}
	if len(sink.events) != 1 || sink.events[0].Output != "In the beginning" {
		t.Fatalf("events = %+v", sink.events)
	}
}

func TestStream_ErrorKeepsPartialText(t *testing.T) {
	m := &fakeModel{chunks: []string{"partial"}, err: errors.New("reset")}
	sink := &captureSink{}
	g := NewGateway(m, WithSink(sink), WithAuditLogger(zerolog.Nop()))

	full, err := Accumulate(g.Stream(context.Background(), Request{}), nil)
	if err == nil || full != "partial" {
		t.Fatalf("full=%q err=%v", full, err)
	}
	if sink.events[0].Status != telemetry.StatusError {
		t.Fatalf("event = %+v", sink.events[0])
	}
}

func TestStream_EarlyBreakStops(t *testing.T) {
	m := &fakeModel{chunks: []string{"a", "b", "c"}}
	g := NewGateway(m, WithAuditLogger(zerolog.Nop()))
	n := 0
	for range g.Stream(context.Background(), Request{}) {
		n++
		break
	}
	if n != 1 {
		t.Fatalf("n = %d", n)
	}
}

func TestGenerateConfig(t *testing.T) {
	temp := float32(0.3)
	budget := int32(1024)
	cfg := GenerateConfig(Request{
		SystemInstruction: "be kind",
		Schema:            &genai.Schema{Type: genai.TypeObject},
		Temperature:       &temp,
		ThinkingBudget:    &budget,
	})
	if cfg.ResponseMIMEType != "application/json" || cfg.ResponseSchema == nil {
		t.Fatalf("schema not applied: %+v", cfg)
	}
	if cfg.Temperature == nil || *cfg.Temperature != 0.3 {
		t.Fatal("temperature not applied")
	}
	if cfg.ThinkingConfig == nil || *cfg.ThinkingConfig.ThinkingBudget != 1024 {
		t.Fatal("thinking budget not applied")
	}
	if cfg.SystemInstruction == nil {
		t.Fatal("system instruction missing")
	}
	if len(cfg.SafetySettings) != 4 {
		t.Fatalf("safety settings = %d", len(cfg.SafetySettings))
	}
	for _, s := range cfg.SafetySettings {
		if s.Threshold != genai.HarmBlockThresholdBlockOnlyHigh {
			t.Fatalf("threshold = %v", s.Threshold)
		}
	}

	plain := GenerateConfig(Request{})
	if plain.ResponseMIMEType != "" || plain.ThinkingConfig != nil || plain.SystemInstruction != nil {
		t.Fatalf("unexpected config: %+v", plain)
	}
}

func TestNewGenAIModel_RequiresKey(t *testing.T) {
	if _, err := NewGenAIModel(context.Background(), "", ""); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("err = %v", err)
	}
}
