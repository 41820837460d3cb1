package llm

import (
	"context"
	"iter"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/bibleai/internal/telemetry"
)

// DefaultRetryDelay is the pause before the single retry of a failed call.
const DefaultRetryDelay = time.Second

// Gateway wraps a Model with one retry, tracing and auditing.
type Gateway struct {
	model Model
	sink  telemetry.Sink
	audit zerolog.Logger
	delay time.Duration
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithSink sets the analytics sink that receives one event per call.
func WithSink(s telemetry.Sink) GatewayOption {
	return func(g *Gateway) { g.sink = telemetry.Safe(s) }
}

// WithAuditLogger sets the logger that receives the audit record of each call.
func WithAuditLogger(l zerolog.Logger) GatewayOption {
	return func(g *Gateway) { g.audit = l }
}

// WithRetryDelay overrides the pause before the retry.
func WithRetryDelay(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.delay = d }
}

// WithSleep replaces the wait used between attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) GatewayOption {
	return func(g *Gateway) {
		if fn != nil {
			g.sleep = fn
		}
	}
}

// NewGateway wraps m.
func NewGateway(m Model, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		model: m,
		sink:  telemetry.Nop{},
		audit: log.With().Str("stream", "audit").Logger(),
		delay: DefaultRetryDelay,
		sleep: sleepCtx,
		now:   time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Generate calls the model. On failure it waits once and retries; the error
// of the second attempt is returned unchanged. Cancellation during the wait
// returns ctx.Err().
func (g *Gateway) Generate(ctx context.Context, req Request) (string, error) {
	ctx, span := otel.Tracer("llm/Gateway").Start(ctx, "Generate",
		trace.WithAttributes(attribute.String("llm.action", req.Action)),
	)
	defer span.End()

	start := g.now()
	text, err := g.model.Generate(ctx, req)
	if err != nil {
		g.audit.Warn().Err(err).Str("action", req.Action).Msg("model call failed; retrying")
		if werr := g.sleep(ctx, g.delay); werr != nil {
			err = werr
		} else {
			span.AddEvent("retry")
			text, err = g.model.Generate(ctx, req)
		}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	g.record(ctx, req, text, err, g.now().Sub(start))
	return text, err
}

// Stream forwards the model's chunks. Streams are not retried; the audit
// record is written once the sequence ends.
func (g *Gateway) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, span := otel.Tracer("llm/Gateway").Start(ctx, "Stream",
			trace.WithAttributes(attribute.String("llm.action", req.Action)),
		)
		defer span.End()

		start := g.now()
		var (
			out    strings.Builder
			outErr error
		)
		defer func() {
			g.record(ctx, req, out.String(), outErr, g.now().Sub(start))
		}()

		for chunk, err := range g.model.Stream(ctx, req) {
			if err != nil {
				outErr = err
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				yield("", err)
				return
			}
			out.WriteString(chunk)
			if !yield(chunk, nil) {
				return
			}
		}
		if err := ctx.Err(); err != nil {
			outErr = err
		}
	}
}

func (g *Gateway) record(ctx context.Context, req Request, output string, err error, d time.Duration) {
	ev := telemetry.Event{
		Name:     req.Action,
		Action:   req.Action,
		Status:   telemetry.StatusSuccess,
		Input:    telemetry.Truncate(req.Prompt, telemetry.MaxFieldRunes),
		Output:   telemetry.Truncate(output, telemetry.MaxFieldRunes),
		Duration: d,
	}
	if err != nil {
		ev.Status = telemetry.StatusError
		ev.Err = err.Error()
	}
	telemetry.LogSink{Logger: g.audit}.Track(ctx, ev)
	g.sink.Track(ctx, ev)
}

// Accumulate drains seq, calling onUpdate with the text received so far after
// every chunk. It returns the full text and the first error encountered.
func Accumulate(seq iter.Seq2[string, error], onUpdate func(full string)) (string, error) {
	var b strings.Builder
	for chunk, err := range seq {
		if err != nil {
			return b.String(), err
		}
		b.WriteString(chunk)
		if onUpdate != nil {
			onUpdate(b.String())
		}
	}
	return b.String(), nil
}
