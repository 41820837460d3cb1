// Package ratelimit implements the advisory daily request counter that caps
// model calls per user per calendar day.
//
// The counter is a single UsageData record kept in a kv.Store. Reads are
// fail-open: a missing, stale or corrupt record never blocks the user.
// Read-modify-write is not atomic across processes, so two concurrent
// increments may collapse into one.
package ratelimit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/bibleai/internal/domain"
	"github.com/tbourn/bibleai/internal/kv"
)

const (
	// UsageKey is the store key of the usage record.
	UsageKey = "bible_ai_usage"
	// DefaultLimit is the number of model requests allowed per day.
	DefaultLimit = 30
)

// Daily is a per-day request counter bound to one store.
type Daily struct {
	store kv.Store
	limit int
	now   func() time.Time
	log   zerolog.Logger
}

// Option configures a Daily limiter.
type Option func(*Daily)

// WithLimit overrides the daily limit. Values < 1 are ignored.
func WithLimit(n int) Option {
	return func(d *Daily) {
		if n >= 1 {
			d.limit = n
		}
	}
}

// WithClock injects the time source used to derive today's date.
func WithClock(now func() time.Time) Option {
	return func(d *Daily) {
		if now != nil {
			d.now = now
		}
	}
}

// WithLogger sets the logger used for fail-open warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Daily) { d.log = l }
}

// NewDaily returns a limiter over store with the default limit and the
// local wall clock.
func NewDaily(store kv.Store, opts ...Option) *Daily {
	d := &Daily{
		store: store,
		limit: DefaultLimit,
		now:   time.Now,
		log:   log.With().Str("component", "ratelimit").Logger(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Limit returns the configured daily limit.
func (d *Daily) Limit() int { return d.limit }

// Today returns the local calendar date of the limiter's clock.
func (d *Daily) Today() string { return d.now().Format(domain.DateLayout) }

// read returns today's record. fresh is false when the stored record is
// missing, unreadable or from another day; in that case the zero count for
// today is returned.
func (d *Daily) read(ctx context.Context) (rec domain.UsageData, fresh bool, stale bool) {
	today := d.Today()
	var u domain.UsageData
	ok, err := kv.GetJSON(ctx, d.store, UsageKey, &u)
	switch {
	case err != nil:
		d.log.Warn().Err(err).Msg("usage record unreadable; allowing request")
		return domain.UsageData{Date: today}, false, false
	case !ok:
		return domain.UsageData{Date: today}, false, false
	case u.Date != today:
		return domain.UsageData{Date: today}, false, true
	}
	return u, true, false
}

// Check reports whether another request is allowed today. A record from a
// previous day is reset to {today, 0}.
func (d *Daily) Check(ctx context.Context) bool {
	rec, fresh, stale := d.read(ctx)
	if stale {
		if err := kv.SetJSON(ctx, d.store, UsageKey, rec); err != nil {
			d.log.Warn().Err(err).Msg("reset stale usage record")
		}
	}
	if !fresh {
		return true
	}
	return rec.Count < d.limit
}

// Increment records one more request for today.
func (d *Daily) Increment(ctx context.Context) error {
	rec, _, _ := d.read(ctx)
	rec.Count++
	return kv.SetJSON(ctx, d.store, UsageKey, rec)
}

// Remaining returns how many requests are left today, never below zero.
func (d *Daily) Remaining(ctx context.Context) int {
	rec, _, _ := d.read(ctx)
	if r := d.limit - rec.Count; r > 0 {
		return r
	}
	return 0
}
