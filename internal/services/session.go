package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/bibleai/internal/conversation"
	"github.com/tbourn/bibleai/internal/domain"
	"github.com/tbourn/bibleai/internal/kv"
	"github.com/tbourn/bibleai/internal/quiz"
	"github.com/tbourn/bibleai/internal/ratelimit"
)

// PreferencesKey is the store key of the saved preferences.
const PreferencesKey = "bible_ai_preferences"

// Session is the state of one user: preferences, the three conversation
// logs, the daily limiter and today's quiz. Its store is namespaced so
// sessions never see each other's records.
type Session struct {
	ID string

	store   kv.Store
	limiter *ratelimit.Daily
	now     func() time.Time

	mu    sync.RWMutex
	prefs domain.UserPreferences
	logs  map[domain.Surface]*conversation.Log

	quizMu   sync.Mutex
	quiz     *quiz.Engine
	quizDate string
}

// Preferences returns the current preferences.
func (s *Session) Preferences() domain.UserPreferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

func (s *Session) setPreferences(ctx context.Context, p domain.UserPreferences) error {
	s.mu.Lock()
	s.prefs = p
	s.mu.Unlock()
	return kv.SetJSON(ctx, s.store, PreferencesKey, p)
}

// Log returns the conversation log of surface.
func (s *Session) Log(surface domain.Surface) *conversation.Log {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logs[surface]
}

// Limiter returns the session's daily limiter.
func (s *Session) Limiter() *ratelimit.Daily { return s.limiter }

// Quiz returns today's quiz engine, mounting a fresh one when the day changed.
func (s *Session) Quiz(ctx context.Context) *quiz.Engine {
	s.quizMu.Lock()
	defer s.quizMu.Unlock()
	today := s.now().Format(domain.DateLayout)
	if s.quiz == nil || s.quizDate != today {
		s.quiz = quiz.New(ctx, s.store, quiz.WithClock(s.now))
		s.quizDate = today
	}
	return s.quiz
}

// Registry creates and caches sessions by id.
type Registry struct {
	// KV is the shared store; each session gets a namespaced view.
	KV kv.Store
	// Messages persists conversation logs; nil keeps them in memory only.
	Messages conversation.Store
	// DailyLimit overrides the per-session request limit when > 0.
	DailyLimit int
	// Now is the clock; defaults to time.Now.
	Now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry returns a registry over store. msgs may be nil.
func NewRegistry(store kv.Store, msgs conversation.Store, dailyLimit int) *Registry {
	return &Registry{KV: store, Messages: msgs, DailyLimit: dailyLimit, Now: time.Now}
}

func (r *Registry) clock() func() time.Time {
	if r.Now != nil {
		return r.Now
	}
	return time.Now
}

// Get returns the session for id, loading saved preferences and history on
// first use.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidSession
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions == nil {
		r.sessions = make(map[string]*Session)
	}
	if s, ok := r.sessions[id]; ok {
		return s, nil
	}

	store := kv.Namespaced(r.KV, id)
	now := r.clock()
	s := &Session{
		ID:      id,
		store:   store,
		now:     now,
		limiter: ratelimit.NewDaily(store, ratelimit.WithLimit(r.DailyLimit), ratelimit.WithClock(now)),
		prefs:   domain.DefaultPreferences(),
		logs:    make(map[domain.Surface]*conversation.Log, len(domain.Surfaces)),
	}

	var saved domain.UserPreferences
	ok, err := kv.GetJSON(ctx, store, PreferencesKey, &saved)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("session", id).Msg("saved preferences unreadable; using defaults")
	case ok:
		s.prefs = saved
	}

	for _, surface := range domain.Surfaces {
		l, err := conversation.Open(ctx, r.Messages, id, surface)
		if err != nil {
			return nil, err
		}
		s.logs[surface] = l
	}

	r.sessions[id] = s
	return s, nil
}
