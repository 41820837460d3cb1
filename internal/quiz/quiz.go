// Package quiz runs the daily ten-question Bible trivia game.
//
// The engine moves INTRO -> PLAYING -> FINISHED. When today's status record
// already says the quiz was played, it starts in ALREADY_PLAYED instead.
// FINISHED and ALREADY_PLAYED are terminal for the day.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/bibleai/internal/domain"
	"github.com/tbourn/bibleai/internal/kv"
)

// StatusKey is the store key of the daily quiz status.
const StatusKey = "bible_ai_daily_quiz_status"

// MaxQuestions caps a game at ten questions.
const MaxQuestions = 10

// State is the engine's phase.
type State string

const (
	StateIntro         State = "INTRO"
	StatePlaying       State = "PLAYING"
	StateFinished      State = "FINISHED"
	StateAlreadyPlayed State = "ALREADY_PLAYED"
)

var (
	// ErrNoQuestions is returned by Start when the fetch produced nothing usable.
	ErrNoQuestions = errors.New("no quiz questions available")
	// ErrTerminal is returned by every operation once the day's game is over.
	ErrTerminal = errors.New("quiz already completed today")
	// ErrNotPlaying is returned by Select and Next outside of a game.
	ErrNotPlaying = errors.New("quiz is not in progress")
	// ErrAlreadyStarted is returned by Start during a game.
	ErrAlreadyStarted = errors.New("quiz already started")
	// ErrNotRevealed is returned by Next before an answer was chosen.
	ErrNotRevealed = errors.New("select an answer first")
	// ErrOptionRange is returned by Select for an option index outside [0,3].
	ErrOptionRange = errors.New("option index out of range")
)

// Fetcher produces the day's questions.
type Fetcher func(ctx context.Context) ([]domain.QuizQuestion, error)

// Snapshot is a read-only view of the engine.
type Snapshot struct {
	State    State                `json:"state"`
	Index    int                  `json:"index"`
	Total    int                  `json:"total"`
	Score    int                  `json:"score"`
	Selected *int                 `json:"selected,omitempty"`
	Revealed bool                 `json:"revealed"`
	Current  *domain.QuizQuestion `json:"current,omitempty"`
}

// Engine is one user's quiz for the current day. Safe for concurrent use.
type Engine struct {
	mu        sync.Mutex
	store     kv.Store
	now       func() time.Time
	log       zerolog.Logger
	state     State
	questions []domain.QuizQuestion
	index     int
	score     int
	selected  *int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects the time source used for the status date.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger used for corrupt-record warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New mounts the engine, reading today's status from store.
func New(ctx context.Context, store kv.Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		now:   time.Now,
		log:   log.With().Str("component", "quiz").Logger(),
		state: StateIntro,
	}
	for _, o := range opts {
		o(e)
	}

	var st domain.QuizStatus
	ok, err := kv.GetJSON(ctx, store, StatusKey, &st)
	switch {
	case err != nil:
		e.log.Warn().Err(err).Msg("quiz status unreadable; starting fresh")
	case ok && st.Played && st.Date == e.today():
		e.state = StateAlreadyPlayed
		e.score = st.Score
	}
	return e
}

func (e *Engine) today() string { return e.now().Format(domain.DateLayout) }

func (e *Engine) guard() error {
	switch e.state {
	case StateFinished, StateAlreadyPlayed:
		return ErrTerminal
	case StateIntro:
		return ErrNotPlaying
	}
	return nil
}

// Start fetches the questions and begins the game. On fetch failure or an
// empty result the engine stays in INTRO.
func (e *Engine) Start(ctx context.Context, fetch Fetcher) error {
	e.mu.Lock()
	switch e.state {
	case StateFinished, StateAlreadyPlayed:
		e.mu.Unlock()
		return ErrTerminal
	case StatePlaying:
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.mu.Unlock()

	qs, err := fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch quiz: %w", err)
	}
	if len(qs) == 0 {
		return ErrNoQuestions
	}
	if len(qs) > MaxQuestions {
		qs = qs[:MaxQuestions]
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateIntro {
		return ErrAlreadyStarted
	}
	e.questions = qs
	e.index = 0
	e.score = 0
	e.selected = nil
	e.state = StatePlaying
	return nil
}

// Select answers the current question. The first selection reveals the
// answer and scores it; later selections are ignored.
func (e *Engine) Select(option int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return err
	}
	q := e.questions[e.index]
	if option < 0 || option >= len(q.Options) {
		return ErrOptionRange
	}
	if e.selected != nil {
		return nil
	}
	e.selected = &option
	if option == q.CorrectIndex {
		e.score++
	}
	return nil
}

// Next advances to the following question. After the last question the
// game finishes and today's status is persisted.
func (e *Engine) Next(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return err
	}
	if e.selected == nil {
		return ErrNotRevealed
	}
	if e.index < len(e.questions)-1 {
		e.index++
		e.selected = nil
		return nil
	}

	e.state = StateFinished
	st := domain.QuizStatus{Date: e.today(), Score: e.score, Played: true}
	if err := kv.SetJSON(ctx, e.store, StatusKey, st); err != nil {
		return fmt.Errorf("save quiz status: %w", err)
	}
	return nil
}

// Snapshot returns the current view of the engine.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Snapshot{
		State:    e.state,
		Index:    e.index,
		Total:    len(e.questions),
		Score:    e.score,
		Revealed: e.selected != nil,
	}
	if e.selected != nil {
		v := *e.selected
		s.Selected = &v
	}
	if e.state == StatePlaying {
		q := e.questions[e.index]
		s.Current = &q
	}
	return s
}
