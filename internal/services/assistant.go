package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/bibleai/internal/domain"
	"github.com/tbourn/bibleai/internal/i18n"
	"github.com/tbourn/bibleai/internal/llm"
	"github.com/tbourn/bibleai/internal/parser"
	"github.com/tbourn/bibleai/internal/prompt"
	"github.com/tbourn/bibleai/internal/quiz"
	"github.com/tbourn/bibleai/internal/telemetry"
)

// PrayerPrefix is prepended to the text the user enters on the prayer surface.
const PrayerPrefix = "Please pray for: "

// DefaultMaxPromptRunes bounds user text when no limit is configured.
const DefaultMaxPromptRunes = 4000

// Generator is the model gateway as seen by the services. *llm.Gateway
// satisfies it.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (string, error)
	Stream(ctx context.Context, req llm.Request) iter.Seq2[string, error]
}

// Assistant implements the user-facing operations on top of the session
// registry and the model gateway.
type Assistant struct {
	Gateway   Generator
	Sessions  *Registry
	Analytics telemetry.Sink
	// MaxPromptRunes rejects longer user text; <= 0 uses DefaultMaxPromptRunes.
	MaxPromptRunes int
	Now            func() time.Time
}

// NewAssistant wires an Assistant with a no-op analytics sink.
func NewAssistant(gw Generator, sessions *Registry) *Assistant {
	return &Assistant{
		Gateway:   gw,
		Sessions:  sessions,
		Analytics: telemetry.Nop{},
		Now:       time.Now,
	}
}

func (a *Assistant) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Assistant) maxRunes() int {
	if a.MaxPromptRunes > 0 {
		return a.MaxPromptRunes
	}
	return DefaultMaxPromptRunes
}

func (a *Assistant) track(ctx context.Context, ev telemetry.Event) {
	if a.Analytics == nil {
		return
	}
	telemetry.Safe(a.Analytics).Track(ctx, ev)
}

// SendResult is the outcome of one chat turn.
type SendResult struct {
	User        domain.ChatMessage `json:"user"`
	Reply       domain.ChatMessage `json:"reply"`
	RateLimited bool               `json:"rateLimited"`
	// Fallback is true when the model reply was not valid JSON and the raw
	// text is shown instead.
	Fallback bool `json:"fallback"`
	// Failed is true when the gateway gave up and Reply carries the
	// localized error text.
	Failed    bool `json:"failed"`
	Remaining int  `json:"remaining"`
}

// Send runs one turn on surface: the user message is appended first, then
// either a rate-limit notice or exactly one model reply follows.
//
// Errors:
//   - ErrInvalidSession, ErrEmptyPrompt, ErrTooLong for bad input
//   - ErrNotOnboarded when preferences are incomplete
//   - ErrBusy while a previous turn on the same surface is pending
//
// Model failures are not errors: the reply carries the localized message.
func (a *Assistant) Send(ctx context.Context, sessionID string, surface domain.Surface, text string) (SendResult, error) {
	tr := otel.Tracer("services/assistant")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("chat.surface", string(surface)),
			attribute.Int("prompt.len", len(text)),
		),
	)
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return SendResult{}, ErrEmptyPrompt
	}
	if utf8.RuneCountInString(text) > a.maxRunes() {
		return SendResult{}, ErrTooLong
	}

	s, err := a.Sessions.Get(ctx, sessionID)
	if err != nil {
		return SendResult{}, err
	}
	prefs := s.Preferences()
	if !prefs.IsCompleted {
		return SendResult{}, ErrNotOnboarded
	}

	conv := s.Log(surface)
	if conv == nil {
		return SendResult{}, fmt.Errorf("unknown surface %q", surface)
	}
	if err := conv.Begin(); err != nil {
		return SendResult{}, err
	}
	defer conv.End()

	history := conv.Messages()
	shown := text
	if surface == domain.SurfacePrayer {
		shown = PrayerPrefix + text
	}

	now := a.now()
	res := SendResult{User: domain.NewMessage(domain.RoleUser, shown, now, 0)}
	if err := conv.Append(ctx, res.User); err != nil {
		log.Warn().Err(err).Str("session", s.ID).Str("surface", string(surface)).Msg("persist user message")
	}

	bundle := i18n.Match(prefs.Language)
	limiter := s.Limiter()
	if !limiter.Check(ctx) {
		res.RateLimited = true
		res.Reply = domain.NewMessage(domain.RoleModel, bundle.RateLimit, now, 1)
		if err := conv.Append(ctx, res.Reply); err != nil {
			log.Warn().Err(err).Str("session", s.ID).Msg("persist rate-limit notice")
		}
		span.SetAttributes(attribute.Bool("rate_limited", true))
		return res, nil
	}
	if err := limiter.Increment(ctx); err != nil {
		log.Warn().Err(err).Str("session", s.ID).Msg("increment usage")
	}

	var req llm.Request
	var failText, emptyText string
	switch surface {
	case domain.SurfaceSearch:
		req = prompt.Search(prefs, text)
		failText, emptyText = bundle.SearchError, bundle.NoScriptures
	case domain.SurfacePastor:
		req = prompt.Ask(prefs, text, history)
		failText, emptyText = bundle.PastorError, bundle.NoCounsel
	default:
		req = prompt.Pray(prefs, text)
		failText, emptyText = bundle.PrayerError, bundle.PrayerDefault
	}

	raw, err := a.Gateway.Generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		res.Failed = true
		res.Reply = domain.NewMessage(domain.RoleModel, failText, now, 1)
	} else {
		parsed := parser.Parse(raw)
		_, res.Fallback = parsed.(parser.Fallback)
		answer := parsed.Answer()
		if strings.TrimSpace(answer) == "" {
			answer = emptyText
		}
		res.Reply = domain.NewMessage(domain.RoleModel, answer, now, 1)
		res.Reply.FollowUps = parsed.FollowUps()
		res.Reply.References = parsed.References()
	}

	if err := conv.Append(ctx, res.Reply); err != nil {
		log.Warn().Err(err).Str("session", s.ID).Msg("persist model reply")
	}
	res.Remaining = limiter.Remaining(ctx)
	return res, nil
}

// ListMessages returns a page of a surface log and the total length.
func (a *Assistant) ListMessages(ctx context.Context, sessionID string, surface domain.Surface, page, pageSize int) ([]domain.ChatMessage, int, error) {
	tr := otel.Tracer("services/assistant")
	ctx, span := tr.Start(ctx, "ListMessages",
		trace.WithAttributes(
			attribute.String("chat.surface", string(surface)),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	s, err := a.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}
	conv := s.Log(surface)
	if conv == nil {
		return nil, 0, fmt.Errorf("unknown surface %q", surface)
	}
	if page < 1 {
		page = 1
	}
	return conv.Page((page-1)*pageSize, pageSize), conv.Len(), nil
}

// MessageStats returns the length of a surface log and the timestamp of its
// last message (0 when empty). Handlers derive ETags from it.
func (a *Assistant) MessageStats(ctx context.Context, sessionID string, surface domain.Surface) (int, int64, error) {
	s, err := a.Sessions.Get(ctx, sessionID)
	if err != nil {
		return 0, 0, err
	}
	conv := s.Log(surface)
	if conv == nil {
		return 0, 0, fmt.Errorf("unknown surface %q", surface)
	}
	msgs := conv.Messages()
	if len(msgs) == 0 {
		return 0, 0, nil
	}
	return len(msgs), msgs[len(msgs)-1].Timestamp, nil
}

// GetPreferences returns the session's preferences (defaults before onboarding).
func (a *Assistant) GetPreferences(ctx context.Context, sessionID string) (domain.UserPreferences, error) {
	s, err := a.Sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.UserPreferences{}, err
	}
	return s.Preferences(), nil
}

// UpdatePreferences validates and stores p, completing onboarding.
func (a *Assistant) UpdatePreferences(ctx context.Context, sessionID string, p domain.UserPreferences) (domain.UserPreferences, error) {
	ctx, span := otel.Tracer("services/assistant").Start(ctx, "UpdatePreferences")
	defer span.End()

	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return domain.UserPreferences{}, fmt.Errorf("%w: %w", ErrInvalidPreferences, err)
	}
	s, err := a.Sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.UserPreferences{}, err
	}
	p.IsCompleted = true
	if err := s.setPreferences(ctx, p); err != nil {
		return domain.UserPreferences{}, fmt.Errorf("save preferences: %w", err)
	}
	return p, nil
}

// ResetPreferences keeps the saved fields but sends the user back to onboarding.
func (a *Assistant) ResetPreferences(ctx context.Context, sessionID string) (domain.UserPreferences, error) {
	s, err := a.Sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.UserPreferences{}, err
	}
	p := s.Preferences()
	p.IsCompleted = false
	if err := s.setPreferences(ctx, p); err != nil {
		return domain.UserPreferences{}, fmt.Errorf("save preferences: %w", err)
	}
	return p, nil
}

// QuizSnapshot returns today's quiz state.
func (a *Assistant) QuizSnapshot(ctx context.Context, sessionID string) (quiz.Snapshot, error) {
	s, err := a.Sessions.Get(ctx, sessionID)
	if err != nil {
		return quiz.Snapshot{}, err
	}
	return s.Quiz(ctx).Snapshot(), nil
}

// StartQuiz asks the model for today's questions and begins the game. A
// gateway failure or an unusable payload wraps ErrQuizUnavailable.
func (a *Assistant) StartQuiz(ctx context.Context, sessionID string) (quiz.Snapshot, error) {
	ctx, span := otel.Tracer("services/assistant").Start(ctx, "StartQuiz",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	defer span.End()

	s, err := a.Sessions.Get(ctx, sessionID)
	if err != nil {
		return quiz.Snapshot{}, err
	}
	prefs := s.Preferences()
	if !prefs.IsCompleted {
		return quiz.Snapshot{}, ErrNotOnboarded
	}
	engine := s.Quiz(ctx)
	date := a.now().Format(domain.DateLayout)

	fetch := func(ctx context.Context) ([]domain.QuizQuestion, error) {
		raw, err := a.Gateway.Generate(ctx, prompt.Quiz(prefs, date))
		if err != nil {
			return nil, err
		}
		return parser.ParseQuiz(raw)
	}
	if err := engine.Start(ctx, fetch); err != nil {
		if errors.Is(err, quiz.ErrTerminal) || errors.Is(err, quiz.ErrAlreadyStarted) {
			return engine.Snapshot(), err
		}
		span.RecordError(err)
		return engine.Snapshot(), fmt.Errorf("%w: %w", ErrQuizUnavailable, err)
	}
	return engine.Snapshot(), nil
}

// SelectQuizOption reveals the answer for the current question.
func (a *Assistant) SelectQuizOption(ctx context.Context, sessionID string, option int) (quiz.Snapshot, error) {
	s, err := a.Sessions.Get(ctx, sessionID)
	if err != nil {
		return quiz.Snapshot{}, err
	}
	engine := s.Quiz(ctx)
	err = engine.Select(option)
	return engine.Snapshot(), err
}

// NextQuizQuestion advances the quiz, finishing and persisting it after the
// last question.
func (a *Assistant) NextQuizQuestion(ctx context.Context, sessionID string) (quiz.Snapshot, error) {
	s, err := a.Sessions.Get(ctx, sessionID)
	if err != nil {
		return quiz.Snapshot{}, err
	}
	engine := s.Quiz(ctx)
	err = engine.Next(ctx)
	return engine.Snapshot(), err
}

// StreamChapter starts streaming the full text of chapter. The sequence ends
// when the model is done or ctx is cancelled. A model error is yielded once
// together with the localized chapter error text.
func (a *Assistant) StreamChapter(ctx context.Context, sessionID, chapter string) (iter.Seq2[string, error], error) {
	chapter = domain.BibleReference{Ref: chapter}.ChapterRef()
	if chapter == "" {
		return nil, ErrEmptyPrompt
	}
	s, err := a.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	prefs := s.Preferences()
	bundle := i18n.Match(prefs.Language)
	inner := a.Gateway.Stream(ctx, prompt.Chapter(prefs, chapter))

	return func(yield func(string, error) bool) {
		for chunk, err := range inner {
			if err != nil {
				yield(bundle.ChapterError, err)
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}, nil
}

// ReadChapter streams chapter and calls onUpdate with the accumulated text
// after every chunk. On failure the localized error text is returned along
// with the error.
func (a *Assistant) ReadChapter(ctx context.Context, sessionID, chapter string, onUpdate func(full string)) (string, error) {
	ctx, span := otel.Tracer("services/assistant").Start(ctx, "ReadChapter",
		trace.WithAttributes(attribute.String("chapter", chapter)),
	)
	defer span.End()

	seq, err := a.StreamChapter(ctx, sessionID, chapter)
	if err != nil {
		return "", err
	}
	full, err := llm.Accumulate(seq, onUpdate)
	if err != nil {
		span.RecordError(err)
		s, serr := a.Sessions.Get(ctx, sessionID)
		if serr != nil {
			return full, err
		}
		return i18n.Match(s.Preferences().Language).ChapterError, err
	}
	return full, nil
}

// Usage is the daily counter as shown to the user.
type Usage struct {
	Date      string `json:"date"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}

// Usage reports the session's remaining requests for today.
func (a *Assistant) Usage(ctx context.Context, sessionID string) (Usage, error) {
	s, err := a.Sessions.Get(ctx, sessionID)
	if err != nil {
		return Usage{}, err
	}
	l := s.Limiter()
	return Usage{Date: l.Today(), Limit: l.Limit(), Remaining: l.Remaining(ctx)}, nil
}

// VerseOfTheDay returns today's verse in the session's language.
func (a *Assistant) VerseOfTheDay(ctx context.Context, sessionID string) (i18n.Verse, error) {
	s, err := a.Sessions.Get(ctx, sessionID)
	if err != nil {
		return i18n.Verse{}, err
	}
	return i18n.VerseOfTheDay(a.now(), s.Preferences().Language), nil
}

// ResolveView maps a deep-link fragment to the view to open. Sessions that
// have not finished onboarding always land on ONBOARDING.
func (a *Assistant) ResolveView(ctx context.Context, sessionID, fragment string) (domain.View, error) {
	s, err := a.Sessions.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	view := domain.ViewOnboarding
	if s.Preferences().IsCompleted {
		view = domain.ParseView(fragment, domain.ViewSearch)
	}
	a.track(ctx, telemetry.Event{
		Name:   telemetry.EventAppAction,
		Action: "navigate",
		Status: telemetry.StatusSuccess,
		Input:  telemetry.Truncate(fragment, telemetry.MaxFieldRunes),
		Output: string(view),
	})
	return view, nil
}
