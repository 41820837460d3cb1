package handlers

import (
	"context"
	"iter"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/bibleai/internal/domain"
	"github.com/tbourn/bibleai/internal/http/middleware"
	"github.com/tbourn/bibleai/internal/i18n"
	"github.com/tbourn/bibleai/internal/quiz"
	"github.com/tbourn/bibleai/internal/services"
	"github.com/tbourn/bibleai/internal/utils"
)

// ChatService runs turns on the three chat surfaces.
type ChatService interface {
	Send(ctx context.Context, sessionID string, surface domain.Surface, text string) (services.SendResult, error)
	ListMessages(ctx context.Context, sessionID string, surface domain.Surface, page, pageSize int) ([]domain.ChatMessage, int, error)
	MessageStats(ctx context.Context, sessionID string, surface domain.Surface) (int, int64, error)
}

// ProfileService manages preferences and the small read-only views.
type ProfileService interface {
	GetPreferences(ctx context.Context, sessionID string) (domain.UserPreferences, error)
	UpdatePreferences(ctx context.Context, sessionID string, p domain.UserPreferences) (domain.UserPreferences, error)
	ResetPreferences(ctx context.Context, sessionID string) (domain.UserPreferences, error)
	Usage(ctx context.Context, sessionID string) (services.Usage, error)
	VerseOfTheDay(ctx context.Context, sessionID string) (i18n.Verse, error)
	ResolveView(ctx context.Context, sessionID, fragment string) (domain.View, error)
}

// QuizService drives the daily quiz.
type QuizService interface {
	QuizSnapshot(ctx context.Context, sessionID string) (quiz.Snapshot, error)
	StartQuiz(ctx context.Context, sessionID string) (quiz.Snapshot, error)
	SelectQuizOption(ctx context.Context, sessionID string, option int) (quiz.Snapshot, error)
	NextQuizQuestion(ctx context.Context, sessionID string) (quiz.Snapshot, error)
}

// ChapterService streams full chapters.
type ChapterService interface {
	StreamChapter(ctx context.Context, sessionID, chapter string) (iter.Seq2[string, error], error)
}

// Handlers groups the endpoints. *services.Assistant satisfies every
// service interface.
type Handlers struct {
	chat    ChatService
	profile ProfileService
	quiz    QuizService
	chapter ChapterService

	// OnStream is called when a chapter stream opens; the returned func
	// runs when it closes. Optional.
	OnStream func() (closed func())
}

// New binds handlers to their services.
func New(chat ChatService, profile ProfileService, quiz QuizService, chapter ChapterService) *Handlers {
	return &Handlers{chat: chat, profile: profile, quiz: quiz, chapter: chapter}
}

// NewFromAssistant binds every endpoint to one assistant.
func NewFromAssistant(a *services.Assistant) *Handlers {
	return New(a, a, a, a)
}

// userID returns the session id set by middleware.Session, falling back to
// the raw header and then to the shared demo session.
func userID(c *gin.Context) string {
	if id := middleware.SessionID(c); id != "" {
		return id
	}
	if c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader(middleware.SessionHeader)); h != "" {
			return h
		}
	}
	return middleware.DefaultSession
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// clampPagination reads page and page_size, defaulting to 1 and 20 and
// capping page_size at 100.
func clampPagination(c *gin.Context) (page, pageSize int) {
	page = max(1, utils.AtoiDefault(c.Query("page"), 1))
	pageSize = utils.Clamp(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return page, pageSize
}

func newPagination(page, pageSize, total int) Pagination {
	pages := utils.TotalPages(total, pageSize)
	return Pagination{Page: page, PageSize: pageSize, Total: total, TotalPages: pages, HasNext: page < pages}
}

var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes line endings to LF, collapses three or more
// newlines to a paragraph break and trims the result.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(nlCollapseRE.ReplaceAllString(s, "\n\n"))
}
