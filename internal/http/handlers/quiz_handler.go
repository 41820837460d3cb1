package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/bibleai/internal/quiz"
)

// SelectOptionRequest picks an answer by index.
type SelectOptionRequest struct {
	Option *int `json:"option" binding:"required"`
}

func (h *Handlers) quizReply(c *gin.Context, snap quiz.Snapshot, err error) {
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, snap)
}

// GetQuiz handles GET /quiz.
func (h *Handlers) GetQuiz(c *gin.Context) {
	snap, err := h.quiz.QuizSnapshot(c.Request.Context(), userID(c))
	h.quizReply(c, snap, err)
}

// StartQuiz handles POST /quiz/start. A model failure answers 502.
func (h *Handlers) StartQuiz(c *gin.Context) {
	snap, err := h.quiz.StartQuiz(c.Request.Context(), userID(c))
	h.quizReply(c, snap, err)
}

// SelectOption handles POST /quiz/select.
func (h *Handlers) SelectOption(c *gin.Context) {
	var req SelectOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "option required")
		return
	}
	snap, err := h.quiz.SelectQuizOption(c.Request.Context(), userID(c), *req.Option)
	h.quizReply(c, snap, err)
}

// NextQuestion handles POST /quiz/next.
func (h *Handlers) NextQuestion(c *gin.Context) {
	snap, err := h.quiz.NextQuizQuestion(c.Request.Context(), userID(c))
	h.quizReply(c, snap, err)
}
