package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/bibleai/internal/domain"
	"github.com/tbourn/bibleai/internal/services"
)

// PostMessageRequest is the body of a chat turn.
type PostMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// ListMessagesResponse is a page of a surface log.
type ListMessagesResponse struct {
	Messages   []domain.ChatMessage `json:"messages"`
	Pagination Pagination           `json:"pagination"`
}

func surfaceParam(c *gin.Context) (domain.Surface, bool) {
	s, ok := domain.ParseSurface(c.Param("surface"))
	if !ok {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "unknown chat surface")
	}
	return s, ok
}

// PostMessage handles POST /chats/:surface/messages. It always answers 200
// with both messages once the turn ran; a rate-limit notice or a model
// failure is reported in the result flags, not as an HTTP error.
func (h *Handlers) PostMessage(c *gin.Context) {
	surface, found := surfaceParam(c)
	if !found {
		return
	}
	h.send(c, surface)
}

// Search handles POST /search, the search surface under its own route.
func (h *Handlers) Search(c *gin.Context) {
	h.send(c, domain.SurfaceSearch)
}

func (h *Handlers) send(c *gin.Context, surface domain.Surface) {
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	content := sanitizeContent(req.Content)
	if content == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	res, err := h.chat.Send(c.Request.Context(), userID(c), surface, content)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// ListMessages handles GET /chats/:surface/messages with page and page_size.
// A weak ETag built from the log length and last timestamp allows 304s.
func (h *Handlers) ListMessages(c *gin.Context) {
	surface, found := surfaceParam(c)
	if !found {
		return
	}
	ctx := c.Request.Context()
	id := userID(c)

	if n, last, err := h.chat.MessageStats(ctx, id, surface); err == nil {
		etag := fmt.Sprintf(`W/"messages:%s:%d:%d"`, surface, n, last)
		c.Header("ETag", etag)
		if c.GetHeader("If-None-Match") == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	page, pageSize := clampPagination(c)
	items, total, err := h.chat.ListMessages(ctx, id, surface, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.ChatMessage{}
	}
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages:   items,
		Pagination: newPagination(page, pageSize, total),
	})
}

var _ ChatService = (*services.Assistant)(nil)
