package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tbourn/bibleai/internal/http/middleware"
)

// StreamChapter handles GET /chapters/:chapter/stream as server-sent events.
// "chunk" events carry text; a final "done" or "error" event ends the
// stream, the error event carrying the localized message. A client
// disconnect cancels the model call through the request context.
func (h *Handlers) StreamChapter(c *gin.Context) {
	seq, err := h.chapter.StreamChapter(c.Request.Context(), userID(c), c.Param("chapter"))
	if err != nil {
		failErr(c, err)
		return
	}
	if h.OnStream != nil {
		defer h.OnStream()()
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	for chunk, err := range seq {
		if err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Str("chapter", c.Param("chapter")).Msg("chapter stream failed")
			c.SSEvent("error", chunk)
			c.Writer.Flush()
			return
		}
		c.SSEvent("chunk", chunk)
		c.Writer.Flush()
	}
	c.SSEvent("done", "")
	c.Writer.Flush()
}
