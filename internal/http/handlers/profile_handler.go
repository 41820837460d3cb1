package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/bibleai/internal/domain"
	"github.com/tbourn/bibleai/internal/i18n"
)

// GetPreferences handles GET /preferences.
func (h *Handlers) GetPreferences(c *gin.Context) {
	p, err := h.profile.GetPreferences(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// PutPreferences handles PUT /preferences. A valid body completes onboarding.
func (h *Handlers) PutPreferences(c *gin.Context) {
	var p domain.UserPreferences
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid preferences body")
		return
	}
	saved, err := h.profile.UpdatePreferences(c.Request.Context(), userID(c), p)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, saved)
}

// ResetPreferences handles POST /preferences/reset.
func (h *Handlers) ResetPreferences(c *gin.Context) {
	p, err := h.profile.ResetPreferences(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// Catalog handles GET /catalog. The payload is static and cacheable.
func (h *Handlers) Catalog(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=3600")
	ok(c, http.StatusOK, i18n.Options())
}

// ViewResponse is the resolved deep link.
type ViewResponse struct {
	View domain.View `json:"view"`
}

// ResolveView handles GET /view?fragment=#quiz.
func (h *Handlers) ResolveView(c *gin.Context) {
	v, err := h.profile.ResolveView(c.Request.Context(), userID(c), c.Query("fragment"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ViewResponse{View: v})
}

// VerseOfTheDay handles GET /verse-of-the-day.
func (h *Handlers) VerseOfTheDay(c *gin.Context) {
	v, err := h.profile.VerseOfTheDay(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// Usage handles GET /usage.
func (h *Handlers) Usage(c *gin.Context) {
	u, err := h.profile.Usage(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}
