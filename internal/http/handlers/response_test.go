package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/bibleai/internal/quiz"
	"github.com/tbourn/bibleai/internal/services"
)

func Test_fail_500_LogsAndBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-500")
		c.Set("logger", &logger)
		c.Next()
	})
	r.GET("/boom", func(c *gin.Context) { fail(c, http.StatusInternalServerError, ErrCodeInternal, "kaboom") })
	r.GET("/missing", func(c *gin.Context) { Fail(c, http.StatusNotFound, ErrCodeNotFound, "nope") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if w.Code != http.StatusInternalServerError || resp.RequestID != "rid-500" || resp.Code != ErrCodeInternal || resp.Message != "kaboom" {
		t.Fatalf("unexpected: %d %+v", w.Code, resp)
	}
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("expected error log, got: %s", buf.String())
	}

	buf.Reset()
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if w.Code != http.StatusNotFound || buf.Len() != 0 {
		t.Fatalf("4xx must not log: %d %q", w.Code, buf.String())
	}
}

func Test_failErr_Mapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrEmptyPrompt, http.StatusBadRequest, ErrCodeBadRequest},
		{fmt.Errorf("%w: faith", services.ErrInvalidPreferences), http.StatusBadRequest, ErrCodeBadRequest},
		{quiz.ErrOptionRange, http.StatusBadRequest, ErrCodeBadRequest},
		{services.ErrTooLong, http.StatusRequestEntityTooLarge, ErrCodeTooLong},
		{services.ErrNotOnboarded, http.StatusPreconditionRequired, ErrCodeNotOnboarded},
		{services.ErrBusy, http.StatusConflict, ErrCodeBusy},
		{fmt.Errorf("%w: boom", services.ErrQuizUnavailable), http.StatusBadGateway, ErrCodeQuizUnavailable},
		{quiz.ErrTerminal, http.StatusConflict, ErrCodeQuizState},
		{quiz.ErrNotRevealed, http.StatusConflict, ErrCodeQuizState},
		{errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		failErr(c, tc.err)

		var resp ErrorResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if w.Code != tc.status || resp.Code != tc.code {
			t.Fatalf("%v: got %d/%s; want %d/%s", tc.err, w.Code, resp.Code, tc.status, tc.code)
		}
	}
}
