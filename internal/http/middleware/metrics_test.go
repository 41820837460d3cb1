package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMetrics_CountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	r := gin.New()
	r.Use(m.Handler())
	r.GET("/chats/:surface/messages", func(c *gin.Context) { c.String(http.StatusOK, "hi") })
	r.GET("/empty", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, p := range []string{"/chats/search/messages", "/chats/pastor/messages", "/nowhere", "/empty"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/chats/:surface/messages", "200")); got != 2 {
		t.Fatalf("route counter = %v; want 2", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Fatalf("unmatched counter = %v; want 1", got)
	}
	if got := testutil.ToFloat64(m.inflight); got != 0 {
		t.Fatalf("inflight = %v; want 0", got)
	}
	if n := testutil.CollectAndCount(m.latency); n != 3 {
		t.Fatalf("latency series = %d; want 3", n)
	}
}

func TestHTTPMetrics_Streams(t *testing.T) {
	m := NewHTTPMetrics(prometheus.NewRegistry())
	done := m.StreamOpened()
	if got := testutil.ToFloat64(m.streams); got != 1 {
		t.Fatalf("streams = %v", got)
	}
	done()
	if got := testutil.ToFloat64(m.streams); got != 0 {
		t.Fatalf("streams = %v", got)
	}

	var nilMetrics *HTTPMetrics
	nilMetrics.StreamOpened()()
}
