package app

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/bibleai/internal/config"
	"github.com/tbourn/bibleai/internal/domain"
	"github.com/tbourn/bibleai/internal/llm"
)

type echoModel struct{}

func (echoModel) Generate(_ context.Context, req llm.Request) (string, error) {
	return `{"answer":"ok","followUpQuestions":[],"citedVerses":[]}`, nil
}

func (echoModel) Stream(context.Context, llm.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) { yield("chunk", nil) }
}

func memDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		Port:           "0",
		GinMode:        "test",
		APIBasePath:    "/api/v1",
		RateRPS:        100,
		RateBurst:      100,
		PersistHistory: true,
		DailyLimit:     5,
		MaxPromptRunes: 100,
		OTEL:           config.OTELConfig{ServiceName: "bibleai-test"},
		Gemini:         config.GeminiConfig{RetryDelay: time.Millisecond},
	}
}

func TestNew_RequiresAPIKeyWithoutModel(t *testing.T) {
	_, err := New(context.Background(), testConfig(), Options{DB: memDB(t, "app_nokey")})
	if !errors.Is(err, llm.ErrNoAPIKey) {
		t.Fatalf("want ErrNoAPIKey, got %v", err)
	}
}

func TestNew_WiresAssistant(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(), Options{DB: memDB(t, "app_wire"), Model: echoModel{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	if a.Assistant.MaxPromptRunes != 100 {
		t.Fatalf("MaxPromptRunes = %d", a.Assistant.MaxPromptRunes)
	}

	id, err := a.LocalSession(ctx)
	if err != nil || id == "" {
		t.Fatalf("LocalSession: %q %v", id, err)
	}
	again, _ := a.LocalSession(ctx)
	if again != id {
		t.Fatalf("session id changed: %q -> %q", id, again)
	}

	p := domain.DefaultPreferences()
	if _, err := a.Assistant.UpdatePreferences(ctx, id, p); err != nil {
		t.Fatalf("UpdatePreferences: %v", err)
	}
	res, err := a.Assistant.Send(ctx, id, domain.SurfaceSearch, "grace")
	if err != nil || res.Reply.Text != "ok" {
		t.Fatalf("Send: %+v %v", res, err)
	}
	if res.Remaining != 4 {
		t.Fatalf("daily limit not applied: remaining=%d", res.Remaining)
	}

	var n int64
	a.DB.Model(&domain.MessageRecord{}).Count(&n)
	if n != 2 {
		t.Fatalf("persisted messages = %d; want 2", n)
	}

	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), "bibleai_events_total") {
		t.Fatalf("analytics metrics missing from /metrics")
	}
}

func TestNew_AuditsEachModelCallOnce(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.AuditLogPath = filepath.Join(t.TempDir(), "audit.log")
	a, err := New(ctx, cfg, Options{DB: memDB(t, "app_audit"), Model: echoModel{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := a.Assistant.UpdatePreferences(ctx, "u-audit", domain.DefaultPreferences()); err != nil {
		t.Fatalf("UpdatePreferences: %v", err)
	}
	if _, err := a.Assistant.Send(ctx, "u-audit", domain.SurfaceSearch, "grace"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := a.Assistant.ResolveView(ctx, "u-audit", "#quiz"); err != nil {
		t.Fatalf("ResolveView: %v", err)
	}
	_ = a.Close(ctx) // flushes and closes the rotating file

	raw, err := os.ReadFile(cfg.AuditLogPath)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	text := string(raw)
	if n := strings.Count(text, `"event":"search"`); n != 1 {
		t.Fatalf("search audit records = %d; want 1\n%s", n, text)
	}
	if n := strings.Count(text, `"event":"app_action"`); n != 1 {
		t.Fatalf("app_action audit records = %d; want 1\n%s", n, text)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	srv := &http.Server{
		Addr:    "127.0.0.1:0",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, srv) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
