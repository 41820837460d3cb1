package cli

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/zalando/go-keyring"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/bibleai/internal/app"
	"github.com/tbourn/bibleai/internal/config"
	"github.com/tbourn/bibleai/internal/domain"
	"github.com/tbourn/bibleai/internal/keys"
	"github.com/tbourn/bibleai/internal/llm"
	"github.com/tbourn/bibleai/internal/services"
	"github.com/tbourn/bibleai/internal/telemetry"
)

const quizPayload = `{"questions":[
 {"question":"Who built the ark?","options":["Moses","Noah","Abraham","David"],"correctIndex":1,"explanation":"God told Noah to build it.","reference":"Genesis 6:14"},
 {"question":"Where was Jesus born?","options":["Nazareth","Jerusalem","Bethlehem","Capernaum"],"correctIndex":2,"explanation":"Born in Bethlehem of Judea.","reference":"Matthew 2:1"}
]}`

// stubModel answers by action.
type stubModel struct{}

func (stubModel) Generate(_ context.Context, req llm.Request) (string, error) {
	if req.Action == telemetry.EventGenerateQuiz {
		return quizPayload, nil
	}
	return `{"answer":"Be still.","followUpQuestions":["What is peace?"],"citedVerses":[{"ref":"Psalm 46:10","text":"Be still, and know that I am God."}]}`, nil
}

func (stubModel) Stream(context.Context, llm.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, c := range []string{"# Psalm 23\n", "**1** The Lord is my shepherd"} {
			if !yield(c, nil) {
				return
			}
		}
	}
}

type scriptedPrompter struct {
	prefs   func(domain.UserPreferences) domain.UserPreferences
	answers []int
	secret  string
	asked   int
}

func (p *scriptedPrompter) Preferences(cur domain.UserPreferences) (domain.UserPreferences, error) {
	if p.prefs == nil {
		return cur, errors.New("unexpected form")
	}
	return p.prefs(cur), nil
}

func (p *scriptedPrompter) QuizOption(domain.QuizQuestion, int, int) (int, error) {
	a := p.answers[p.asked]
	p.asked++
	return a, nil
}

func (p *scriptedPrompter) Secret(string) (string, error) { return p.secret, nil }

func newContext(t *testing.T, pr Prompter) (*Context, *bytes.Buffer) {
	t.Helper()
	name := "file:cli_" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(name), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	var out bytes.Buffer
	cfg := config.Config{
		DailyLimit:     30,
		MaxPromptRunes: 4000,
		PersistHistory: true,
		OTEL:           config.OTELConfig{ServiceName: "cli-test"},
		Gemini:         config.GeminiConfig{RetryDelay: time.Millisecond},
	}
	return &Context{
		Config:   cfg,
		Out:      &out,
		Prompter: pr,
		Open: func(ctx context.Context, cfg config.Config) (*app.App, error) {
			return app.New(ctx, cfg, app.Options{DB: db, Model: stubModel{}})
		},
	}, &out
}

func onboardFlags(t *testing.T, c *Context) {
	t.Helper()
	cmd := &OnboardCmd{Faith: "Believer", Denomination: "Baptist", Version: "esv", Language: "English", Yes: true}
	if err := cmd.Run(c); err != nil {
		t.Fatalf("onboard: %v", err)
	}
}

func TestOnboard_FlagsAndForm(t *testing.T) {
	c, out := newContext(t, &scriptedPrompter{prefs: func(p domain.UserPreferences) domain.UserPreferences {
		p.Language = "Chinese (Simplified)"
		return p
	}})

	onboardFlags(t, c)
	if !strings.Contains(out.String(), "Saved: Believer, Baptist, ESV, English") {
		t.Fatalf("out = %q", out.String())
	}

	out.Reset()
	if err := (&OnboardCmd{Denomination: "Catholic"}).Run(c); err != nil {
		t.Fatalf("onboard form: %v", err)
	}
	if !strings.Contains(out.String(), "Catholic, ESV, Chinese (Simplified)") {
		t.Fatalf("form result not saved: %q", out.String())
	}
}

func TestSearch_RequiresOnboarding(t *testing.T) {
	c, _ := newContext(t, nil)
	err := (&SearchCmd{Query: []string{"peace"}}).Run(c)
	if !errors.Is(err, services.ErrNotOnboarded) {
		t.Fatalf("want ErrNotOnboarded, got %v", err)
	}
}

func TestTurns_PrintReplyAndUsage(t *testing.T) {
	c, out := newContext(t, nil)
	onboardFlags(t, c)

	out.Reset()
	if err := (&AskCmd{Question: []string{"how", "to", "rest?"}}).Run(c); err != nil {
		t.Fatalf("ask: %v", err)
	}
	got := out.String()
	for _, want := range []string{"Be still.", "Psalm 46:10", "- What is peace?", "(29 requests left today)"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in:\n%s", want, got)
		}
	}

	out.Reset()
	if err := (UsageCmd{}).Run(c); err != nil {
		t.Fatalf("usage: %v", err)
	}
	if !strings.Contains(out.String(), "29 of 30 requests left") {
		t.Fatalf("usage = %q", out.String())
	}
}

func TestQuiz_PlaysThroughAndBlocksReplay(t *testing.T) {
	pr := &scriptedPrompter{answers: []int{1, 0}}
	c, out := newContext(t, pr)
	onboardFlags(t, c)

	out.Reset()
	if err := (QuizCmd{}).Run(c); err != nil {
		t.Fatalf("quiz: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Correct!") || !strings.Contains(got, "Not quite: Bethlehem") || !strings.Contains(got, "Score: 1 / 2") {
		t.Fatalf("quiz output:\n%s", got)
	}

	out.Reset()
	if err := (QuizCmd{}).Run(c); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "already played") || !strings.Contains(got, "Score: 1\n") {
		t.Fatalf("replay output: %q", out.String())
	}
}

func TestChapter_Streams(t *testing.T) {
	c, out := newContext(t, nil)
	onboardFlags(t, c)
	out.Reset()
	if err := (&ChapterCmd{Chapter: []string{"psalm", "23:1"}}).Run(c); err != nil {
		t.Fatalf("chapter: %v", err)
	}
	if !strings.Contains(out.String(), "# Psalm 23\n**1** The Lord is my shepherd") {
		t.Fatalf("chapter output: %q", out.String())
	}
}

func TestKeyCommands(t *testing.T) {
	keyring.MockInit()
	c, out := newContext(t, &scriptedPrompter{secret: "typed-key"})

	if err := (&KeySetCmd{}).Run(c); err != nil {
		t.Fatalf("key set: %v", err)
	}
	if v, _ := keys.Get(); v != "typed-key" {
		t.Fatalf("stored = %q", v)
	}
	if err := (&KeySetCmd{Key: "arg-key"}).Run(c); err != nil {
		t.Fatalf("key set arg: %v", err)
	}
	if v, _ := keys.Get(); v != "arg-key" {
		t.Fatalf("stored = %q", v)
	}
	if err := (KeyDeleteCmd{}).Run(c); err != nil {
		t.Fatalf("key delete: %v", err)
	}
	if err := (KeyDeleteCmd{}).Run(c); !errors.Is(err, keys.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
	if !strings.Contains(out.String(), "API key removed.") {
		t.Fatalf("out = %q", out.String())
	}
}

func TestSessionOverride(t *testing.T) {
	c, out := newContext(t, nil)
	c.Session = "shared"
	onboardFlags(t, c)

	c.Session = "other"
	out.Reset()
	if err := (VerseCmd{}).Run(c); err != nil {
		t.Fatalf("verse: %v", err)
	}
	if out.Len() == 0 {
		t.Fatal("expected a verse")
	}
	if err := (&PrayCmd{Topic: []string{"my", "family"}}).Run(c); !errors.Is(err, services.ErrNotOnboarded) {
		t.Fatalf("other session must not inherit onboarding, got %v", err)
	}
}
