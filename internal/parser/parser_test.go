package parser

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tbourn/bibleai/internal/domain"
)

func TestParse_FencedJSON(t *testing.T) {
	raw := "```json\n{\"answer\":\"X\",\"followUpQuestions\":[],\"citedVerses\":[]}\n```"
	r := Parse(raw)
	if _, ok := r.(Parsed); !ok {
		t.Fatalf("expected Parsed, got %T", r)
	}
	if r.Answer() != "X" || len(r.FollowUps()) != 0 || len(r.References()) != 0 {
		t.Fatalf("unexpected result: %+v", r)
	}
}

func TestParse_PlainFenceAndNoFence(t *testing.T) {
	for _, raw := range []string{
		"```\n{\"answer\":\"Y\"}\n```",
		"  {\"answer\":\"Y\"}  ",
	} {
		r := Parse(raw)
		if r.Answer() != "Y" {
			t.Fatalf("Parse(%q).Answer() = %q", raw, r.Answer())
		}
		if r.FollowUps() == nil || r.References() == nil {
			t.Fatal("missing arrays must decode to empty, non-nil slices")
		}
	}
}

func TestParse_FullPayload(t *testing.T) {
	raw := `{"answer":"Grace","followUpQuestions":["a","b","c"],"citedVerses":[{"ref":"John 3:16","text":"For God so loved","chapter":"John 3"}]}`
	r := Parse(raw)
	want := Parsed{
		AnswerText:        "Grace",
		FollowUpQuestions: []string{"a", "b", "c"},
		CitedVerses:       []domain.BibleReference{{Ref: "John 3:16", Text: "For God so loved", Chapter: "John 3"}},
	}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_FallbackKeepsRaw(t *testing.T) {
	cases := []string{
		"Hello there",
		"{broken json",
		`["not","an","object"]`,
		`"just a string"`,
		"",
	}
	for _, raw := range cases {
		r := Parse(raw)
		fb, ok := r.(Fallback)
		if !ok {
			t.Fatalf("Parse(%q) = %T; want Fallback", raw, r)
		}
		if fb.Raw != raw || r.Answer() != raw {
			t.Fatalf("raw text must be kept unmodified: %q", fb.Raw)
		}
		if len(r.FollowUps()) != 0 || len(r.References()) != 0 {
			t.Fatal("fallback must have empty arrays")
		}
	}
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{}\n```": "{}",
		"```\n{}\n```":     "{}",
		"```JSON {}```":    "{}",
		"{}":               "{}",
		"  text  ":         "text",
	}
	for in, want := range cases {
		if got := StripFences(in); got != want {
			t.Fatalf("StripFences(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestParseQuiz_DropsInvalid(t *testing.T) {
	raw := "```json\n" + `{"questions":[
		{"question":"Who built the ark?","options":["Noah","Moses","David","Paul"],"correctIndex":0,"explanation":"Genesis 6","reference":"Genesis 6:14"},
		{"question":"Three options","options":["a","b","c"],"correctIndex":0},
		{"question":"Bad index","options":["a","b","c","d"],"correctIndex":4},
		{"question":"Negative","options":["a","b","c","d"],"correctIndex":-1}
	]}` + "\n```"
	qs, err := ParseQuiz(raw)
	if err != nil {
		t.Fatalf("ParseQuiz: %v", err)
	}
	if len(qs) != 1 || qs[0].Options[qs[0].CorrectIndex] != "Noah" {
		t.Fatalf("questions = %+v", qs)
	}
}

func TestParseQuiz_NotAnObject(t *testing.T) {
	for _, raw := range []string{"no quiz today", "{oops"} {
		if _, err := ParseQuiz(raw); !errors.Is(err, ErrNoQuizPayload) {
			t.Fatalf("ParseQuiz(%q) err = %v", raw, err)
		}
	}
}
