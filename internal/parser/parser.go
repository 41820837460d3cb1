// Package parser decodes model output into structured answers. Decoding
// never fails outward: text that is not a JSON object becomes a Fallback
// carrying the raw text so callers can still show it.
package parser

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/tbourn/bibleai/internal/domain"
)

// Result is either Parsed or Fallback.
type Result interface {
	Answer() string
	FollowUps() []string
	References() []domain.BibleReference
	isResult()
}

// Parsed is a successfully decoded answer.
type Parsed struct {
	AnswerText        string                  `json:"answer"`
	FollowUpQuestions []string                `json:"followUpQuestions"`
	CitedVerses       []domain.BibleReference `json:"citedVerses"`
}

func (p Parsed) Answer() string { return p.AnswerText }

func (p Parsed) FollowUps() []string {
	if p.FollowUpQuestions == nil {
		return []string{}
	}
	return p.FollowUpQuestions
}

func (p Parsed) References() []domain.BibleReference {
	if p.CitedVerses == nil {
		return []domain.BibleReference{}
	}
	return p.CitedVerses
}

func (Parsed) isResult() {}

// Fallback holds model output that could not be decoded.
type Fallback struct {
	Raw string
}

func (f Fallback) Answer() string { return f.Raw }
func (Fallback) FollowUps() []string { return []string{} }
func (Fallback) References() []domain.BibleReference { return []domain.BibleReference{} }
func (Fallback) isResult() {}

var (
	openFenceRE  = regexp.MustCompile("^```[A-Za-z0-9_-]*[ \t]*\r?\n?")
	closeFenceRE = regexp.MustCompile("\r?\n?```\\s*$")
)

// StripFences removes a leading ``` or ```json fence and a trailing ```
// fence from s, along with surrounding whitespace.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = openFenceRE.ReplaceAllString(s, "")
	s = closeFenceRE.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Parse decodes an answer object. Missing keys decode to empty values.
func Parse(raw string) Result {
	body := StripFences(raw)
	if !strings.HasPrefix(body, "{") {
		return Fallback{Raw: raw}
	}
	var p Parsed
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return Fallback{Raw: raw}
	}
	return p
}

// ErrNoQuizPayload is returned when quiz output is not a questions object.
var ErrNoQuizPayload = errors.New("quiz response is not a questions object")

// ParseQuiz decodes {"questions": [...]} and drops questions that do not
// have four options and an in-range correct index.
func ParseQuiz(raw string) ([]domain.QuizQuestion, error) {
	body := StripFences(raw)
	var payload struct {
		Questions []domain.QuizQuestion `json:"questions"`
	}
	if !strings.HasPrefix(body, "{") {
		return nil, ErrNoQuizPayload
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, errors.Join(ErrNoQuizPayload, err)
	}
	out := make([]domain.QuizQuestion, 0, len(payload.Questions))
	for _, q := range payload.Questions {
		if q.Valid() {
			out = append(out, q)
		}
	}
	return out, nil
}
