// Package prompt turns user preferences and user text into model requests:
// the shared system instruction, one prompt per task and the JSON response
// schemas the parser expects back.
package prompt

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"google.golang.org/genai"

	"github.com/tbourn/bibleai/internal/domain"
	"github.com/tbourn/bibleai/internal/llm"
	"github.com/tbourn/bibleai/internal/telemetry"
)

const (
	// SearchTemperature keeps scripture search close to the source text.
	SearchTemperature float32 = 0.3
	// AskThinkingBudget gives pastoral answers room to reason.
	AskThinkingBudget int32 = 1024
	// QuizQuestions is the size of the daily quiz.
	QuizQuestions = 10
	// HistoryTurns bounds how many prior messages are sent with a question.
	HistoryTurns = 10
)

// SystemInstruction is shared by every task and pins the assistant to the
// user's Bible version, tradition and language.
func SystemInstruction(p domain.UserPreferences) string {
	var b strings.Builder
	b.WriteString("You are BibleAI, a specialized spiritual assistant.\n\n")
	b.WriteString("USER CONTEXT:\n")
	fmt.Fprintf(&b, "- Faith Status: %s\n", p.FaithStatus)
	fmt.Fprintf(&b, "- Denomination/Theological Background: %s\n", p.Denomination)
	fmt.Fprintf(&b, "- Preferred Bible Version: %s\n", p.BibleVersion)
	fmt.Fprintf(&b, "- Language: %s\n\n", p.Language)
	b.WriteString("CORE DIRECTIVES:\n")
	fmt.Fprintf(&b, "1. STRICT SOURCE ADHERENCE: Only provide scripture content that exists in the %s. Do not paraphrase unless asked.\n", p.BibleVersion)
	fmt.Fprintf(&b, "2. THEOLOGICAL ALIGNMENT: Respect the traditions of %[1]s while maintaining biblical accuracy. Where denominations disagree, state the %[1]s view objectively and acknowledge others when needed.\n", p.Denomination)
	b.WriteString("3. NO HALLUCINATIONS: If a verse does not exist or the Bible does not address a topic, say so clearly.\n")
	b.WriteString("4. TONE: Gentle, pastoral, wise and encouraging.\n")
	b.WriteString("5. FORMATTING: Use Markdown. Bold verse references. Blockquote scripture text.\n")
	fmt.Fprintf(&b, "6. LANGUAGE: Respond strictly in %[1]s. If the user writes in another language, still reply in %[1]s unless explicitly asked to translate.\n", p.Language)
	return b.String()
}

func answerRules(p domain.UserPreferences) string {
	return fmt.Sprintf(`
Respond with a JSON object:
- "answer": the full response in Markdown, in %[1]s.
- "followUpQuestions": exactly 3 short questions the user might ask next, in %[1]s.
- "citedVerses": every passage you quoted, each with "ref" (e.g. John 3:16), "text" (full verse text from the %[2]s in %[1]s) and "chapter" (e.g. John 3).`, p.Language, p.BibleVersion)
}

// Search builds the scripture search request.
func Search(p domain.UserPreferences, query string) llm.Request {
	body := fmt.Sprintf(`Find relevant Bible verses for the search query: %q.

Requirements:
1. List the 3-5 most relevant passages from the %[2]s.
2. For each passage give the reference (e.g. John 3:16) and the full text in %[3]s.
3. Add a one-sentence note on why it applies to %[1]q, in %[3]s.
4. Ensure all text is in %[3]s.`, query, p.BibleVersion, p.Language)

	t := SearchTemperature
	return llm.Request{
		Action:            telemetry.EventSearch,
		SystemInstruction: SystemInstruction(p),
		Prompt:            body + "\n" + answerRules(p),
		Schema:            AnswerSchema(),
		Temperature:       &t,
	}
}

// Ask builds the pastoral question request. The most recent history turns are
// included as conversation context.
func Ask(p domain.UserPreferences, question string, history []domain.ChatMessage) llm.Request {
	var b strings.Builder
	if len(history) > HistoryTurns {
		history = history[len(history)-HistoryTurns:]
	}
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Text)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, `The user asks: %q

Answer as a wise, empathetic pastor from a %[2]s background.
1. Start with a direct, compassionate answer in %[3]s.
2. Back up every claim with scripture from the %[4]s.
3. The user is a %[5]s: keep it simpler for Seekers and go deeper for Church Leaders.
4. End with a short encouraging thought or challenge.
5. Ensure the entire response is in %[3]s.`, question, p.Denomination, p.Language, p.BibleVersion, p.FaithStatus)

	budget := AskThinkingBudget
	return llm.Request{
		Action:            telemetry.EventAskPastor,
		SystemInstruction: SystemInstruction(p),
		Prompt:            b.String() + "\n" + answerRules(p),
		Schema:            AnswerSchema(),
		ThinkingBudget:    &budget,
	}
}

// Pray builds the prayer generation request.
func Pray(p domain.UserPreferences, topic string) llm.Request {
	body := fmt.Sprintf(`Write a personalized prayer regarding: %q.

Style:
- Language: %[2]s
- Use language appropriate for a %[3]s believer.
- Weave 1-2 verses from the %[4]s naturally into the prayer.
- Structure: Invocation -> Petition -> Thanksgiving -> Closing.
- Keep it under 200 words.`, topic, p.Language, p.Denomination, p.BibleVersion)

	return llm.Request{
		Action:            telemetry.EventGeneratePrayer,
		SystemInstruction: SystemInstruction(p),
		Prompt:            body + "\n" + answerRules(p),
		Schema:            AnswerSchema(),
	}
}

// Quiz builds the daily quiz request. date seeds variety between days.
func Quiz(p domain.UserPreferences, date string) llm.Request {
	body := fmt.Sprintf(`Create the Bible trivia quiz for %[1]s.

Requirements:
1. Exactly %[2]d questions of mixed difficulty covering both Testaments.
2. Each question has exactly 4 options and one correct answer; "correctIndex" is its 0-based position.
3. Give a one-sentence "explanation" and the supporting "reference" from the %[3]s.
4. Write everything in %[4]s.`, date, QuizQuestions, p.BibleVersion, p.Language)

	return llm.Request{
		Action:            telemetry.EventGenerateQuiz,
		SystemInstruction: SystemInstruction(p),
		Prompt:            body,
		Schema:            QuizSchema(),
	}
}

// Chapter builds the full-chapter reading request. The response is plain
// Markdown and is meant to be streamed.
func Chapter(p domain.UserPreferences, chapter string) llm.Request {
	body := fmt.Sprintf(`Provide the complete text of %[1]s from the %[2]s in %[3]s.

Requirements:
1. Start with the chapter title as a Markdown heading.
2. Give every verse in order, prefixed with its bold verse number.
3. Do not add commentary.`, NormalizeChapter(chapter), p.BibleVersion, p.Language)

	return llm.Request{
		Action:            telemetry.EventReadChapter,
		SystemInstruction: SystemInstruction(p),
		Prompt:            body,
	}
}

// NormalizeChapter trims and title-cases a chapter reference such as
// "1 john 4" to "1 John 4".
func NormalizeChapter(ref string) string {
	return cases.Title(language.English).String(strings.Join(strings.Fields(ref), " "))
}

// AnswerSchema describes {answer, followUpQuestions, citedVerses}.
func AnswerSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"answer": {Type: genai.TypeString},
			"followUpQuestions": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
			"citedVerses": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"ref":     {Type: genai.TypeString},
						"text":    {Type: genai.TypeString},
						"chapter": {Type: genai.TypeString},
					},
					Required: []string{"ref", "text"},
				},
			},
		},
		Required: []string{"answer", "followUpQuestions", "citedVerses"},
	}
}

// QuizSchema describes {questions: [{question, options, correctIndex, explanation, reference}]}.
func QuizSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"questions": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"question": {Type: genai.TypeString},
						"options": {
							Type:  genai.TypeArray,
							Items: &genai.Schema{Type: genai.TypeString},
						},
						"correctIndex": {Type: genai.TypeInteger},
						"explanation":  {Type: genai.TypeString},
						"reference":    {Type: genai.TypeString},
					},
					Required: []string{"question", "options", "correctIndex", "explanation", "reference"},
				},
			},
		},
		Required: []string{"questions"},
	}
}
