package generation

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/cychipo/examio-be-sub001/internal/domain"
)

// chunkSeparator joins the texts of a merged group into one prompt context.
const chunkSeparator = "\n\n"

const quizPromptTemplate = `You are an exam author. Based strictly on the study material below, write exactly {{.Count}} multiple-choice questions.

Rules:
- Every question must be answerable from the material alone.
- Each question has exactly 4 options.
- "answer" is the zero-based index of the correct option.
- "explanation" briefly justifies the correct option.

Respond with a JSON array only, no surrounding text, where each element has this shape:
{"question": "...", "options": ["...", "...", "...", "..."], "answer": 0, "explanation": "..."}

Study material:
{{.Text}}`

const flashcardPromptTemplate = `You are a study-aid author. Based strictly on the study material below, write exactly {{.Count}} flashcards.

Rules:
- Every card must be answerable from the material alone.
- "front" is a question or term, "back" is the answer or definition.

Respond with a JSON array only, no surrounding text, where each element has this shape:
{"front": "...", "back": "..."}

Study material:
{{.Text}}`

var (
	quizPrompt      = template.Must(template.New("quiz").Parse(quizPromptTemplate))
	flashcardPrompt = template.Must(template.New("flashcard").Parse(flashcardPromptTemplate))
)

type promptData struct {
	Count int
	Text  string
}

// buildPrompt renders the type-specific prompt for one chunk group.
func buildPrompt(jobType domain.JobType, group Group) (string, error) {
	texts := make([]string, 0, len(group.Chunks))
	for _, chunk := range group.Chunks {
		texts = append(texts, chunk.Text)
	}
	data := promptData{
		Count: group.Quota,
		Text:  strings.Join(texts, chunkSeparator),
	}

	var tmpl *template.Template
	switch jobType {
	case domain.JobTypeQuiz:
		tmpl = quizPrompt
	case domain.JobTypeFlashcard:
		tmpl = flashcardPrompt
	default:
		return "", fmt.Errorf("no prompt for job type %q", jobType)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}
