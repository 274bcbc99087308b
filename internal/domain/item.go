package domain

import (
	"errors"
	"fmt"
)

// Common validation errors for generated items
var (
	ErrEmptyQuestion      = errors.New("question cannot be empty")
	ErrWrongOptionCount   = errors.New("quiz question must have exactly 4 options")
	ErrAnswerOutOfRange   = errors.New("answer index out of range")
	ErrEmptyFlashcardSide = errors.New("flashcard sides cannot be empty")
)

// QuizItem is one generated multiple-choice question.
type QuizItem struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      int      `json:"answer"`
	Explanation string   `json:"explanation,omitempty"`
}

// Validate checks if the QuizItem has valid data.
func (q *QuizItem) Validate() error {
	if q.Question == "" {
		return ErrEmptyQuestion
	}

	if len(q.Options) != 4 {
		return fmt.Errorf("%w: got %d", ErrWrongOptionCount, len(q.Options))
	}

	if q.Answer < 0 || q.Answer >= len(q.Options) {
		return fmt.Errorf("%w: %d", ErrAnswerOutOfRange, q.Answer)
	}

	for _, opt := range q.Options {
		if opt == "" {
			return fmt.Errorf("%w: empty option", ErrEmptyContent)
		}
	}

	return nil
}

// Flashcard is one generated question/answer pair.
type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// Validate checks if the Flashcard has valid data.
func (f *Flashcard) Validate() error {
	if f.Front == "" || f.Back == "" {
		return ErrEmptyFlashcardSide
	}
	return nil
}
