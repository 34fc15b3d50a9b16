package repositories

import "context"

// GeneratedAnswer is a backend answer and the sources it cites
type GeneratedAnswer struct {
	Text    string
	Sources []string
}

// AnswerGenerator produces the answer to one medical question on the
// backend side
type AnswerGenerator interface {
	Answer(ctx context.Context, question string) (GeneratedAnswer, error)
}
