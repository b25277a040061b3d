package app

import (
	"studyhub-service/internal/domain"
)

// Evaluate scores a selected option against a question. Pure: no side effects,
// deterministic for identical inputs.
func Evaluate(question domain.Question, selected int) (domain.AnswerOutcome, error) {
	if selected < 0 || selected >= len(question.Options) {
		return domain.AnswerOutcome{}, domain.ErrInvalidSelection
	}

	correctIdx := -1
	for i, opt := range question.Options {
		if opt.Correct {
			if correctIdx >= 0 {
				return domain.AnswerOutcome{}, domain.ErrMalformedQuestion
			}
			correctIdx = i
		}
	}
	if correctIdx < 0 {
		return domain.AnswerOutcome{}, domain.ErrMalformedQuestion
	}

	return domain.AnswerOutcome{
		Correct:       question.Options[selected].Correct,
		CorrectOption: correctIdx,
		Explanation:   question.Explanation,
	}, nil
}
