package app

import (
	"context"
	"math/rand"

	"roots-quiz-service/internal/domain"
)

// AnswerCount is the number of choices in every answer set.
const AnswerCount = 4

// BuildAnswerSet draws a random question and pairs its definition with three
// distinct distractors from the rest of the store, in random order.
func BuildAnswerSet(ctx context.Context, store QuestionStore) (domain.AnswerSet, error) {
	question, err := store.SampleRandomQuestion(ctx)
	if err != nil {
		return domain.AnswerSet{}, err
	}
	correct := question.CorrectAnswer

	wrong, err := store.SampleDistinctWrongAnswers(ctx, correct, nil, AnswerCount-1)
	if err != nil {
		return domain.AnswerSet{}, err
	}

	seen := map[string]struct{}{correct: {}}
	answers := []string{correct}
	add := func(candidates []string) int {
		added := 0
		for _, c := range candidates {
			if len(answers) == AnswerCount {
				break
			}
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			answers = append(answers, c)
			added++
		}
		return added
	}
	add(wrong)

	// Top up until four distinct answers exist; a round that yields nothing
	// new means the store cannot supply enough definitions.
	for len(answers) < AnswerCount {
		more, err := store.SampleDistinctWrongAnswers(ctx, correct, answers[1:], AnswerCount-len(answers))
		if err != nil {
			return domain.AnswerSet{}, err
		}
		if add(more) == 0 {
			return domain.AnswerSet{}, domain.ErrNotEnoughAnswers
		}
	}

	rand.Shuffle(len(answers), func(i, j int) {
		answers[i], answers[j] = answers[j], answers[i]
	})

	return domain.AnswerSet{
		Question:      question.Prompt,
		CorrectAnswer: correct,
		Answers:       answers,
	}, nil
}
