package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"studyhub-service/internal/domain"
)

func TestContentRepositoryCachesQuestions(t *testing.T) {
	loader := &countingLoader{
		ContentLoader: NewStaticContentLoader(sampleSubjects(), sampleQuestions(), nil),
	}
	repo := NewContentRepository(loader, time.Minute)

	if _, err := repo.GetQuestion(context.Background(), "q1"); err != nil {
		t.Fatalf("get question: %v", err)
	}
	if loader.questionCalls != 1 {
		t.Fatalf("expected loader once, got %d", loader.questionCalls)
	}

	if _, err := repo.GetQuestion(context.Background(), "q1"); err != nil {
		t.Fatalf("get question 2: %v", err)
	}
	if loader.questionCalls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.questionCalls)
	}
}

func TestContentRepositoryUnknownQuestion(t *testing.T) {
	repo := NewContentRepository(NewStaticContentLoader(nil, sampleQuestions(), nil), time.Minute)
	if _, err := repo.GetQuestion(context.Background(), "missing"); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
}

func TestContentRepositorySubjectLookup(t *testing.T) {
	repo := NewContentRepository(NewStaticContentLoader(sampleSubjects(), nil, nil), time.Minute)

	subject, err := repo.GetSubject(context.Background(), "math")
	if err != nil {
		t.Fatalf("get subject: %v", err)
	}
	if subject.Name != "Mathematics" {
		t.Fatalf("unexpected subject %+v", subject)
	}

	if _, err := repo.GetSubject(context.Background(), "biology"); !errors.Is(err, domain.ErrSubjectNotFound) {
		t.Fatalf("expected ErrSubjectNotFound, got %v", err)
	}
}

type countingLoader struct {
	ContentLoader
	questionCalls int
}

func (l *countingLoader) LoadQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	l.questionCalls++
	return l.ContentLoader.LoadQuestion(ctx, questionID)
}

func sampleSubjects() []domain.Subject {
	return []domain.Subject{
		{ID: "math", Name: "Mathematics", Icon: "calculator", Color: "#4F46E5"},
		{ID: "physics", Name: "Physics", Icon: "atom", Color: "#059669"},
	}
}

func sampleQuestions() map[string]domain.Question {
	return map[string]domain.Question{
		"q1": {
			ID:        "q1",
			SubjectID: "math",
			Text:      "What is 2 + 2?",
			Options: []domain.Option{
				{Text: "3", Correct: false},
				{Text: "4", Correct: true},
			},
			Explanation: "Four.",
		},
	}
}
