package app_test

import (
	"testing"
	"time"

	"studyhub-service/internal/app"
	"studyhub-service/internal/domain"
)

func rankingUsers() []domain.User {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []domain.User{
		{ID: "u1", Name: "Alice", CreatedAt: base},
		{ID: "u2", Name: "Bob", CreatedAt: base.Add(time.Hour)},
		{ID: "u3", Name: "Carol", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "u4", Name: "Dave", CreatedAt: base.Add(3 * time.Hour)},
	}
}

func TestRankOrdersByCorrectThenAccuracy(t *testing.T) {
	aggregates := []domain.SubjectAggregate{
		{UserID: "u1", SubjectID: "math", TotalQuestions: 10, CorrectAnswers: 5},
		{UserID: "u2", SubjectID: "math", TotalQuestions: 8, CorrectAnswers: 8},
		{UserID: "u3", SubjectID: "math", TotalQuestions: 16, CorrectAnswers: 8},
	}

	entries := app.Rank(aggregates, rankingUsers(), 10)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	// Bob and Carol both have 8 correct; Bob's accuracy (100%) wins.
	if entries[0].UserName != "Bob" || entries[1].UserName != "Carol" || entries[2].UserName != "Alice" {
		t.Fatalf("unexpected order: %+v", entries)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].CorrectAnswers > entries[i-1].CorrectAnswers {
			t.Fatalf("ranking not monotone in correct answers: %+v", entries)
		}
		if entries[i].CorrectAnswers == entries[i-1].CorrectAnswers && entries[i].Accuracy > entries[i-1].Accuracy {
			t.Fatalf("equal correct but accuracy increases: %+v", entries)
		}
	}
}

func TestRankSumsAcrossSubjects(t *testing.T) {
	aggregates := []domain.SubjectAggregate{
		{UserID: "u1", SubjectID: "math", TotalQuestions: 4, CorrectAnswers: 3},
		{UserID: "u1", SubjectID: "physics", TotalQuestions: 6, CorrectAnswers: 2},
	}

	entries := app.Rank(aggregates, rankingUsers(), 10)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].TotalQuestions != 10 || entries[0].CorrectAnswers != 5 {
		t.Fatalf("expected totals 10/5, got %+v", entries[0])
	}
	if entries[0].Accuracy != 50 {
		t.Fatalf("expected 50%% accuracy, got %f", entries[0].Accuracy)
	}
}

func TestRankTieBreaksFewerAttemptsThenCreation(t *testing.T) {
	aggregates := []domain.SubjectAggregate{
		// Same correct, same accuracy forced via equal ratios: 4/8 vs 4/8.
		{UserID: "u2", SubjectID: "math", TotalQuestions: 8, CorrectAnswers: 4},
		{UserID: "u1", SubjectID: "math", TotalQuestions: 8, CorrectAnswers: 4},
		// Same correct, lower total -> higher accuracy, ranked first.
		{UserID: "u3", SubjectID: "math", TotalQuestions: 5, CorrectAnswers: 4},
	}

	entries := app.Rank(aggregates, rankingUsers(), 10)
	if entries[0].UserName != "Carol" {
		t.Fatalf("expected Carol first (fewer attempts), got %+v", entries)
	}
	// u1 and u2 are fully tied; earlier account (Alice) wins.
	if entries[1].UserName != "Alice" || entries[2].UserName != "Bob" {
		t.Fatalf("expected creation-order tie-break, got %+v", entries)
	}
}

func TestRankExcludesZeroTotalsAndTruncates(t *testing.T) {
	aggregates := []domain.SubjectAggregate{
		{UserID: "u1", SubjectID: "math", TotalQuestions: 0, CorrectAnswers: 0},
		{UserID: "u2", SubjectID: "math", TotalQuestions: 3, CorrectAnswers: 1},
		{UserID: "u3", SubjectID: "math", TotalQuestions: 3, CorrectAnswers: 2},
		{UserID: "u4", SubjectID: "math", TotalQuestions: 3, CorrectAnswers: 3},
	}

	entries := app.Rank(aggregates, rankingUsers(), 2)
	if len(entries) != 2 {
		t.Fatalf("expected truncation to 2 entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.UserName == "Alice" {
			t.Fatalf("zero-total user must be excluded: %+v", entries)
		}
	}
}

func TestRankEmptyInput(t *testing.T) {
	if entries := app.Rank(nil, nil, 10); len(entries) != 0 {
		t.Fatalf("expected empty ranking, got %+v", entries)
	}
}
