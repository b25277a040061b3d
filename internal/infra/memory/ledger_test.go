package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"studyhub-service/internal/domain"
)

func TestLedgerRecordCounts(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger()

	results := []bool{true, false, true, true, false}
	var last domain.SubjectAggregate
	for _, correct := range results {
		var err error
		last, err = ledger.Record(ctx, "u1", "math", "2026-W35", correct)
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	if last.TotalQuestions != 5 || last.CorrectAnswers != 3 {
		t.Fatalf("expected 5/3, got %+v", last)
	}
	if last.CorrectAnswers > last.TotalQuestions || last.CorrectAnswers < 0 {
		t.Fatalf("invariant violated: %+v", last)
	}

	count, err := ledger.WeeklyCount(ctx, "u1", "2026-W35")
	if err != nil {
		t.Fatalf("weekly count: %v", err)
	}
	if count != 5 {
		t.Fatalf("expected weekly count 5, got %d", count)
	}
	if count, _ := ledger.WeeklyCount(ctx, "u1", "2026-W36"); count != 0 {
		t.Fatalf("expected empty bucket for other week, got %d", count)
	}
}

func TestLedgerConcurrentRecordsLoseNothing(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger()

	const n = 200
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(correct bool) {
			defer wg.Done()
			if _, err := ledger.Record(ctx, "u1", "math", "2026-W35", correct); err != nil {
				t.Errorf("record: %v", err)
			}
		}(i%2 == 0)
	}
	wg.Wait()

	aggregates, err := ledger.AggregatesForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("aggregates: %v", err)
	}
	if len(aggregates) != 1 {
		t.Fatalf("expected one aggregate, got %d", len(aggregates))
	}
	if aggregates[0].TotalQuestions != n {
		t.Fatalf("lost updates: expected total %d, got %d", n, aggregates[0].TotalQuestions)
	}
	if aggregates[0].CorrectAnswers != n/2 {
		t.Fatalf("expected %d correct, got %d", n/2, aggregates[0].CorrectAnswers)
	}
}

func TestLedgerSeparatesKeys(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger()

	ledger.Record(ctx, "u1", "math", "2026-W35", true)
	ledger.Record(ctx, "u1", "physics", "2026-W35", false)
	ledger.Record(ctx, "u2", "math", "2026-W35", true)

	u1, _ := ledger.AggregatesForUser(ctx, "u1")
	if len(u1) != 2 {
		t.Fatalf("expected 2 aggregates for u1, got %d", len(u1))
	}
	all, _ := ledger.AllAggregates(ctx)
	if len(all) != 3 {
		t.Fatalf("expected 3 aggregates total, got %d", len(all))
	}
}

func TestLedgerAnswerHistory(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger()

	answered, err := ledger.HasAnswered(ctx, "u1", "q1")
	if err != nil || answered {
		t.Fatalf("expected not answered, got %v %v", answered, err)
	}

	rec := domain.AnswerRecord{
		UserID: "u1", QuestionID: "q1", SelectedOption: 1,
		Correct: true, TimeSpent: 10, AnsweredAt: time.Now(),
	}
	if err := ledger.LogAnswer(ctx, rec); err != nil {
		t.Fatalf("log answer: %v", err)
	}

	answered, _ = ledger.HasAnswered(ctx, "u1", "q1")
	if !answered {
		t.Fatalf("expected answered after log")
	}

	records, err := ledger.AnswersForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 1 || records[0].QuestionID != "q1" {
		t.Fatalf("unexpected history %+v", records)
	}
}
