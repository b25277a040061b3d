package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"studyhub-service/internal/app"
	"studyhub-service/internal/domain"
	"studyhub-service/internal/infra/memory"
)

type stubRecommender struct {
	calls   int
	lastReq app.RecommendationRequest
	advice  app.Advice
	err     error
}

func (s *stubRecommender) Recommend(_ context.Context, req app.RecommendationRequest) (app.Advice, error) {
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return app.Advice{}, s.err
	}
	return s.advice, nil
}

type fixture struct {
	service     *app.AssessmentService
	ledger      *memory.Ledger
	recommender *stubRecommender
}

func newFixture(opts app.Options) *fixture {
	subjects := []domain.Subject{
		{ID: "math", Name: "Mathematics"},
		{ID: "physics", Name: "Physics"},
	}
	questions := map[string]domain.Question{
		"q-math": {
			ID:        "q-math",
			SubjectID: "math",
			Text:      "What is 2 + 2?",
			Options: []domain.Option{
				{Text: "3", Correct: false},
				{Text: "4", Correct: true},
				{Text: "5", Correct: false},
			},
			Explanation: "Four.",
		},
		"q-physics": {
			ID:        "q-physics",
			SubjectID: "physics",
			Text:      "Unit of force?",
			Options: []domain.Option{
				{Text: "Newton", Correct: true},
				{Text: "Joule", Correct: false},
			},
			Explanation: "Newton.",
		},
	}
	users := map[string]domain.User{
		"u1": {ID: "u1", Name: "Alice", WeeklyGoal: 50, CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		"u2": {ID: "u2", Name: "Bob", WeeklyGoal: 0, CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
	}

	ledger := memory.NewLedger()
	content := memory.NewContentRepository(memory.NewStaticContentLoader(subjects, questions, users), 5*time.Minute)
	recommender := &stubRecommender{advice: app.Advice{Recommendations: "practice daily", StudyPlan: "30 minutes per weak subject"}}
	return &fixture{
		service:     app.NewAssessmentService(ledger, content, recommender, opts),
		ledger:      ledger,
		recommender: recommender,
	}
}

func TestSubmitAnswerScoresAndAggregates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.Options{AllowRepeats: true})

	result, err := f.service.SubmitAnswer(ctx, domain.AnswerSubmission{
		UserID: "u1", QuestionID: "q-math", SelectedOption: 1, TimeSpent: 12,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Outcome.Correct || result.Outcome.CorrectOption != 1 {
		t.Fatalf("expected correct outcome, got %+v", result.Outcome)
	}
	if result.Aggregate.TotalQuestions != 1 || result.Aggregate.CorrectAnswers != 1 {
		t.Fatalf("expected aggregate 1/1, got %+v", result.Aggregate)
	}

	result, err = f.service.SubmitAnswer(ctx, domain.AnswerSubmission{
		UserID: "u1", QuestionID: "q-math", SelectedOption: 0, TimeSpent: 9,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Outcome.Correct {
		t.Fatalf("expected incorrect outcome")
	}
	if result.Aggregate.TotalQuestions != 2 || result.Aggregate.CorrectAnswers != 1 {
		t.Fatalf("expected aggregate 2/1, got %+v", result.Aggregate)
	}
	if result.Accuracy != 50 {
		t.Fatalf("expected 50%% accuracy, got %f", result.Accuracy)
	}

	records, err := f.service.Answers(ctx, "u1")
	if err != nil {
		t.Fatalf("answers: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 history records, got %d", len(records))
	}
}

func TestSubmitAnswerFailedEvaluationLeavesLedgerUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.Options{AllowRepeats: true})

	_, err := f.service.SubmitAnswer(ctx, domain.AnswerSubmission{
		UserID: "u1", QuestionID: "q-math", SelectedOption: 7,
	})
	if !errors.Is(err, domain.ErrInvalidSelection) {
		t.Fatalf("expected ErrInvalidSelection, got %v", err)
	}

	aggregates, err := f.ledger.AllAggregates(ctx)
	if err != nil {
		t.Fatalf("all aggregates: %v", err)
	}
	if len(aggregates) != 0 {
		t.Fatalf("ledger must stay untouched on failed evaluation, got %+v", aggregates)
	}
	records, _ := f.ledger.AnswersForUser(ctx, "u1")
	if len(records) != 0 {
		t.Fatalf("history must stay untouched on failed evaluation")
	}
}

func TestSubmitAnswerUnknownQuestion(t *testing.T) {
	f := newFixture(app.Options{AllowRepeats: true})
	_, err := f.service.SubmitAnswer(context.Background(), domain.AnswerSubmission{
		UserID: "u1", QuestionID: "missing", SelectedOption: 0,
	})
	if !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
}

func TestSubmitAnswerDedupePolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.Options{AllowRepeats: false})

	if _, err := f.service.SubmitAnswer(ctx, domain.AnswerSubmission{
		UserID: "u1", QuestionID: "q-math", SelectedOption: 1,
	}); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	_, err := f.service.SubmitAnswer(ctx, domain.AnswerSubmission{
		UserID: "u1", QuestionID: "q-math", SelectedOption: 0,
	})
	if !errors.Is(err, domain.ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}

	aggregates, _ := f.service.Aggregates(ctx, "u1")
	if len(aggregates) != 1 || aggregates[0].TotalQuestions != 1 {
		t.Fatalf("duplicate must not re-score, got %+v", aggregates)
	}
}

func TestWeeklyProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.Options{AllowRepeats: true})
	f.service.WithClock(func() time.Time {
		return time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	})

	for i := 0; i < 3; i++ {
		if _, err := f.service.SubmitAnswer(ctx, domain.AnswerSubmission{
			UserID: "u1", QuestionID: "q-math", SelectedOption: 1,
		}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	progress, err := f.service.WeeklyProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.AnsweredThisWeek != 3 || progress.WeeklyGoal != 50 {
		t.Fatalf("expected 3/50, got %+v", progress)
	}
	if progress.Ratio != 3.0/50.0 {
		t.Fatalf("unexpected ratio %f", progress.Ratio)
	}
}

func TestWeeklyProgressInvalidGoal(t *testing.T) {
	f := newFixture(app.Options{AllowRepeats: true})
	if _, err := f.service.WeeklyProgress(context.Background(), "u2"); !errors.Is(err, domain.ErrInvalidGoal) {
		t.Fatalf("expected ErrInvalidGoal, got %v", err)
	}
}

func TestAnalyzeFiltersWeakSubjectsAscending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.Options{AllowRepeats: true, WeakThreshold: 70})

	week := app.ISOWeekLabel(time.Now())
	seed := func(subjectID string, total, correct int) {
		for i := 0; i < total; i++ {
			if _, err := f.ledger.Record(ctx, "u1", subjectID, week, i < correct); err != nil {
				t.Fatalf("seed %s: %v", subjectID, err)
			}
		}
	}
	seed("math", 10, 8)    // 80%, above threshold
	seed("physics", 10, 3) // 30%, weak

	advice, err := f.service.Analyze(ctx, "u1")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(advice.WeakSubjects) != 1 {
		t.Fatalf("expected only physics flagged, got %+v", advice.WeakSubjects)
	}
	ws := advice.WeakSubjects[0]
	if ws.SubjectName != "Physics" || ws.Accuracy != 30 || ws.TotalQuestions != 10 {
		t.Fatalf("unexpected weak subject %+v", ws)
	}
	if advice.Recommendations != "practice daily" || advice.StudyPlan != "30 minutes per weak subject" {
		t.Fatalf("expected recommender advice passed through, got %+v", advice)
	}
	if f.recommender.lastReq.OverallAccuracy != 55 {
		t.Fatalf("expected overall accuracy 55, got %f", f.recommender.lastReq.OverallAccuracy)
	}
}

func TestAnalyzeNoDataSkipsRecommender(t *testing.T) {
	f := newFixture(app.Options{AllowRepeats: true})
	_, err := f.service.Analyze(context.Background(), "u1")
	if !errors.Is(err, domain.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if f.recommender.calls != 0 {
		t.Fatalf("recommender must not be called without data, calls=%d", f.recommender.calls)
	}
}

func TestAnalyzeRecommenderFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.Options{AllowRepeats: true})
	f.recommender.err = errors.New("upstream 502")

	if _, err := f.service.SubmitAnswer(ctx, domain.AnswerSubmission{
		UserID: "u1", QuestionID: "q-math", SelectedOption: 0,
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err := f.service.Analyze(ctx, "u1")
	if !errors.Is(err, domain.ErrAnalysisUnavailable) {
		t.Fatalf("expected ErrAnalysisUnavailable, got %v", err)
	}
}

func TestSubscribeRankingReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.Options{AllowRepeats: true})

	ch, cancel, err := f.service.SubscribeRanking(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	initial := <-ch
	if len(initial.Entries) != 0 {
		t.Fatalf("expected empty initial snapshot, got %+v", initial.Entries)
	}

	if _, err := f.service.SubmitAnswer(ctx, domain.AnswerSubmission{
		UserID: "u1", QuestionID: "q-math", SelectedOption: 1,
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	update := <-ch
	if len(update.Entries) != 1 || update.Entries[0].UserName != "Alice" || update.Entries[0].CorrectAnswers != 1 {
		t.Fatalf("expected Alice leading with 1 correct, got %+v", update.Entries)
	}
}
