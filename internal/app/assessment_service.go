package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"studyhub-service/internal/domain"
)

// Ledger is the authoritative store of per-(user,subject) aggregates and
// submission history. Record must be atomic per key: concurrent submissions for
// the same (user,subject) pair must not lose an increment.
type Ledger interface {
	Record(ctx context.Context, userID, subjectID, weekLabel string, correct bool) (domain.SubjectAggregate, error)
	AggregatesForUser(ctx context.Context, userID string) ([]domain.SubjectAggregate, error)
	AllAggregates(ctx context.Context) ([]domain.SubjectAggregate, error)
	WeeklyCount(ctx context.Context, userID, weekLabel string) (int, error)
	HasAnswered(ctx context.Context, userID, questionID string) (bool, error)
	LogAnswer(ctx context.Context, rec domain.AnswerRecord) error
	AnswersForUser(ctx context.Context, userID string) ([]domain.AnswerRecord, error)
}

// ContentRepository loads subjects, questions, and users from the content store
// (postgres, cache, or static fixtures).
type ContentRepository interface {
	ListSubjects(ctx context.Context) ([]domain.Subject, error)
	GetSubject(ctx context.Context, subjectID string) (domain.Subject, error)
	GetQuestion(ctx context.Context, questionID string) (domain.Question, error)
	GetUser(ctx context.Context, userID string) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// RecommendationRequest is the payload exchanged with the external recommender.
type RecommendationRequest struct {
	UserID          string
	WeakSubjects    []domain.WeakSubject
	OverallAccuracy float64
	SubjectsStudied int
}

// Advice is the recommender's response.
type Advice struct {
	Recommendations string
	StudyPlan       string
}

// Recommender generates study advice from a weak-subject summary. Content may
// vary between calls with identical input; calling repeatedly is safe.
type Recommender interface {
	Recommend(ctx context.Context, req RecommendationRequest) (Advice, error)
}

// Options tune submission policy and analysis thresholds.
type Options struct {
	// AllowRepeats permits re-answering an already-answered question.
	AllowRepeats bool
	// WeakThreshold is the accuracy percentage below which a subject counts as weak.
	WeakThreshold float64
	// RankingLimit caps leaderboard size.
	RankingLimit int
}

// DefaultWeakThreshold marks subjects under 70% accuracy as weak.
const DefaultWeakThreshold = 70.0

// AssessmentService contains the scoring and analytics use cases.
type AssessmentService struct {
	ledger      Ledger
	content     ContentRepository
	recommender Recommender
	opts        Options

	now    func() time.Time
	weekOf func(time.Time) string

	mu          sync.Mutex
	subscribers map[chan domain.RankingSnapshot]struct{}
}

// SubmitResult pairs the evaluation outcome with the post-update aggregate
// snapshot, giving the submitter read-your-own-write visibility.
type SubmitResult struct {
	Outcome   domain.AnswerOutcome    `json:"outcome"`
	Aggregate domain.SubjectAggregate `json:"aggregate"`
	Accuracy  float64                 `json:"accuracy"`
}

func NewAssessmentService(ledger Ledger, content ContentRepository, recommender Recommender, opts Options) *AssessmentService {
	if opts.WeakThreshold <= 0 {
		opts.WeakThreshold = DefaultWeakThreshold
	}
	if opts.RankingLimit <= 0 {
		opts.RankingLimit = DefaultRankingLimit
	}
	return &AssessmentService{
		ledger:      ledger,
		content:     content,
		recommender: recommender,
		opts:        opts,
		now:         time.Now,
		weekOf:      ISOWeekLabel,
		subscribers: make(map[chan domain.RankingSnapshot]struct{}),
	}
}

// WithClock is test-only for deterministic timestamps and week buckets.
func (s *AssessmentService) WithClock(now func() time.Time) *AssessmentService {
	s.now = now
	return s
}

// ISOWeekLabel buckets a timestamp into its ISO-8601 week, e.g. "2026-W35".
func ISOWeekLabel(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// SubmitAnswer evaluates a submission and, only on successful evaluation,
// records it in the ledger. A failed evaluation leaves every counter untouched.
func (s *AssessmentService) SubmitAnswer(ctx context.Context, sub domain.AnswerSubmission) (SubmitResult, error) {
	question, err := s.content.GetQuestion(ctx, sub.QuestionID)
	if err != nil {
		return SubmitResult{}, err
	}

	outcome, err := Evaluate(question, sub.SelectedOption)
	if err != nil {
		return SubmitResult{}, err
	}

	if !s.opts.AllowRepeats {
		answered, err := s.ledger.HasAnswered(ctx, sub.UserID, sub.QuestionID)
		if err != nil {
			return SubmitResult{}, err
		}
		if answered {
			return SubmitResult{}, domain.ErrDuplicateSubmission
		}
	}

	now := s.now()
	if err := s.ledger.LogAnswer(ctx, domain.AnswerRecord{
		UserID:         sub.UserID,
		QuestionID:     sub.QuestionID,
		SelectedOption: sub.SelectedOption,
		Correct:        outcome.Correct,
		TimeSpent:      sub.TimeSpent,
		AnsweredAt:     now,
	}); err != nil {
		return SubmitResult{}, err
	}

	agg, err := s.ledger.Record(ctx, sub.UserID, question.SubjectID, s.weekOf(now), outcome.Correct)
	if err != nil {
		return SubmitResult{}, err
	}

	s.broadcastRanking(ctx)

	return SubmitResult{Outcome: outcome, Aggregate: agg, Accuracy: agg.Accuracy()}, nil
}

// Aggregates returns the per-subject aggregates for one user.
func (s *AssessmentService) Aggregates(ctx context.Context, userID string) ([]domain.SubjectAggregate, error) {
	return s.ledger.AggregatesForUser(ctx, userID)
}

// Answers returns the user's submission history.
func (s *AssessmentService) Answers(ctx context.Context, userID string) ([]domain.AnswerRecord, error) {
	return s.ledger.AnswersForUser(ctx, userID)
}

// Subjects lists the available subjects.
func (s *AssessmentService) Subjects(ctx context.Context) ([]domain.Subject, error) {
	return s.content.ListSubjects(ctx)
}

// Question fetches a question by id.
func (s *AssessmentService) Question(ctx context.Context, questionID string) (domain.Question, error) {
	return s.content.GetQuestion(ctx, questionID)
}

// Ranking derives the leaderboard fresh from all aggregates.
func (s *AssessmentService) Ranking(ctx context.Context, limit int) (domain.RankingSnapshot, error) {
	if limit <= 0 {
		limit = s.opts.RankingLimit
	}
	aggregates, err := s.ledger.AllAggregates(ctx)
	if err != nil {
		return domain.RankingSnapshot{}, err
	}
	users, err := s.content.ListUsers(ctx)
	if err != nil {
		return domain.RankingSnapshot{}, err
	}
	return domain.RankingSnapshot{
		Entries:   Rank(aggregates, users, limit),
		UpdatedAt: s.now(),
	}, nil
}

// WeeklyProgress reports the user's answer volume in the current week bucket
// against their weekly goal.
func (s *AssessmentService) WeeklyProgress(ctx context.Context, userID string) (domain.WeeklyProgress, error) {
	user, err := s.content.GetUser(ctx, userID)
	if err != nil {
		return domain.WeeklyProgress{}, err
	}
	if user.WeeklyGoal <= 0 {
		return domain.WeeklyProgress{}, domain.ErrInvalidGoal
	}
	count, err := s.ledger.WeeklyCount(ctx, userID, s.weekOf(s.now()))
	if err != nil {
		return domain.WeeklyProgress{}, err
	}
	return domain.WeeklyProgress{
		AnsweredThisWeek: count,
		WeeklyGoal:       user.WeeklyGoal,
		Ratio:            float64(count) / float64(user.WeeklyGoal),
	}, nil
}

// Analyze builds the weak-subject summary and asks the recommender for advice.
// A user with no recorded answers yields ErrNoData without any external call.
func (s *AssessmentService) Analyze(ctx context.Context, userID string) (domain.StudyAdvice, error) {
	aggregates, err := s.ledger.AggregatesForUser(ctx, userID)
	if err != nil {
		return domain.StudyAdvice{}, err
	}

	totalAnswered, totalCorrect := 0, 0
	for _, agg := range aggregates {
		totalAnswered += agg.TotalQuestions
		totalCorrect += agg.CorrectAnswers
	}
	if totalAnswered == 0 {
		return domain.StudyAdvice{}, domain.ErrNoData
	}

	weak, err := s.weakSubjects(ctx, aggregates)
	if err != nil {
		return domain.StudyAdvice{}, err
	}

	advice, err := s.recommender.Recommend(ctx, RecommendationRequest{
		UserID:          userID,
		WeakSubjects:    weak,
		OverallAccuracy: float64(totalCorrect) / float64(totalAnswered) * 100,
		SubjectsStudied: len(aggregates),
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.StudyAdvice{}, err
		}
		return domain.StudyAdvice{}, fmt.Errorf("%w: %v", domain.ErrAnalysisUnavailable, err)
	}

	return domain.StudyAdvice{
		WeakSubjects:    weak,
		Recommendations: advice.Recommendations,
		StudyPlan:       advice.StudyPlan,
	}, nil
}

// weakSubjects filters aggregates below the threshold and orders them by
// accuracy ascending, weakest first.
func (s *AssessmentService) weakSubjects(ctx context.Context, aggregates []domain.SubjectAggregate) ([]domain.WeakSubject, error) {
	weak := make([]domain.WeakSubject, 0, len(aggregates))
	for _, agg := range aggregates {
		if agg.TotalQuestions == 0 || agg.Accuracy() >= s.opts.WeakThreshold {
			continue
		}
		subject, err := s.content.GetSubject(ctx, agg.SubjectID)
		if err != nil {
			return nil, err
		}
		weak = append(weak, domain.WeakSubject{
			SubjectName:    subject.Name,
			Accuracy:       agg.Accuracy(),
			TotalQuestions: agg.TotalQuestions,
		})
	}
	sort.Slice(weak, func(i, j int) bool {
		if weak[i].Accuracy != weak[j].Accuracy {
			return weak[i].Accuracy < weak[j].Accuracy
		}
		return weak[i].SubjectName < weak[j].SubjectName
	})
	return weak, nil
}

// SubscribeRanking returns a channel that receives a leaderboard snapshot after
// every scored submission. The caller must invoke cancel to avoid leaks.
func (s *AssessmentService) SubscribeRanking(ctx context.Context) (<-chan domain.RankingSnapshot, func(), error) {
	initial, err := s.Ranking(ctx, 0)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan domain.RankingSnapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

func (s *AssessmentService) broadcastRanking(ctx context.Context) {
	s.mu.Lock()
	idle := len(s.subscribers) == 0
	s.mu.Unlock()
	if idle {
		return
	}

	snapshot, err := s.Ranking(ctx, 0)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- snapshot:
		default:
			// Drop the stale frame so a slow client never blocks submissions.
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}
