package memory

import (
	"context"
	"sync"
	"time"

	"studyhub-service/internal/domain"
)

type aggKey struct {
	userID    string
	subjectID string
}

type weekKey struct {
	userID string
	week   string
}

type answerKey struct {
	userID     string
	questionID string
}

// aggregate holds the mutable counters for one (user,subject) pair. Each
// aggregate carries its own lock so independent keys never contend.
type aggregate struct {
	mu      sync.Mutex
	total   int
	correct int
	updated time.Time
}

// Ledger is an in-memory implementation of app.Ledger. The outer mutex only
// guards map membership; counter updates serialize on the per-key lock.
type Ledger struct {
	now func() time.Time

	mu         sync.RWMutex
	aggregates map[aggKey]*aggregate

	weeklyMu sync.Mutex
	weekly   map[weekKey]int

	historyMu sync.Mutex
	answered  map[answerKey]struct{}
	history   map[string][]domain.AnswerRecord
}

func NewLedger() *Ledger {
	return NewLedgerWithClock(time.Now)
}

// NewLedgerWithClock allows deterministic timestamps in tests.
func NewLedgerWithClock(now func() time.Time) *Ledger {
	return &Ledger{
		now:        now,
		aggregates: make(map[aggKey]*aggregate),
		weekly:     make(map[weekKey]int),
		answered:   make(map[answerKey]struct{}),
		history:    make(map[string][]domain.AnswerRecord),
	}
}

func (l *Ledger) getOrCreate(key aggKey) *aggregate {
	l.mu.RLock()
	agg, ok := l.aggregates[key]
	l.mu.RUnlock()
	if ok {
		return agg
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if agg, ok := l.aggregates[key]; ok {
		return agg
	}
	agg = &aggregate{}
	l.aggregates[key] = agg
	return agg
}

// Record increments the (user,subject) counters atomically and returns the
// post-update snapshot.
func (l *Ledger) Record(_ context.Context, userID, subjectID, weekLabel string, correct bool) (domain.SubjectAggregate, error) {
	agg := l.getOrCreate(aggKey{userID: userID, subjectID: subjectID})

	agg.mu.Lock()
	agg.total++
	if correct {
		agg.correct++
	}
	agg.updated = l.now()
	snap := domain.SubjectAggregate{
		UserID:         userID,
		SubjectID:      subjectID,
		TotalQuestions: agg.total,
		CorrectAnswers: agg.correct,
		LastUpdated:    agg.updated,
	}
	agg.mu.Unlock()

	l.weeklyMu.Lock()
	l.weekly[weekKey{userID: userID, week: weekLabel}]++
	l.weeklyMu.Unlock()

	return snap, nil
}

func (l *Ledger) AggregatesForUser(_ context.Context, userID string) ([]domain.SubjectAggregate, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.SubjectAggregate, 0)
	for key, agg := range l.aggregates {
		if key.userID != userID {
			continue
		}
		out = append(out, snapshot(key, agg))
	}
	return out, nil
}

func (l *Ledger) AllAggregates(_ context.Context) ([]domain.SubjectAggregate, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.SubjectAggregate, 0, len(l.aggregates))
	for key, agg := range l.aggregates {
		out = append(out, snapshot(key, agg))
	}
	return out, nil
}

func snapshot(key aggKey, agg *aggregate) domain.SubjectAggregate {
	agg.mu.Lock()
	defer agg.mu.Unlock()
	return domain.SubjectAggregate{
		UserID:         key.userID,
		SubjectID:      key.subjectID,
		TotalQuestions: agg.total,
		CorrectAnswers: agg.correct,
		LastUpdated:    agg.updated,
	}
}

func (l *Ledger) WeeklyCount(_ context.Context, userID, weekLabel string) (int, error) {
	l.weeklyMu.Lock()
	defer l.weeklyMu.Unlock()
	return l.weekly[weekKey{userID: userID, week: weekLabel}], nil
}

func (l *Ledger) HasAnswered(_ context.Context, userID, questionID string) (bool, error) {
	l.historyMu.Lock()
	defer l.historyMu.Unlock()
	_, ok := l.answered[answerKey{userID: userID, questionID: questionID}]
	return ok, nil
}

func (l *Ledger) LogAnswer(_ context.Context, rec domain.AnswerRecord) error {
	l.historyMu.Lock()
	defer l.historyMu.Unlock()
	l.answered[answerKey{userID: rec.UserID, questionID: rec.QuestionID}] = struct{}{}
	l.history[rec.UserID] = append(l.history[rec.UserID], rec)
	return nil
}

func (l *Ledger) AnswersForUser(_ context.Context, userID string) ([]domain.AnswerRecord, error) {
	l.historyMu.Lock()
	defer l.historyMu.Unlock()
	records := l.history[userID]
	out := make([]domain.AnswerRecord, len(records))
	copy(out, records)
	return out, nil
}
