package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"studyhub-service/internal/domain"
)

// Ledger keeps per-(user,subject) aggregates in Redis hashes:
//
//	HINCRBY ledger:{userID}:{subjectID} total 1
//	HINCRBY ledger:{userID}:{subjectID} correct {0|1}
//
// HINCRBY executes atomically server-side, so concurrent submissions for the
// same key never lose an increment and no client-side read-modify-write exists.
// Weekly counters live in plain keys bucketed by week label and expire after
// two weeks.
type Ledger struct {
	client    *redis.Client
	weeklyTTL time.Duration
	now       func() time.Time
}

func NewLedger(client *redis.Client) *Ledger {
	return &Ledger{
		client:    client,
		weeklyTTL: 14 * 24 * time.Hour,
		now:       time.Now,
	}
}

func (l *Ledger) Record(ctx context.Context, userID, subjectID, weekLabel string, correct bool) (domain.SubjectAggregate, error) {
	key := l.aggregateKey(userID, subjectID)
	now := l.now()

	correctDelta := int64(0)
	if correct {
		correctDelta = 1
	}

	pipe := l.client.TxPipeline()
	totalCmd := pipe.HIncrBy(ctx, key, "total", 1)
	correctCmd := pipe.HIncrBy(ctx, key, "correct", correctDelta)
	pipe.HSet(ctx, key, "updated", now.Unix())
	pipe.SAdd(ctx, l.userSubjectsKey(userID), subjectID)
	pipe.SAdd(ctx, l.usersKey(), userID)
	pipe.Incr(ctx, l.weeklyKey(userID, weekLabel))
	pipe.Expire(ctx, l.weeklyKey(userID, weekLabel), l.weeklyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.SubjectAggregate{}, fmt.Errorf("record aggregate: %w", err)
	}

	return domain.SubjectAggregate{
		UserID:         userID,
		SubjectID:      subjectID,
		TotalQuestions: int(totalCmd.Val()),
		CorrectAnswers: int(correctCmd.Val()),
		LastUpdated:    now,
	}, nil
}

func (l *Ledger) AggregatesForUser(ctx context.Context, userID string) ([]domain.SubjectAggregate, error) {
	subjectIDs, err := l.client.SMembers(ctx, l.userSubjectsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list user subjects: %w", err)
	}

	out := make([]domain.SubjectAggregate, 0, len(subjectIDs))
	for _, subjectID := range subjectIDs {
		agg, err := l.readAggregate(ctx, userID, subjectID)
		if err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, nil
}

func (l *Ledger) AllAggregates(ctx context.Context) ([]domain.SubjectAggregate, error) {
	userIDs, err := l.client.SMembers(ctx, l.usersKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list ledger users: %w", err)
	}

	out := make([]domain.SubjectAggregate, 0, len(userIDs))
	for _, userID := range userIDs {
		aggs, err := l.AggregatesForUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, aggs...)
	}
	return out, nil
}

func (l *Ledger) readAggregate(ctx context.Context, userID, subjectID string) (domain.SubjectAggregate, error) {
	fields, err := l.client.HGetAll(ctx, l.aggregateKey(userID, subjectID)).Result()
	if err != nil {
		return domain.SubjectAggregate{}, fmt.Errorf("read aggregate: %w", err)
	}

	agg := domain.SubjectAggregate{UserID: userID, SubjectID: subjectID}
	fmt.Sscanf(fields["total"], "%d", &agg.TotalQuestions)
	fmt.Sscanf(fields["correct"], "%d", &agg.CorrectAnswers)
	var updated int64
	fmt.Sscanf(fields["updated"], "%d", &updated)
	if updated > 0 {
		agg.LastUpdated = time.Unix(updated, 0)
	}
	return agg, nil
}

func (l *Ledger) WeeklyCount(ctx context.Context, userID, weekLabel string) (int, error) {
	count, err := l.client.Get(ctx, l.weeklyKey(userID, weekLabel)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("weekly count: %w", err)
	}
	return count, nil
}

func (l *Ledger) HasAnswered(ctx context.Context, userID, questionID string) (bool, error) {
	ok, err := l.client.SIsMember(ctx, l.answeredKey(userID), questionID).Result()
	if err != nil {
		return false, fmt.Errorf("check answered: %w", err)
	}
	return ok, nil
}

func (l *Ledger) LogAnswer(ctx context.Context, rec domain.AnswerRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}

	pipe := l.client.TxPipeline()
	pipe.SAdd(ctx, l.answeredKey(rec.UserID), rec.QuestionID)
	pipe.RPush(ctx, l.historyKey(rec.UserID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("log answer: %w", err)
	}
	return nil
}

func (l *Ledger) AnswersForUser(ctx context.Context, userID string) ([]domain.AnswerRecord, error) {
	raw, err := l.client.LRange(ctx, l.historyKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("answer history: %w", err)
	}

	out := make([]domain.AnswerRecord, 0, len(raw))
	for _, item := range raw {
		var rec domain.AnswerRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal answer: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (l *Ledger) aggregateKey(userID, subjectID string) string {
	return "ledger:" + userID + ":" + subjectID
}

func (l *Ledger) userSubjectsKey(userID string) string {
	return "ledger:subjects:" + userID
}

func (l *Ledger) usersKey() string {
	return "ledger:users"
}

func (l *Ledger) weeklyKey(userID, weekLabel string) string {
	return "weekly:" + userID + ":" + weekLabel
}

func (l *Ledger) answeredKey(userID string) string {
	return "answers:" + userID + ":questions"
}

func (l *Ledger) historyKey(userID string) string {
	return "answers:" + userID + ":log"
}
