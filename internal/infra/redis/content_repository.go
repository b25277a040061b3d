package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"studyhub-service/internal/domain"
)

// ContentLoader fetches study content from a backing store (e.g., postgres).
type ContentLoader interface {
	LoadSubjects(ctx context.Context) ([]domain.Subject, error)
	LoadQuestion(ctx context.Context, questionID string) (domain.Question, error)
	LoadUser(ctx context.Context, userID string) (domain.User, error)
	LoadUsers(ctx context.Context) ([]domain.User, error)
}

// ContentRepository caches question and subject JSON in Redis and falls back to
// a loader on cache miss. User reads pass through because accounts are mutated
// by an external service.
type ContentRepository struct {
	client *redis.Client
	loader ContentLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewContentRepository(client *redis.Client, loader ContentLoader, ttl time.Duration) *ContentRepository {
	return &ContentRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ContentRepository) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	key := r.questionKey(questionID)

	if raw, err := r.client.Get(ctx, key).Result(); err == nil {
		var question domain.Question
		if err := json.Unmarshal([]byte(raw), &question); err == nil {
			return question, nil
		}
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := r.client.Get(ctx, key).Result(); err == nil {
			var question domain.Question
			if err := json.Unmarshal([]byte(raw), &question); err == nil {
				return question, nil
			}
		}

		question, err := r.loader.LoadQuestion(ctx, questionID)
		if err != nil {
			return domain.Question{}, err
		}

		if data, err := json.Marshal(question); err == nil {
			_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		}
		return question, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func (r *ContentRepository) ListSubjects(ctx context.Context) ([]domain.Subject, error) {
	key := r.subjectsKey()

	if raw, err := r.client.Get(ctx, key).Result(); err == nil {
		var subjects []domain.Subject
		if err := json.Unmarshal([]byte(raw), &subjects); err == nil {
			return subjects, nil
		}
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		subjects, err := r.loader.LoadSubjects(ctx)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(subjects); err == nil {
			_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		}
		return subjects, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Subject), nil
}

func (r *ContentRepository) GetSubject(ctx context.Context, subjectID string) (domain.Subject, error) {
	subjects, err := r.ListSubjects(ctx)
	if err != nil {
		return domain.Subject{}, err
	}
	for _, subject := range subjects {
		if subject.ID == subjectID {
			return subject, nil
		}
	}
	return domain.Subject{}, domain.ErrSubjectNotFound
}

func (r *ContentRepository) GetUser(ctx context.Context, userID string) (domain.User, error) {
	return r.loader.LoadUser(ctx, userID)
}

func (r *ContentRepository) ListUsers(ctx context.Context) ([]domain.User, error) {
	return r.loader.LoadUsers(ctx)
}

func (r *ContentRepository) questionKey(questionID string) string {
	return "content:question:" + questionID
}

func (r *ContentRepository) subjectsKey() string {
	return "content:subjects"
}

func (r *ContentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
