package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

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

// ContentRepository caches questions and the subject list with TTL to avoid
// repeated store hits; user reads pass through because accounts are mutated
// externally.
type ContentRepository struct {
	loader ContentLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu             sync.RWMutex
	questions      map[string]cachedQuestion
	subjects       []domain.Subject
	subjectsExpiry time.Time
}

type cachedQuestion struct {
	question  domain.Question
	expiresAt time.Time
}

func NewContentRepository(loader ContentLoader, ttl time.Duration) *ContentRepository {
	return &ContentRepository{
		loader:    loader,
		ttl:       ttl,
		clock:     time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		questions: make(map[string]cachedQuestion),
	}
}

func (r *ContentRepository) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.questions[questionID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.question, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do("question:"+questionID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.questions[questionID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.question, nil
		}
		r.mu.RUnlock()

		question, err := r.loader.LoadQuestion(ctx, questionID)
		if err != nil {
			return domain.Question{}, err
		}

		r.mu.Lock()
		r.questions[questionID] = cachedQuestion{
			question:  question,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return question, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func (r *ContentRepository) ListSubjects(ctx context.Context) ([]domain.Subject, error) {
	now := r.clock()

	r.mu.RLock()
	if r.subjects != nil && r.subjectsExpiry.After(now) {
		subjects := r.subjects
		r.mu.RUnlock()
		return subjects, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do("subjects", func() (interface{}, error) {
		subjects, err := r.loader.LoadSubjects(ctx)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.subjects = subjects
		r.subjectsExpiry = r.clock().Add(r.ttlWithJitter())
		r.mu.Unlock()
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

func (r *ContentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticContentLoader is a map-backed loader (useful for tests/demos).
type StaticContentLoader struct {
	subjects  []domain.Subject
	questions map[string]domain.Question
	users     map[string]domain.User
}

func NewStaticContentLoader(subjects []domain.Subject, questions map[string]domain.Question, users map[string]domain.User) *StaticContentLoader {
	return &StaticContentLoader{subjects: subjects, questions: questions, users: users}
}

func (l *StaticContentLoader) LoadSubjects(_ context.Context) ([]domain.Subject, error) {
	return l.subjects, nil
}

func (l *StaticContentLoader) LoadQuestion(_ context.Context, questionID string) (domain.Question, error) {
	if question, ok := l.questions[questionID]; ok {
		return question, nil
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

func (l *StaticContentLoader) LoadUser(_ context.Context, userID string) (domain.User, error) {
	if user, ok := l.users[userID]; ok {
		return user, nil
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (l *StaticContentLoader) LoadUsers(_ context.Context) ([]domain.User, error) {
	users := make([]domain.User, 0, len(l.users))
	for _, user := range l.users {
		users = append(users, user)
	}
	return users, nil
}
