package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"studyhub-service/internal/domain"
)

// ContentLoader loads study content JSONB from Postgres.
type ContentLoader struct {
	pool *pgxpool.Pool
}

func NewContentLoader(pool *pgxpool.Pool) *ContentLoader {
	return &ContentLoader{pool: pool}
}

func (l *ContentLoader) LoadSubjects(ctx context.Context) ([]domain.Subject, error) {
	rows, err := l.pool.Query(ctx, `SELECT data FROM subjects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load subjects: %w", err)
	}
	defer rows.Close()

	var subjects []domain.Subject
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		var subject domain.Subject
		if err := json.Unmarshal(raw, &subject); err != nil {
			return nil, fmt.Errorf("unmarshal subject: %w", err)
		}
		subjects = append(subjects, subject)
	}
	return subjects, rows.Err()
}

func (l *ContentLoader) LoadQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM questions WHERE id=$1`, questionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	var question domain.Question
	if err := json.Unmarshal(raw, &question); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal question: %w", err)
	}
	return question, nil
}

func (l *ContentLoader) LoadUser(ctx context.Context, userID string) (domain.User, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM users WHERE id=$1`, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return domain.User{}, fmt.Errorf("unmarshal user: %w", err)
	}
	return user, nil
}

func (l *ContentLoader) LoadUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := l.pool.Query(ctx, `SELECT data FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		var user domain.User
		if err := json.Unmarshal(raw, &user); err != nil {
			return nil, fmt.Errorf("unmarshal user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
