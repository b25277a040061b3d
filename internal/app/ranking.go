package app

import (
	"sort"

	"studyhub-service/internal/domain"
)

// DefaultRankingLimit caps the leaderboard when callers pass no limit.
const DefaultRankingLimit = 10

type rankedUser struct {
	user    domain.User
	total   int
	correct int
}

// Rank folds per-subject aggregates into per-user totals and orders them into a
// leaderboard. Users without any answered question are excluded. Recomputed on
// every call; nothing is cached.
func Rank(aggregates []domain.SubjectAggregate, users []domain.User, limit int) []domain.RankingEntry {
	if limit <= 0 {
		limit = DefaultRankingLimit
	}

	byID := make(map[string]*rankedUser, len(users))
	for _, u := range users {
		byID[u.ID] = &rankedUser{user: u}
	}

	for _, agg := range aggregates {
		ru, ok := byID[agg.UserID]
		if !ok {
			// Aggregate for an unknown user; nothing to display.
			continue
		}
		ru.total += agg.TotalQuestions
		ru.correct += agg.CorrectAnswers
	}

	ranked := make([]*rankedUser, 0, len(byID))
	for _, ru := range byID {
		if ru.total > 0 {
			ranked = append(ranked, ru)
		}
	}

	// Order: correct desc, accuracy desc, fewer attempts first, then account age
	// so the ordering is total and deterministic.
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.correct != b.correct {
			return a.correct > b.correct
		}
		accA := float64(a.correct) / float64(a.total)
		accB := float64(b.correct) / float64(b.total)
		if accA != accB {
			return accA > accB
		}
		if a.total != b.total {
			return a.total < b.total
		}
		return a.user.CreatedAt.Before(b.user.CreatedAt)
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	entries := make([]domain.RankingEntry, len(ranked))
	for i, ru := range ranked {
		entries[i] = domain.RankingEntry{
			UserName:       ru.user.Name,
			TotalQuestions: ru.total,
			CorrectAnswers: ru.correct,
			Accuracy:       float64(ru.correct) / float64(ru.total) * 100,
		}
	}
	return entries
}
