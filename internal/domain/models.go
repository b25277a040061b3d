package domain

import "time"

// Subject is static reference data owned by content management.
type Subject struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// Option is a possible answer; owned by its question, never shared.
type Option struct {
	Text    string `json:"text"`
	Correct bool   `json:"is_correct"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID          string   `json:"id"`
	SubjectID   string   `json:"subject_id"`
	Difficulty  string   `json:"difficulty"` // easy, medium, hard
	Text        string   `json:"question_text"`
	Options     []Option `json:"options"`
	Explanation string   `json:"explanation"`
}

// User is account data, read-only to this service.
type User struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	WeeklyGoal int       `json:"weekly_goal"`
	CreatedAt  time.Time `json:"created_at"`
}

// AnswerSubmission is the scoring signal from clients.
type AnswerSubmission struct {
	UserID         string `json:"user_id"`
	QuestionID     string `json:"question_id"`
	SelectedOption int    `json:"selected_option"`
	TimeSpent      int    `json:"time_spent"`
}

// AnswerOutcome summarizes the evaluation of a single submission.
type AnswerOutcome struct {
	Correct       bool   `json:"is_correct"`
	CorrectOption int    `json:"correct_option_index"`
	Explanation   string `json:"explanation"`
}

// AnswerRecord is one row of a user's submission history.
type AnswerRecord struct {
	UserID         string    `json:"user_id"`
	QuestionID     string    `json:"question_id"`
	SelectedOption int       `json:"selected_option"`
	Correct        bool      `json:"is_correct"`
	TimeSpent      int       `json:"time_spent"`
	AnsweredAt     time.Time `json:"answered_at"`
}

// SubjectAggregate is the ledger's unit of mutation: running totals for one
// (user, subject) pair. Counters only ever increase.
type SubjectAggregate struct {
	UserID         string    `json:"user_id"`
	SubjectID      string    `json:"subject_id"`
	TotalQuestions int       `json:"total_questions"`
	CorrectAnswers int       `json:"correct_answers"`
	LastUpdated    time.Time `json:"last_updated"`
}

// Accuracy derives the hit rate in percent. Zero attempts yields 0 rather
// than dividing by zero.
func (a SubjectAggregate) Accuracy() float64 {
	if a.TotalQuestions == 0 {
		return 0
	}
	return float64(a.CorrectAnswers) / float64(a.TotalQuestions) * 100
}

// RankingEntry is a transient leaderboard row, recomputed on every query.
type RankingEntry struct {
	UserName       string  `json:"user_name"`
	TotalQuestions int     `json:"total_questions"`
	CorrectAnswers int     `json:"correct_answers"`
	Accuracy       float64 `json:"accuracy"`
}

// RankingSnapshot captures the ordered leaderboard at a point in time.
type RankingSnapshot struct {
	Entries   []RankingEntry `json:"entries"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// WeeklyProgress reports answer volume against the user's weekly goal.
// Ratio is not capped; consumers clamp it for display.
type WeeklyProgress struct {
	AnsweredThisWeek int     `json:"answered_this_week"`
	WeeklyGoal       int     `json:"weekly_goal"`
	Ratio            float64 `json:"progress_ratio"`
}

// WeakSubject is one entry of the analysis summary sent to the recommender.
type WeakSubject struct {
	SubjectName    string  `json:"subject_name"`
	Accuracy       float64 `json:"accuracy"`
	TotalQuestions int     `json:"total_questions"`
}

// StudyAdvice is the analysis result surfaced to the caller.
type StudyAdvice struct {
	WeakSubjects    []WeakSubject `json:"weak_subjects"`
	Recommendations string        `json:"recommendations"`
	StudyPlan       string        `json:"study_plan"`
}
