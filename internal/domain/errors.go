package domain

import "errors"

var (
	// ErrInvalidSelection is returned when the selected option index is out of range.
	ErrInvalidSelection = errors.New("selected option out of range")
	// ErrMalformedQuestion indicates a question without exactly one correct option.
	ErrMalformedQuestion = errors.New("question does not have exactly one correct option")
	// ErrInvalidGoal indicates a non-positive weekly goal on the user's account.
	ErrInvalidGoal = errors.New("weekly goal must be positive")
	// ErrNoData signals that the user has no answers yet; not a failure.
	ErrNoData = errors.New("no answer data recorded")
	// ErrAnalysisUnavailable indicates the recommendation service failed; retryable.
	ErrAnalysisUnavailable = errors.New("analysis service unavailable")
	// ErrDuplicateSubmission is returned when repeat answers are disallowed by policy.
	ErrDuplicateSubmission = errors.New("question already answered")
	// ErrQuestionNotFound indicates the question id is unknown.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrSubjectNotFound indicates the subject id is unknown.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrUserNotFound indicates the user id is unknown.
	ErrUserNotFound = errors.New("user not found")
)
