package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"studyhub-service/internal/app"
	"studyhub-service/internal/domain"
)

// Handler exposes the assessment use cases over REST plus a websocket ranking
// stream.
type Handler struct {
	service  *app.AssessmentService
	upgrader websocket.Upgrader
}

func NewHandler(service *app.AssessmentService) *Handler {
	return &Handler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Register wires the routes into the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/subjects", h.listSubjects)
	mux.HandleFunc("GET /api/questions/{id}", h.getQuestion)
	mux.HandleFunc("POST /api/answers", h.submitAnswer)
	mux.HandleFunc("GET /api/answers", h.listAnswers)
	mux.HandleFunc("GET /api/results", h.listAggregates)
	mux.HandleFunc("GET /api/ranking", h.getRanking)
	mux.HandleFunc("GET /api/progress", h.getProgress)
	mux.HandleFunc("POST /api/ai/analyze", h.analyze)
	mux.HandleFunc("GET /ws/ranking", h.serveRankingWS)
}

type errorResponse struct {
	Error string `json:"error"`
}

type optionView struct {
	Text string `json:"text"`
}

// questionView hides the correct flags from clients.
type questionView struct {
	ID          string       `json:"id"`
	SubjectID   string       `json:"subject_id"`
	Difficulty  string       `json:"difficulty"`
	Text        string       `json:"question_text"`
	Options     []optionView `json:"options"`
	Explanation string       `json:"explanation,omitempty"`
}

func toQuestionView(q domain.Question) questionView {
	options := make([]optionView, len(q.Options))
	for i, opt := range q.Options {
		options[i] = optionView{Text: opt.Text}
	}
	return questionView{
		ID:         q.ID,
		SubjectID:  q.SubjectID,
		Difficulty: q.Difficulty,
		Text:       q.Text,
		Options:    options,
	}
}

func (h *Handler) listSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.service.Subjects(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subjects)
}

func (h *Handler) getQuestion(w http.ResponseWriter, r *http.Request) {
	question, err := h.service.Question(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuestionView(question))
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var sub domain.AnswerSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if sub.UserID == "" || sub.QuestionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id and question_id are required"})
		return
	}
	if sub.TimeSpent < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "time_spent must be non-negative"})
		return
	}

	result, err := h.service.SubmitAnswer(r.Context(), sub)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) listAnswers(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "userId is required"})
		return
	}
	records, err := h.service.Answers(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

type aggregateView struct {
	domain.SubjectAggregate
	Accuracy float64 `json:"accuracy"`
}

func (h *Handler) listAggregates(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "userId is required"})
		return
	}
	aggregates, err := h.service.Aggregates(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	views := make([]aggregateView, len(aggregates))
	for i, agg := range aggregates {
		views[i] = aggregateView{SubjectAggregate: agg, Accuracy: agg.Accuracy()}
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) getRanking(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = parsed
	}
	snapshot, err := h.service.Ranking(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) getProgress(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "userId is required"})
		return
	}
	progress, err := h.service.WeeklyProgress(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

type analyzeRequest struct {
	UserID string `json:"user_id"`
}

type analyzeResponse struct {
	domain.StudyAdvice
	NoData  bool   `json:"no_data,omitempty"`
	Message string `json:"message,omitempty"`
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id is required"})
		return
	}

	advice, err := h.service.Analyze(r.Context(), req.UserID)
	if errors.Is(err, domain.ErrNoData) {
		// A precondition signal, not a failure: the client should prompt the
		// user to answer some questions first.
		writeJSON(w, http.StatusOK, analyzeResponse{
			NoData:  true,
			Message: "answer some questions first to receive a personalized analysis",
		})
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{StudyAdvice: advice})
}

// serveRankingWS streams a fresh leaderboard snapshot to the client after every
// scored submission.
func (h *Handler) serveRankingWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.service.SubscribeRanking(r.Context())
	if err != nil {
		_ = conn.WriteJSON(errorResponse{Error: err.Error()})
		return
	}
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Drain reads so close frames are processed; clients only listen.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(snapshot); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidSelection), errors.Is(err, domain.ErrInvalidGoal):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrDuplicateSubmission):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrQuestionNotFound), errors.Is(err, domain.ErrSubjectNotFound), errors.Is(err, domain.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrMalformedQuestion):
		// Data integrity problem; log the detail, keep the response generic.
		log.Printf("malformed question: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "question data is invalid"})
	case errors.Is(err, domain.ErrAnalysisUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "analysis temporarily unavailable, try again"})
	default:
		log.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}
