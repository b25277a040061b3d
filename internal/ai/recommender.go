package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"studyhub-service/internal/app"
)

const defaultBaseURL = "https://api.openai.com/v1/chat/completions"

// OpenAIRecommender implements app.Recommender against an OpenAI-compatible
// chat-completions endpoint.
type OpenAIRecommender struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewOpenAIRecommender(apiKey, baseURL, model string) *OpenAIRecommender {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIRecommender{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type adviceDoc struct {
	Recommendations string `json:"recommendations"`
	StudyPlan       string `json:"study_plan"`
}

// Recommend asks the model for study advice based on the weak-subject summary.
// Any transport or payload failure is returned as-is; the caller decides how to
// classify it. No advice is ever fabricated locally.
func (r *OpenAIRecommender) Recommend(ctx context.Context, req app.RecommendationRequest) (app.Advice, error) {
	if r.apiKey == "" {
		return app.Advice{}, errors.New("recommender api key not configured")
	}

	body := chatRequest{
		Model: r.model,
		Messages: []chatMessage{
			{
				Role:    "system",
				Content: "You are an educational assistant for exam preparation. Analyze the student's performance and reply with practical, motivating advice. Respond with valid JSON only, in the shape {\"recommendations\": \"...\", \"study_plan\": \"...\"}.",
			},
			{Role: "user", Content: buildPrompt(req)},
		},
		Temperature:    0.7,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return app.Advice{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL, bytes.NewReader(data))
	if err != nil {
		return app.Advice{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return app.Advice{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return app.Advice{}, fmt.Errorf("recommender status %d: %s", resp.StatusCode, payload)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return app.Advice{}, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return app.Advice{}, fmt.Errorf("recommender error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return app.Advice{}, errors.New("no response choices returned")
	}

	var doc adviceDoc
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &doc); err != nil {
		return app.Advice{}, fmt.Errorf("parse advice JSON: %w", err)
	}
	if doc.Recommendations == "" && doc.StudyPlan == "" {
		return app.Advice{}, errors.New("empty advice payload")
	}

	return app.Advice{
		Recommendations: strings.TrimSpace(doc.Recommendations),
		StudyPlan:       strings.TrimSpace(doc.StudyPlan),
	}, nil
}

func buildPrompt(req app.RecommendationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Student performance analysis.\n\n")
	fmt.Fprintf(&b, "Overall accuracy: %.1f%% across %d subjects.\n\n", req.OverallAccuracy, req.SubjectsStudied)
	if len(req.WeakSubjects) == 0 {
		b.WriteString("No subject is below the weakness threshold.\n")
	} else {
		b.WriteString("Subjects below the weakness threshold:\n")
		for _, ws := range req.WeakSubjects {
			fmt.Fprintf(&b, "- %s: %.1f%% accuracy over %d questions\n", ws.SubjectName, ws.Accuracy, ws.TotalQuestions)
		}
	}
	b.WriteString("\nProvide:\n1. Specific study recommendations (2-3 sentences)\n2. A focused weekly study plan (3-4 sentences)")
	return b.String()
}
