package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/gema-grader/internal/models"
)

// EvaluateRequest is the body of POST /evaluate.
type EvaluateRequest struct {
	RepoURL         string   `json:"repoUrl" validate:"required,url,max=2048"`
	Title           string   `json:"title" validate:"required,max=128"`
	CustomTestCases []string `json:"customTestCases" validate:"omitempty,max=50,dive,max=1000"`
	// Criteria is accepted as an alias of CustomTestCases.
	Criteria []string `json:"criteria" validate:"omitempty,max=50,dive,max=1000"`
}

// CustomCriteria returns the caller supplied rubric, preferring customTestCases.
func (r EvaluateRequest) CustomCriteria() []string {
	if len(r.CustomTestCases) > 0 {
		return r.CustomTestCases
	}
	return r.Criteria
}

// EvaluationResponse describes a stored evaluation.
type EvaluationResponse struct {
	ID         string         `json:"id"`
	RepoURL    string         `json:"repo_url"`
	Title      string         `json:"title"`
	Kind       string         `json:"kind"`
	Status     string         `json:"status"`
	TotalScore int            `json:"total_score"`
	TotalMarks int            `json:"total_marks"`
	Analysis   string         `json:"analysis,omitempty"`
	Scores     map[string]int `json:"scores,omitempty"`
	Files      []string       `json:"files,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
	Error      string         `json:"error,omitempty"`
	Provider   string         `json:"provider"`
	Cached     bool           `json:"cached"`
	DurationMS int64          `json:"duration_ms"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewEvaluationResponse converts an Evaluation model into a DTO.
func NewEvaluationResponse(evaluation models.Evaluation) EvaluationResponse {
	response := EvaluationResponse{
		ID:         evaluation.ID,
		RepoURL:    evaluation.RepoURL,
		Title:      evaluation.Title,
		Kind:       evaluation.Kind,
		Status:     evaluation.Status,
		TotalScore: evaluation.TotalScore,
		TotalMarks: evaluation.TotalMarks,
		Analysis:   evaluation.Analysis,
		Error:      evaluation.Error,
		Provider:   evaluation.Provider,
		Cached:     evaluation.Cached,
		DurationMS: evaluation.DurationMS,
		CreatedAt:  evaluation.CreatedAt,
	}

	if len(evaluation.Scores) > 0 {
		response.Scores = make(map[string]int, len(evaluation.Scores))
		for criterion, value := range evaluation.Scores {
			switch v := value.(type) {
			case float64:
				response.Scores[criterion] = int(v)
			case int:
				response.Scores[criterion] = v
			case json.Number:
				if n, err := v.Int64(); err == nil {
					response.Scores[criterion] = int(n)
				}
			}
		}
	}

	if len(evaluation.Files) > 0 {
		_ = json.Unmarshal(evaluation.Files, &response.Files)
	}
	if len(evaluation.Warnings) > 0 {
		_ = json.Unmarshal(evaluation.Warnings, &response.Warnings)
	}

	return response
}

// NewEvaluationResponseSlice converts a slice of Evaluation models.
func NewEvaluationResponseSlice(evaluations []models.Evaluation) []EvaluationResponse {
	responses := make([]EvaluationResponse, 0, len(evaluations))
	for _, evaluation := range evaluations {
		responses = append(responses, NewEvaluationResponse(evaluation))
	}
	return responses
}
