package grading

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// GradingResult is the typed score breakdown returned by the grader.
type GradingResult struct {
	Analysis   string         `json:"analysis"`
	Scores     map[string]int `json:"scores"`
	TotalScore int            `json:"totalScore"`
}

const gradingResultSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["analysis", "scores", "totalScore"],
  "properties": {
    "analysis": {"type": "string"},
    "scores": {
      "type": "object",
      "additionalProperties": {"type": "integer"}
    },
    "totalScore": {"type": "integer"}
  }
}`

var resultSchema = jsonschema.MustCompileString("grading_result.schema.json", gradingResultSchema)

// ParseResponse extracts and decodes the JSON payload embedded in raw grader text.
func ParseResponse(raw string) (GradingResult, error) {
	candidate, err := ExtractCandidate(raw)
	if err != nil {
		return GradingResult{}, err
	}
	return DecodeResult(candidate)
}

// ExtractCandidate returns the substring from the first '{' to the last '}'
// inclusive. Prose around the payload is discarded.
func ExtractCandidate(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")

	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("%w: no JSON object found in grader response", ErrResponseFormat)
	}

	return raw[start : end+1], nil
}

// DecodeResult decodes candidate and validates it against the result shape.
func DecodeResult(candidate string) (GradingResult, error) {
	var document interface{}
	if err := json.Unmarshal([]byte(candidate), &document); err != nil {
		return GradingResult{}, fmt.Errorf("%w: parse grader json: %w", ErrResponseFormat, err)
	}

	if err := resultSchema.Validate(document); err != nil {
		return GradingResult{}, fmt.Errorf("%w: %w", ErrResponseFormat, err)
	}

	var payload struct {
		Analysis   string             `json:"analysis"`
		Scores     map[string]float64 `json:"scores"`
		TotalScore float64            `json:"totalScore"`
	}
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return GradingResult{}, fmt.Errorf("%w: decode grader json: %w", ErrResponseFormat, err)
	}

	result := GradingResult{
		Analysis:   payload.Analysis,
		Scores:     make(map[string]int, len(payload.Scores)),
		TotalScore: int(math.Round(payload.TotalScore)),
	}
	for criterion, score := range payload.Scores {
		result.Scores[criterion] = int(math.Round(score))
	}

	return result, nil
}

// MissingCriteria lists rubric criteria that have no score in result, in rubric order.
func MissingCriteria(rubric Rubric, result GradingResult) []string {
	var missing []string
	for _, criterion := range rubric.Criteria {
		if _, ok := result.Scores[criterion.Description]; !ok {
			missing = append(missing, criterion.Description)
		}
	}
	return missing
}
