package ai

import "context"

// DefaultSystemPrompt is the system instruction sent with every grading request.
const DefaultSystemPrompt = "You are a code reviewer."

// CompletionRequest is a single-turn request: one system instruction and one user message.
type CompletionRequest struct {
	System string
	Prompt string
}

// Grader is a text-in, text-out completion service used to grade projects.
// Implementations return the model's reply verbatim; parsing is the caller's job.
type Grader interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Settings are the sampling parameters shared by all providers.
type Settings struct {
	Model       string
	MaxTokens   int
	Temperature float32
}
