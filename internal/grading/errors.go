package grading

import "errors"

var (
	// ErrWorkspace indicates the working copy could not be prepared or a stale one could not be removed.
	ErrWorkspace = errors.New("workspace error")
	// ErrEntrypointNotFound indicates the project's entry artifact is absent.
	ErrEntrypointNotFound = errors.New("entrypoint not found")
	// ErrFileRead indicates a required source file could not be read.
	ErrFileRead = errors.New("file read error")
	// ErrInvalidRubric indicates the rubric has no criteria or no marks to distribute.
	ErrInvalidRubric = errors.New("invalid rubric")
	// ErrAIRequest indicates the grader call failed.
	ErrAIRequest = errors.New("ai request error")
	// ErrResponseFormat indicates the grader response did not contain a usable result.
	ErrResponseFormat = errors.New("response format error")
	// ErrUnknownKind indicates the requested project kind is not supported.
	ErrUnknownKind = errors.New("unknown project kind")
	// ErrInvalidRequest indicates the evaluation request is missing required input.
	ErrInvalidRequest = errors.New("invalid evaluation request")
)
