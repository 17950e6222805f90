package model

import "errors"

// Sentinel errors shared across the orchestrator and HTTP layer. Validation
// errors never mutate session state; the handler maps each one to an HTTP
// status and a machine-readable reason code.
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrWrongPhase        = errors.New("operation not valid in current phase")
	ErrEmptyMessage      = errors.New("message is empty")
	ErrQuizNotReady      = errors.New("quiz has not been generated")
	ErrUnknownQuestion   = errors.New("unknown question id in submission")
	ErrIncompleteAnswers = errors.New("submission is missing answers")
	ErrDuplicateAnswer   = errors.New("duplicate answer for question id")
)
