package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrVoteNotFound         = errors.New("vote not found")
	ErrInvalidVoteID        = errors.New("invalid vote id")
	ErrVoteClosed           = errors.New("vote is closed")
	ErrAlreadyVoted         = errors.New("voter has already voted")
	ErrNotVoted             = errors.New("voter did not vote on this vote")
	ErrResetRequestNotFound = errors.New("reset request not found")
	ErrNotFreeText          = errors.New("vote is not a free text vote")
	ErrInvalidCredentials   = errors.New("invalid admin password")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInternal             = errors.New("internal server error")
)

// ValidationError carries per-field messages for input rejected before any
// store call is made.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

func (e *ValidationError) Add(field, message string) {
	if _, ok := e.Fields[field]; ok {
		return
	}
	e.Fields[field] = message
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// OperationError is the single failure class for store and AI calls. Message is
// the user-facing text shown by clients; Err is the provider error.
type OperationError struct {
	Op      string
	Message string
	Err     error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
