package domain

import "errors"

// ErrQuestionNotFound indicates the question catalog has no such question.
var ErrQuestionNotFound = errors.New("question not found")

// ValidationError rejects a submission before any write or publish happens.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid submission: " + e.Reason
}

// PersistenceError means the durable stats write failed. The submission is
// aborted and no answer.submitted event is ever published for it.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "stats write failed: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// PublishError means the bus rejected a saga-critical publish after the
// durable write already succeeded. The stats increment is NOT rolled back,
// so local state runs ahead of the announcement until the caller retries.
type PublishError struct {
	Subject string
	Err     error
}

func (e *PublishError) Error() string {
	return "publish to " + e.Subject + " failed: " + e.Err.Error()
}

func (e *PublishError) Unwrap() error { return e.Err }
