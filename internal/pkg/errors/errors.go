package errors

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalid          = errors.New("invalid")
	ErrConflict         = errors.New("conflict")
	ErrTooMany          = errors.New("too many requests")
	ErrInternal         = errors.New("internal")
	ErrSnapshotMismatch = errors.New("index snapshot mismatch")

	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	ErrEmbeddingFailure     = errors.New("embedding failure")
	ErrGenerationTimeout    = errors.New("generation timeout")
	ErrGenerationFailure    = errors.New("generation failure")
)

// ErrConversationNotFound matches both itself and ErrNotFound.
var ErrConversationNotFound error = &notFoundErr{msg: "conversation not found"}

type notFoundErr struct {
	msg string
}

func (e *notFoundErr) Error() string {
	return e.msg
}

func (e *notFoundErr) Is(target error) bool {
	return target == ErrNotFound
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsRetryable(err error) bool {
	return errors.Is(err, ErrEmbeddingFailure) ||
		errors.Is(err, ErrGenerationTimeout) ||
		errors.Is(err, ErrGenerationFailure)
}
