package service

import (
	"errors"
	"fmt"
)

// Errors returned by the sync core. Every operation wraps exactly one of these, so
// callers classify with errors.Is. None of them leaves the cache in a partial state.
var (
	// ErrValidation covers bad input caught before any remote call:
	// empty names or texts, no category selected, unknown category.
	ErrValidation = errors.New("invalid input")

	// ErrNotAuthenticated means no user is signed in.
	ErrNotAuthenticated = errors.New("not signed in")

	// ErrNotLoaded means the signed-in user's data has not been loaded into the cache yet.
	ErrNotLoaded = errors.New("user data not loaded")

	// ErrRemoteWrite is a store failure while writing. The user may retry.
	ErrRemoteWrite = errors.New("remote write failed")

	// ErrRemoteRead is a store failure while reading.
	ErrRemoteRead = errors.New("remote read failed")

	// ErrProfileNotFound means the store has no document for the user.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrMalformedDocument means the stored document does not match the schema.
	ErrMalformedDocument = errors.New("malformed user document")

	// ErrRemovalInFlight rejects a task removal while another one is still writing.
	ErrRemovalInFlight = errors.New("another task removal is in progress")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Kind names the class of an outcome for views.
type Kind string

const (
	KindOK               Kind = "ok"
	KindValidation       Kind = "validation"
	KindNotAuthenticated Kind = "not_authenticated"
	KindNotLoaded        Kind = "not_loaded"
	KindRemoteWrite      Kind = "remote_write"
	KindRemoteRead       Kind = "remote_read"
	KindBusy             Kind = "busy"
	KindUnknown          Kind = "unknown"
)

// Outcome is what a view shows after invoking an operation.
type Outcome struct {
	OK      bool
	Kind    Kind
	Message string
}

// Describe classifies err into an Outcome. A nil error is a success.
func Describe(err error) Outcome {
	switch {
	case err == nil:
		return Outcome{OK: true, Kind: KindOK, Message: "Done."}
	case errors.Is(err, ErrValidation):
		return Outcome{Kind: KindValidation, Message: err.Error()}
	case errors.Is(err, ErrNotAuthenticated):
		return Outcome{Kind: KindNotAuthenticated, Message: "Please sign in first."}
	case errors.Is(err, ErrNotLoaded):
		return Outcome{Kind: KindNotLoaded, Message: "Your data is still loading. Try again in a moment."}
	case errors.Is(err, ErrRemovalInFlight):
		return Outcome{Kind: KindBusy, Message: "Still removing the previous task. Try again in a moment."}
	case errors.Is(err, ErrRemoteWrite):
		return Outcome{Kind: KindRemoteWrite, Message: "Could not save your change. Please try again."}
	case errors.Is(err, ErrProfileNotFound):
		return Outcome{Kind: KindRemoteRead, Message: "No profile exists for this account."}
	case errors.Is(err, ErrRemoteRead), errors.Is(err, ErrMalformedDocument):
		return Outcome{Kind: KindRemoteRead, Message: "Could not load your data. Please try again."}
	default:
		return Outcome{Kind: KindUnknown, Message: "Something went wrong."}
	}
}
