package social

import (
	"errors"

	"github.com/videotube/backend/internal/auth"
)

var (
	// ErrUnauthenticated is returned when the acting user is missing or unknown.
	ErrUnauthenticated = auth.ErrUnauthenticated
	// ErrInvalidTarget indicates the target id is malformed, of the wrong type for the
	// relation, or does not exist.
	ErrInvalidTarget = errors.New("invalid relationship target")
	// ErrDuplicateRelationship is reported by stores when an insert hits the unique
	// (actor, target, target type, kind) index.
	ErrDuplicateRelationship = errors.New("duplicate relationship")
	// ErrConflictRetryExhausted is returned when a toggle lost the insert race twice.
	ErrConflictRetryExhausted = errors.New("relationship toggle conflicted after retry")
	// ErrUnknownActor is reported by stores when the acting user does not exist.
	ErrUnknownActor = errors.New("unknown relationship actor")
)
