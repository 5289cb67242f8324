package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/models"
)

// RelationshipStore persists relationship edges. Presence of an edge means the
// relation is active.
type RelationshipStore interface {
	Exists(ctx context.Context, key models.RelationshipKey) (bool, error)
	// Insert returns ErrDuplicateRelationship when the edge already exists and
	// ErrUnknownActor when the actor does not.
	Insert(ctx context.Context, rel models.Relationship) error
	// Delete removes the edge. Removing an absent edge is not an error.
	Delete(ctx context.Context, key models.RelationshipKey) error
}

// TargetResolver reports whether a relationship target exists.
type TargetResolver interface {
	TargetExists(ctx context.Context, targetType models.TargetType, targetID string) (bool, error)
}

// Engine toggles subscriptions and likes.
type Engine struct {
	store   RelationshipStore
	targets TargetResolver
	NowFunc func() time.Time
}

// NewEngine constructs an Engine backed by the provided store and resolver.
func NewEngine(store RelationshipStore, targets TargetResolver) *Engine {
	if store == nil || targets == nil {
		panic("social: relationship store and target resolver must not be nil")
	}
	return &Engine{store: store, targets: targets}
}

// Toggle flips the relation between actor and target and reports the resulting state.
func (e *Engine) Toggle(ctx context.Context, actorID, targetID string, kind models.RelationKind, targetType models.TargetType) (models.ToggleResult, error) {
	ctx, span := logging.StartSpan(ctx, "social.toggle",
		slog.String("kind", string(kind)),
		slog.String("target_type", string(targetType)),
		slog.String("target_id", targetID),
	)
	defer span.End()

	key, err := e.validate(ctx, actorID, targetID, kind, targetType)
	if err != nil {
		span.RecordError(err)
		return models.ToggleResult{}, err
	}

	result, err := e.toggleOnce(ctx, key)
	if errors.Is(err, ErrDuplicateRelationship) {
		logging.FromContext(ctx).Info("relationship insert raced, retrying toggle")
		result, err = e.toggleOnce(ctx, key)
		if errors.Is(err, ErrDuplicateRelationship) {
			err = fmt.Errorf("%w: %w", ErrConflictRetryExhausted, err)
		}
	}
	if err != nil {
		span.RecordError(err)
		return models.ToggleResult{}, err
	}

	return result, nil
}

func (e *Engine) validate(ctx context.Context, actorID, targetID string, kind models.RelationKind, targetType models.TargetType) (models.RelationshipKey, error) {
	if actorID == "" {
		return models.RelationshipKey{}, ErrUnauthenticated
	}
	if _, err := uuid.Parse(actorID); err != nil {
		return models.RelationshipKey{}, ErrUnauthenticated
	}
	if !kind.Accepts(targetType) {
		return models.RelationshipKey{}, fmt.Errorf("%w: %s cannot target a %s", ErrInvalidTarget, kind, targetType)
	}
	if _, err := uuid.Parse(targetID); err != nil {
		return models.RelationshipKey{}, fmt.Errorf("%w: malformed id %q", ErrInvalidTarget, targetID)
	}

	exists, err := e.targets.TargetExists(ctx, targetType, targetID)
	if err != nil {
		return models.RelationshipKey{}, fmt.Errorf("resolve %s: %w", targetType, err)
	}
	if !exists {
		return models.RelationshipKey{}, fmt.Errorf("%w: %s %s not found", ErrInvalidTarget, targetType, targetID)
	}

	return models.RelationshipKey{
		ActorID:    actorID,
		TargetID:   targetID,
		TargetType: targetType,
		Kind:       kind,
	}, nil
}

func (e *Engine) toggleOnce(ctx context.Context, key models.RelationshipKey) (models.ToggleResult, error) {
	exists, err := e.store.Exists(ctx, key)
	if err != nil {
		return models.ToggleResult{}, fmt.Errorf("check relationship: %w", err)
	}

	if exists {
		if err := e.store.Delete(ctx, key); err != nil {
			return models.ToggleResult{}, fmt.Errorf("delete relationship: %w", err)
		}
		return models.ToggleResult{Active: false}, nil
	}

	rel := models.Relationship{
		ID:              uuid.NewString(),
		RelationshipKey: key,
		CreatedAt:       e.now(),
	}
	if err := e.store.Insert(ctx, rel); err != nil {
		if errors.Is(err, ErrUnknownActor) {
			return models.ToggleResult{}, ErrUnauthenticated
		}
		return models.ToggleResult{}, err
	}
	return models.ToggleResult{Active: true}, nil
}

func (e *Engine) now() time.Time {
	if e.NowFunc != nil {
		return e.NowFunc()
	}
	return time.Now().UTC()
}
