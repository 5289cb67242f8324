package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/middleware"
	"github.com/videotube/backend/internal/models"
)

// ChannelHandler serves channel profiles and subscription endpoints.
type ChannelHandler struct {
	Relationships RelationshipToggler
	Views         ViewBuilder
}

// Profile handles GET /api/v1/users/c/{username}. Anonymous viewers are allowed.
func (h ChannelHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	profile, err := h.Views.ProjectChannelProfileByUsername(ctx, middleware.UserIDFromContext(ctx), chi.URLParam(r, "username"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, profile)
}

// ToggleSubscription handles POST /api/v1/subscriptions/c/{channelId}.
func (h ChannelHandler) ToggleSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	channelID := chi.URLParam(r, "channelId")

	result, err := h.Relationships.Toggle(ctx, middleware.UserIDFromContext(ctx), channelID, models.KindSubscription, models.TargetChannel)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	logging.FromContext(ctx).Info("subscription toggled", "channelId", channelID, "active", result.Active)
	respondJSON(ctx, w, http.StatusOK, result)
}

// Subscribers handles GET /api/v1/subscriptions/c/{channelId}.
func (h ChannelHandler) Subscribers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subs, err := h.Views.Subscribers(ctx, chi.URLParam(r, "channelId"), limitParam(r))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, nonNil(subs))
}

// SubscribedChannels handles GET /api/v1/subscriptions/u/{subscriberId}.
func (h ChannelHandler) SubscribedChannels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subs, err := h.Views.SubscribedChannels(ctx, chi.URLParam(r, "subscriberId"), limitParam(r))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, nonNil(subs))
}

// likeTargets maps the short path segment to the likeable target type.
var likeTargets = map[string]models.TargetType{
	"v": models.TargetVideo,
	"c": models.TargetComment,
	"t": models.TargetTweet,
}

// LikeHandler serves like toggles and like projections.
type LikeHandler struct {
	Relationships RelationshipToggler
	Views         ViewBuilder
}

// Toggle handles POST /api/v1/likes/toggle/{target}/{targetId} where target is v, c or t.
func (h LikeHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	targetType, ok := likeTargets[chi.URLParam(r, "target")]
	if !ok {
		respondBadRequest(ctx, w, "unknown like target")
		return
	}
	targetID := chi.URLParam(r, "targetId")

	result, err := h.Relationships.Toggle(ctx, middleware.UserIDFromContext(ctx), targetID, models.KindLike, targetType)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	logging.FromContext(ctx).Info("like toggled", "targetType", targetType, "targetId", targetID, "active", result.Active)
	respondJSON(ctx, w, http.StatusOK, result)
}

// State handles GET /api/v1/likes/{target}/{targetId}. Anonymous viewers are allowed.
func (h LikeHandler) State(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	targetType, ok := likeTargets[chi.URLParam(r, "target")]
	if !ok {
		respondBadRequest(ctx, w, "unknown like target")
		return
	}

	state, err := h.Views.ProjectLikeState(ctx, middleware.UserIDFromContext(ctx), chi.URLParam(r, "targetId"), targetType)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, state)
}

// LikedVideos handles GET /api/v1/likes/videos.
func (h LikeHandler) LikedVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videos, err := h.Views.LikedVideos(ctx, middleware.UserIDFromContext(ctx), limitParam(r))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, nonNil(videos))
}

// HistoryHandler serves the caller's watch history.
type HistoryHandler struct {
	Views ViewBuilder
}

// List handles GET /api/v1/users/history.
func (h HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	history, err := h.Views.ProjectWatchHistory(ctx, middleware.UserIDFromContext(ctx), limitParam(r))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, nonNil(history))
}

// RecordView handles POST /api/v1/videos/{videoId}/views.
func (h HistoryHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.Views.RecordView(ctx, middleware.UserIDFromContext(ctx), chi.URLParam(r, "videoId")); err != nil {
		respondError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// limitParam reads ?limit=; invalid values fall back to the view default.
func limitParam(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return limit
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
