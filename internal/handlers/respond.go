package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/videotube/backend/internal/auth"
	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/repositories"
	"github.com/videotube/backend/internal/social"
	"github.com/videotube/backend/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// errorMappings is ordered: the first match wins, so more specific errors come first.
var errorMappings = []errorMapping{
	{auth.ErrInvalidSession, http.StatusUnauthorized, "INVALID_SESSION", "refresh token is expired or used"},
	{auth.ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHENTICATED", "unauthorized request"},
	{auth.ErrSubjectNotFound, http.StatusUnauthorized, "UNAUTHENTICATED", "unauthorized request"},
	{social.ErrInvalidTarget, http.StatusNotFound, "INVALID_TARGET", "target not found"},
	{social.ErrConflictRetryExhausted, http.StatusConflict, "CONFLICT_RETRY_EXHAUSTED", "concurrent update, please retry"},
	{repositories.ErrConflict, http.StatusConflict, "CONFLICT", "username or email already exists"},
	{repositories.ErrNotFound, http.StatusNotFound, "NOT_FOUND", "resource not found"},
	{repositories.ErrStoreUnavailable, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "storage temporarily unavailable"},
	{repositories.ErrDeadlineExceeded, http.StatusGatewayTimeout, "DEADLINE_EXCEEDED", "request timed out"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "DEADLINE_EXCEEDED", "request timed out"},
	{storage.ErrUploadFailed, http.StatusBadGateway, "UPLOAD_FAILED", "file upload failed"},
}

// respondError maps err onto the error taxonomy and writes it. Unknown errors become 500s.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			logging.FromContext(ctx).Debug("mapped error", "code", m.code, "error", err)
			respondJSON(ctx, w, m.status, errorResponse{Error: m.message, Code: m.code})
			return
		}
	}

	logging.FromContext(ctx).Error("unhandled error", "error", err)
	respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: "INTERNAL"})
}

// respondBadRequest rejects malformed input.
func respondBadRequest(ctx context.Context, w http.ResponseWriter, message string) {
	respondJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: message, Code: "BAD_REQUEST"})
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
