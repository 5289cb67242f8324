package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/middleware"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/storage"
)

// AccountHandler serves the authenticated user's own account.
type AccountHandler struct {
	Users         UserStore
	Uploads       Uploader
	UploadDir     string
	MaxUploadSize int64
	NowFunc       func() time.Time
}

// Current handles GET /api/v1/users/current-user.
func (h AccountHandler) Current(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.Users.FindByID(ctx, middleware.UserIDFromContext(ctx))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, newUserResponse(user))
}

// ChangePassword handles POST /api/v1/users/change-password. Existing sessions stay valid.
func (h AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	userID := middleware.UserIDFromContext(ctx)

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid change password payload", "error", err)
		respondBadRequest(ctx, w, "invalid request body")
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		respondBadRequest(ctx, w, "oldPassword and newPassword are required")
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		respondBadRequest(ctx, w, "password must be at least 8 characters")
		return
	}

	user, err := h.Users.FindByID(ctx, userID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		logger.Warn("change password mismatch", "userId", userID)
		respondBadRequest(ctx, w, "invalid old password")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	if err := h.Users.UpdatePassword(ctx, userID, string(hashed), h.now()); err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "password changed"})
}

// UpdateAccount handles PATCH /api/v1/users/update-account.
func (h AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req updateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid update account payload", "error", err)
		respondBadRequest(ctx, w, "invalid request body")
		return
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.FullName == "" || req.Email == "" {
		respondBadRequest(ctx, w, "fullName and email are required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondBadRequest(ctx, w, "invalid email address")
		return
	}

	user, err := h.Users.UpdateAccount(ctx, middleware.UserIDFromContext(ctx), req.FullName, req.Email, h.now())
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, newUserResponse(user))
}

// UpdateAvatar handles PATCH /api/v1/users/avatar with a multipart "avatar" file.
func (h AccountHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", h.Users.UpdateAvatar)
}

// UpdateCoverImage handles PATCH /api/v1/users/cover-image with a multipart "coverImage" file.
func (h AccountHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", h.Users.UpdateCoverImage)
}

type imageUpdater func(ctx context.Context, id, url string, at time.Time) (models.User, error)

func (h AccountHandler) updateImage(w http.ResponseWriter, r *http.Request, field string, update imageUpdater) {
	ctx := r.Context()
	logger := logging.FromContext(ctx).With("field", field)

	localPath, err := h.receiveFile(w, r, field)
	if err != nil {
		logger.Warn("upload rejected", "error", err)
		respondBadRequest(ctx, w, fmt.Sprintf("%s file is required", field))
		return
	}

	if h.Uploads == nil {
		_ = os.Remove(localPath)
		respondError(ctx, w, fmt.Errorf("%w: no uploader configured", storage.ErrUploadFailed))
		return
	}

	url, err := h.Uploads.Store(ctx, localPath)
	if err != nil {
		if !errors.Is(err, storage.ErrUploadFailed) {
			err = fmt.Errorf("%w: %w", storage.ErrUploadFailed, err)
		}
		respondError(ctx, w, err)
		return
	}

	user, err := update(ctx, middleware.UserIDFromContext(ctx), url, h.now())
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, newUserResponse(user))
}

// receiveFile spools the multipart field to a temporary file in the upload directory.
func (h AccountHandler) receiveFile(w http.ResponseWriter, r *http.Request, field string) (string, error) {
	maxSize := h.MaxUploadSize
	if maxSize <= 0 {
		maxSize = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		return "", fmt.Errorf("parse multipart form: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(field)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", field, err)
	}
	defer file.Close()

	dir := h.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}

	tmp, err := os.CreateTemp(dir, "upload-*"+strings.ToLower(filepath.Ext(header.Filename)))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("spool upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return tmp.Name(), nil
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func (h AccountHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
