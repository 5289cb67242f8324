package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/middleware"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
)

const minPasswordLength = 8

var usernamePattern = regexp.MustCompile(`^[a-z0-9_.]{3,30}$`)

// AuthHandler implements registration and session endpoints.
type AuthHandler struct {
	Users    UserStore
	Sessions SessionManager
	Cookies  CookieConfig
	NowFunc  func() time.Time
}

// Register handles POST /api/v1/users/register requests.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid register payload", "error", err)
		respondBadRequest(ctx, w, "invalid request body")
		return
	}

	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)

	if req.Username == "" || req.Email == "" || req.FullName == "" || req.Password == "" {
		respondBadRequest(ctx, w, "username, email, fullName and password are required")
		return
	}
	if !usernamePattern.MatchString(req.Username) {
		respondBadRequest(ctx, w, "username must be 3-30 lowercase letters, digits, dots or underscores")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondBadRequest(ctx, w, "invalid email address")
		return
	}
	if len(req.Password) < minPasswordLength {
		respondBadRequest(ctx, w, "password must be at least 8 characters")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("register failed to hash password", "error", err)
		respondError(ctx, w, err)
		return
	}

	now := h.now()
	user := models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: string(hashed),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		logger.Warn("register failed to create user", "error", err, "username", req.Username)
		respondError(ctx, w, err)
		return
	}

	tokens, err := h.Sessions.Login(ctx, user.ID)
	if err != nil {
		logger.Error("register failed to issue session", "error", err, "userId", user.ID)
		respondError(ctx, w, err)
		return
	}

	h.Cookies.setSession(w, tokens)
	respondJSON(ctx, w, http.StatusCreated, authResponse{User: newUserResponse(user), Tokens: tokens})
}

// Login handles POST /api/v1/users/login requests. The login may be a username or an email.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondBadRequest(ctx, w, "invalid request body")
		return
	}

	login := strings.TrimSpace(req.Username)
	if login == "" {
		login = strings.TrimSpace(req.Email)
	}
	if login == "" || req.Password == "" {
		respondBadRequest(ctx, w, "username or email and password are required")
		return
	}

	user, err := h.Users.FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			logger.Warn("login unknown user", "login", login)
			respondJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials", Code: "UNAUTHENTICATED"})
			return
		}
		respondError(ctx, w, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", "userId", user.ID)
		respondJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials", Code: "UNAUTHENTICATED"})
		return
	}

	tokens, err := h.Sessions.Login(ctx, user.ID)
	if err != nil {
		logger.Error("failed to issue session", "error", err, "userId", user.ID)
		respondError(ctx, w, err)
		return
	}

	h.Cookies.setSession(w, tokens)
	respondJSON(ctx, w, http.StatusOK, authResponse{User: newUserResponse(user), Tokens: tokens})
}

// Logout handles POST /api/v1/users/logout requests.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.Sessions.Logout(ctx, middleware.UserIDFromContext(ctx)); err != nil {
		respondError(ctx, w, err)
		return
	}

	h.Cookies.clearSession(w)
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Refresh handles POST /api/v1/users/refresh-token. The refresh token is read from its
// cookie, falling back to the request body.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	token := ""
	if cookie, err := r.Cookie(middleware.RefreshTokenCookie); err == nil {
		token = strings.TrimSpace(cookie.Value)
	}
	if token == "" && r.ContentLength != 0 {
		var req refreshRequest
		if err := decodeJSON(r, &req); err != nil {
			logger.Warn("invalid refresh payload", "error", err)
			respondBadRequest(ctx, w, "invalid request body")
			return
		}
		token = strings.TrimSpace(req.RefreshToken)
	}
	if token == "" {
		respondJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: "refresh token is required", Code: "UNAUTHENTICATED"})
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, token)
	if err != nil {
		logger.Warn("refresh failed", "error", err)
		respondError(ctx, w, err)
		return
	}

	h.Cookies.setSession(w, tokens)
	respondJSON(ctx, w, http.StatusOK, tokenResponse{Tokens: tokens})
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	User   userResponse         `json:"user"`
	Tokens models.SessionTokens `json:"tokens"`
}

type tokenResponse struct {
	Tokens models.SessionTokens `json:"tokens"`
}

type userResponse struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatar"`
	CoverImageURL string    `json:"coverImage"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func newUserResponse(u models.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
