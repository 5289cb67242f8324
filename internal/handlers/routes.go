package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/videotube/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         UserStore
	Sessions      SessionManager
	Relationships RelationshipToggler
	Views         ViewBuilder
	Uploads       Uploader
	DB            Pinger
	AuthLimiter   middleware.RateLimiter
	Cookies       CookieConfig
	UploadDir     string
	MaxUploadSize int64
	// MediaDir, when set, is served under /media for uploads kept on local disk.
	MediaDir string
	NowFunc  func() time.Time
}

// NewRouter wires every HTTP endpoint onto a chi router.
func NewRouter(deps Dependencies) http.Handler {
	authHandler := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Cookies: deps.Cookies, NowFunc: deps.NowFunc}
	account := AccountHandler{
		Users:         deps.Users,
		Uploads:       deps.Uploads,
		UploadDir:     deps.UploadDir,
		MaxUploadSize: deps.MaxUploadSize,
		NowFunc:       deps.NowFunc,
	}
	channels := ChannelHandler{Relationships: deps.Relationships, Views: deps.Views}
	likes := LikeHandler{Relationships: deps.Relationships, Views: deps.Views}
	history := HistoryHandler{Views: deps.Views}
	health := HealthHandler{DB: deps.DB}

	requireAuth := middleware.RequireAuth(deps.Sessions)
	optionalAuth := middleware.OptionalAuth(deps.Sessions)

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(r.Context(), w, http.StatusNotFound, errorResponse{Error: "route not found", Code: "NOT_FOUND"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(r.Context(), w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed", Code: "METHOD_NOT_ALLOWED"})
	})

	r.Get("/healthz", health.Handle)

	if deps.MediaDir != "" {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(deps.MediaDir))))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthcheck", health.Handle)

		r.Route("/users", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(deps.AuthLimiter, "auth"))
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
				r.Post("/refresh-token", authHandler.Refresh)
			})

			r.With(optionalAuth).Get("/c/{username}", channels.Profile)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/logout", authHandler.Logout)
				r.Get("/current-user", account.Current)
				r.Post("/change-password", account.ChangePassword)
				r.Patch("/update-account", account.UpdateAccount)
				r.Patch("/avatar", account.UpdateAvatar)
				r.Patch("/cover-image", account.UpdateCoverImage)
				r.Get("/history", history.List)
			})
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/c/{channelId}", channels.Subscribers)
			r.Get("/u/{subscriberId}", channels.SubscribedChannels)
			r.With(requireAuth).Post("/c/{channelId}", channels.ToggleSubscription)
		})

		r.Route("/likes", func(r chi.Router) {
			r.With(requireAuth).Get("/videos", likes.LikedVideos)
			r.With(requireAuth).Post("/toggle/{target}/{targetId}", likes.Toggle)
			r.With(optionalAuth).Get("/{target}/{targetId}", likes.State)
		})

		r.With(requireAuth).Post("/videos/{videoId}/views", history.RecordView)
	})

	return r
}
