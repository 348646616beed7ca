// Package server wires the HTTP API together.
package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vidtube/vidtube/internal/auth"
	"github.com/vidtube/vidtube/internal/channel"
	"github.com/vidtube/vidtube/internal/comment"
	"github.com/vidtube/vidtube/internal/dashboard"
	"github.com/vidtube/vidtube/internal/database"
	"github.com/vidtube/vidtube/internal/httputil"
	"github.com/vidtube/vidtube/internal/like"
	"github.com/vidtube/vidtube/internal/playlist"
	"github.com/vidtube/vidtube/internal/ratelimit"
	"github.com/vidtube/vidtube/internal/storage"
	"github.com/vidtube/vidtube/internal/subscription"
	"github.com/vidtube/vidtube/internal/tweet"
	"github.com/vidtube/vidtube/internal/video"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	DB             database.DBTX
	Pinger         Pinger
	Storage        *storage.Storage
	JWTSecret      string
	BaseURL        string
	MaxUploadBytes int64
}

type Server struct {
	router chi.Router
	pinger Pinger

	authHandler         *auth.Handler
	videoHandler        *video.Handler
	commentHandler      *comment.Handler
	tweetHandler        *tweet.Handler
	likeHandler         *like.Handler
	subscriptionHandler *subscription.Handler
	playlistHandler     *playlist.Handler
	channelHandler      *channel.Handler
	dashboardHandler    *dashboard.Handler
}

func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(slogMiddleware)
	r.Use(securityHeaders)

	secureCookies := strings.HasPrefix(cfg.BaseURL, "https://")

	s := &Server{
		router:              r,
		pinger:              cfg.Pinger,
		authHandler:         auth.NewHandler(cfg.DB, cfg.Storage, cfg.JWTSecret, secureCookies),
		videoHandler:        video.NewHandler(cfg.DB, cfg.Storage, cfg.MaxUploadBytes),
		commentHandler:      comment.NewHandler(cfg.DB),
		tweetHandler:        tweet.NewHandler(cfg.DB),
		likeHandler:         like.NewHandler(cfg.DB),
		subscriptionHandler: subscription.NewHandler(cfg.DB),
		playlistHandler:     playlist.NewHandler(cfg.DB),
		channelHandler:      channel.NewHandler(cfg.DB),
		dashboardHandler:    dashboard.NewHandler(cfg.DB),
	}

	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	requireAuth := s.authHandler.Middleware
	withViewer := s.authHandler.ViewerMiddleware

	s.router.Get("/api/v1/healthz", s.handleHealth)

	authLimiter := ratelimit.NewLimiter(0.5, 5)
	uploadLimiter := ratelimit.NewLimiter(0.2, 3)

	s.router.Route("/api/v1/users", func(r chi.Router) {
		r.With(authLimiter.Middleware).Post("/register", s.authHandler.Register)
		r.With(authLimiter.Middleware).Post("/login", s.authHandler.Login)
		r.Post("/refresh-token", s.authHandler.RefreshToken)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/logout", s.authHandler.Logout)
			r.Post("/change-password", s.authHandler.ChangePassword)
			r.Get("/current-user", s.authHandler.CurrentUser)
			r.Patch("/update-account", s.authHandler.UpdateAccount)
			r.Patch("/avatar", s.authHandler.UpdateAvatar)
			r.Patch("/cover-image", s.authHandler.UpdateCoverImage)
			r.Get("/history", s.channelHandler.WatchHistory)
		})

		r.With(withViewer).Get("/c/{username}", s.channelHandler.Profile)
	})

	s.router.Route("/api/v1/videos", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(withViewer)
			r.Get("/", s.videoHandler.List)
			r.Get("/{videoId}", s.videoHandler.Get)
			r.Get("/{videoId}/next", s.videoHandler.Next)
		})
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.With(uploadLimiter.Middleware).Post("/", s.videoHandler.Publish)
			r.Patch("/{videoId}", s.videoHandler.Update)
			r.Delete("/{videoId}", s.videoHandler.Delete)
			r.Patch("/toggle/publish/{videoId}", s.videoHandler.TogglePublish)
		})
	})

	s.router.Route("/api/v1/comments", func(r chi.Router) {
		r.With(withViewer).Get("/{videoId}", s.commentHandler.List)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/{videoId}", s.commentHandler.Add)
			r.Patch("/c/{commentId}", s.commentHandler.Update)
			r.Delete("/c/{commentId}", s.commentHandler.Delete)
		})
	})

	s.router.Route("/api/v1/tweets", func(r chi.Router) {
		r.With(withViewer).Get("/user/{userId}", s.tweetHandler.ListByUser)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", s.tweetHandler.Create)
			r.Patch("/{tweetId}", s.tweetHandler.Update)
			r.Delete("/{tweetId}", s.tweetHandler.Delete)
		})
	})

	s.router.Route("/api/v1/likes", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/toggle/v/{videoId}", s.likeHandler.ToggleVideo)
		r.Post("/toggle/c/{commentId}", s.likeHandler.ToggleComment)
		r.Post("/toggle/t/{tweetId}", s.likeHandler.ToggleTweet)
		r.Get("/videos", s.likeHandler.LikedVideos)
	})

	s.router.Route("/api/v1/subscriptions", func(r chi.Router) {
		r.With(requireAuth).Post("/c/{channelId}", s.subscriptionHandler.Toggle)
		r.With(withViewer).Get("/c/{channelId}", s.subscriptionHandler.Subscribers)
		r.Get("/u/{subscriberId}", s.subscriptionHandler.SubscribedChannels)
	})

	s.router.Route("/api/v1/playlists", func(r chi.Router) {
		r.Get("/{playlistId}", s.playlistHandler.Get)
		r.Get("/user/{userId}", s.playlistHandler.ListByUser)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", s.playlistHandler.Create)
			r.Patch("/{playlistId}", s.playlistHandler.Update)
			r.Delete("/{playlistId}", s.playlistHandler.Delete)
			r.Patch("/add/{videoId}/{playlistId}", s.playlistHandler.AddVideo)
			r.Patch("/remove/{videoId}/{playlistId}", s.playlistHandler.RemoveVideo)
		})
	})

	s.router.Route("/api/v1/dashboard", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/stats", s.dashboardHandler.Stats)
		r.Get("/videos", s.dashboardHandler.Videos)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			httputil.WriteError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	httputil.WriteData(w, http.StatusOK, map[string]string{"status": "ok"}, "healthy")
}
