// Package server wires the gateway: router, middleware, handlers, and the
// background loops that expire sessions and rate-limit buckets.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/sakif/craftmarket/internal/auth"
	"github.com/sakif/craftmarket/internal/config"
	"github.com/sakif/craftmarket/internal/handler"
	"github.com/sakif/craftmarket/internal/middleware"
	"github.com/sakif/craftmarket/internal/repository"
	"github.com/sakif/craftmarket/internal/service"
	"github.com/sakif/craftmarket/internal/session"
	"github.com/sakif/craftmarket/internal/store"
)

// Backend is what the gateway needs from the backend client: the store's
// API plus the backup endpoints.
type Backend interface {
	store.API
	service.Source
}

// Server is the HTTP gateway.
type Server struct {
	router       *chi.Mux
	config       config.Config
	logger       *slog.Logger
	sessions     *session.Manager
	tokens       *auth.TokenService
	loginLimiter *middleware.IPRateLimiter
}

// New builds the gateway. backups is owned by the caller.
func New(cfg config.Config, api Backend, backups repository.BackupRepository, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	s := &Server{
		router:       chi.NewRouter(),
		config:       cfg,
		logger:       logger,
		sessions:     session.NewManager(api, cfg.SessionTTL, logger),
		tokens:       tokens,
		loginLimiter: middleware.NewIPRateLimiter(rate.Limit(cfg.LoginRate), cfg.LoginBurst, logger),
	}
	s.setupRoutes(service.NewBackupService(api, backups, logger))
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(backups *service.BackupService) {
	s.router.Use(s.cors().Handler)
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
	})

	sessionHandler := handler.NewSessionHandler(s.logger)
	listingHandler := handler.NewListingHandler(s.logger)
	feedbackHandler := handler.NewFeedbackHandler(s.logger)
	userHandler := handler.NewUserHandler(s.logger)
	backupHandler := handler.NewBackupHandler(backups, s.logger)
	notificationHandler := handler.NewNotificationHandler(s.upgrader(), s.logger)

	secure := !s.config.IsDevelopment()

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.Sessions(s.tokens, s.sessions, secure, s.logger))

		r.Get("/session", sessionHandler.HandleGet)
		r.With(s.loginLimiter.Middleware).Post("/session", sessionHandler.HandleLogin)
		r.Delete("/session", sessionHandler.HandleLogout)
		r.Patch("/session/profile", sessionHandler.HandleUpdateProfile)
		r.With(s.loginLimiter.Middleware).Post("/register", sessionHandler.HandleRegister)

		r.Route("/listings", func(r chi.Router) {
			r.Get("/", listingHandler.HandleList)
			r.Post("/", listingHandler.HandleCreate)
			r.Get("/{id}", listingHandler.HandleGet)
			r.Patch("/{id}", listingHandler.HandleUpdate)
			r.Delete("/{id}", listingHandler.HandleDelete)
			r.Get("/{id}/comments", feedbackHandler.HandleListComments)
			r.Post("/{id}/comments", feedbackHandler.HandleAddComment)
			r.Delete("/{id}/comments/{author}", feedbackHandler.HandleDeleteComment)
		})

		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/", userHandler.HandleGet)
			r.Get("/listings", userHandler.HandleListings)
			r.Patch("/status", userHandler.HandleUpdateStatus)
			r.Get("/reviews", feedbackHandler.HandleListReviews)
			r.Post("/reviews", feedbackHandler.HandleAddReview)
			r.Delete("/reviews/{author}", feedbackHandler.HandleDeleteReview)
		})

		r.Route("/admin/backups", func(r chi.Router) {
			r.Get("/", backupHandler.HandleList)
			r.Post("/", backupHandler.HandleSnapshot)
			r.Get("/{id}", backupHandler.HandleGet)
			r.Delete("/{id}", backupHandler.HandleDelete)
			r.Post("/{id}/restore", backupHandler.HandleRestore)
		})

		r.Get("/notifications", notificationHandler.HandleStream)
	})
}

// cors allows any origin in development and the configured list
// otherwise. Credentials are allowed so the session cookie travels.
func (s *Server) cors() *cors.Cors {
	origins := s.config.AllowedOrigins
	if s.config.IsDevelopment() {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

func (s *Server) upgrader() websocket.Upgrader {
	allowed := make(map[string]struct{}, len(s.config.AllowedOrigins))
	for _, o := range s.config.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if s.config.IsDevelopment() {
				return true
			}
			origin := r.Header.Get("Origin")
			if _, ok := allowed[origin]; ok {
				return true
			}
			s.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go s.sessions.Run(ctx)
	go s.loginLimiter.Run(ctx, 3*time.Minute)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", s.config.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// Listing fetches fan out to the backend; allow for its timeout.
		WriteTimeout: s.config.BackendTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("environment", s.config.Environment),
			slog.String("backend", s.config.BackendURL),
			slog.String("backup_store", s.config.BackupStore),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

