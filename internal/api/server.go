// Package api exposes the learning core over HTTP for the mobile client.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/example/lexiday/internal/assessment"
	"github.com/example/lexiday/internal/learning"
	"github.com/example/lexiday/internal/ledger"
	"github.com/example/lexiday/internal/profile"
	"github.com/example/lexiday/internal/progress"
	"github.com/example/lexiday/internal/session"
	"github.com/example/lexiday/pkg/logger"
	"github.com/example/lexiday/pkg/models"
)

// Deps are the services the API serves
type Deps struct {
	Coordinator *session.Coordinator
	Flow        *learning.Flow
	Ledger      *ledger.Ledger
	Progress    *progress.Store
	Profiles    *profile.Store
	Assessment  *assessment.Module
	// Ping checks storage for /health; nil means always healthy
	Ping   func(ctx context.Context) error
	Logger *zap.Logger
}

// Server holds the HTTP handlers
type Server struct {
	Deps
	log *zap.Logger
}

// NewServer creates the API server
func NewServer(d Deps) *Server {
	return &Server{Deps: d, log: logger.OrNop(d.Logger)}
}

type ctxKey struct{}

// Router builds the chi routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.resolveSession)

		r.Get("/assessment", s.assessmentQuestions)
		r.Post("/assessment", s.submitAssessment)

		r.Post("/auth/signup", s.signUp)
		r.Post("/auth/signin", s.signIn)
		r.Post("/auth/signout", s.signOut)

		r.Get("/progress", s.getProgress)
		r.Get("/gate", s.getGate)
		r.Get("/words", s.listWords)
		r.Post("/words", s.addWord)

		r.Get("/lesson", s.startLesson)
		r.Post("/lesson/complete", s.completeLesson)

		r.Get("/profile", s.getProfile)
		r.Put("/profile", s.updateProfile)
		r.Delete("/account", s.deleteAccount)
	})
	return r
}

// resolveSession attaches the caller's session; missing or unknown tokens are guests
func (s *Server) resolveSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := s.Coordinator.Resolve(r.Context(), bearerToken(r))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
	})
}

func sessionFrom(r *http.Request) *models.Session {
	sess, _ := r.Context().Value(ctxKey{}).(*models.Session)
	return sess
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
