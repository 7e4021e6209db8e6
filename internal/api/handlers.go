package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/example/lexiday/internal/auth"
	apperrors "github.com/example/lexiday/internal/common/errors"
	"github.com/example/lexiday/internal/learning"
	"github.com/example/lexiday/internal/profile"
	"github.com/example/lexiday/pkg/models"
)

type assessmentRequest struct {
	ClientID string            `json:"client_id"`
	Answers  map[string]string `json:"answers"`
	Goals    []string          `json:"goals"`
}

type signUpRequest struct {
	auth.SignUpRequest
	// ClientID picks up an assessment submitted before sign-up
	ClientID string   `json:"client_id"`
	Timezone string   `json:"timezone"`
	Goals    []string `json:"goals"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is returned after sign-up and sign-in
type SessionResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

type addWordRequest struct {
	Word    string `json:"word"`
	Meaning string `json:"meaning"`
	Emoji   string `json:"emoji"`
}

func (s *Server) assessmentQuestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"questions": s.Assessment.Questions()})
}

func (s *Server) submitAssessment(w http.ResponseWriter, r *http.Request) {
	var req assessmentRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.Assessment.Submit(r.Context(), req.ClientID, req.Answers, req.Goals)
	if err != nil {
		s.log.Warn("failed to cache assessment result", zap.String("client_id", req.ClientID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	seed := profile.Seed{Goals: req.Goals, Timezone: req.Timezone}
	if res, ok := s.Assessment.Take(r.Context(), req.ClientID); ok {
		seed.Level = res.Level
		if len(seed.Goals) == 0 {
			seed.Goals = res.Goals
		}
	}

	sess, err := s.Coordinator.SignUp(r.Context(), req.SignUpRequest, seed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{UserID: sess.UserID, Email: sess.Email, Token: sess.Token})
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.Coordinator.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{UserID: sess.UserID, Email: sess.Email, Token: sess.Token})
}

func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	if err := s.Coordinator.SignOut(r.Context(), sessionFrom(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Progress.GetProgress(r.Context(), sessionFrom(r)))
}

func (s *Server) getGate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Ledger.Gate().CanLearnToday(r.Context(), sessionFrom(r)))
}

func (s *Server) listWords(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Ledger.GetAll(r.Context(), sessionFrom(r)))
}

func (s *Server) addWord(w http.ResponseWriter, r *http.Request) {
	var req addWordRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.Ledger.AddWord(r.Context(), sessionFrom(r), req.Word, req.Meaning, req.Emoji)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.AlreadyLearned {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

func (s *Server) startLesson(w http.ResponseWriter, r *http.Request) {
	res, err := s.Flow.Start(r.Context(), sessionFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) completeLesson(w http.ResponseWriter, r *http.Request) {
	var req learning.CompleteRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.Flow.Complete(r.Context(), sessionFrom(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Profiles.Get(r.Context(), sessionFrom(r)))
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var upd profile.SettingsUpdate
	if err := decode(w, r, &upd); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.Profiles.UpdateSettings(r.Context(), sessionFrom(r), upd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.OK(p))
}

func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if sess.IsGuest() {
		s.writeError(w, r, apperrors.Unauthorized("sign in to delete your account"))
		return
	}
	report := s.Coordinator.DeleteAccount(r.Context(), sess)
	status := http.StatusOK
	if len(report.Failed()) > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, report)
}
