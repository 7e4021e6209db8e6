// Package learning runs the daily lesson: starting one behind the daily gate
// and recording its completion.
package learning

import (
	"context"

	"go.uber.org/zap"

	apperrors "github.com/example/lexiday/internal/common/errors"
	"github.com/example/lexiday/internal/common/validation"
	"github.com/example/lexiday/internal/ledger"
	"github.com/example/lexiday/internal/lesson"
	"github.com/example/lexiday/internal/profile"
	"github.com/example/lexiday/internal/progress"
	"github.com/example/lexiday/internal/streak"
	"github.com/example/lexiday/pkg/logger"
	"github.com/example/lexiday/pkg/models"
)

// Lessons loads a lesson for a request
type Lessons interface {
	Load(ctx context.Context, req models.LessonRequest) lesson.Result
}

// StartResult is a lesson ready to run plus the gate decision that allowed it
type StartResult struct {
	Lesson lesson.Result     `json:"lesson"`
	Gate   ledger.GateStatus `json:"gate"`
	Status models.Status     `json:"status"`
}

// CompleteRequest reports a finished lesson
type CompleteRequest struct {
	Word    string `json:"word" validate:"required,max=64"`
	Meaning string `json:"meaning" validate:"max=500"`
	Emoji   string `json:"emoji" validate:"max=16"`
}

// CompleteResult is what completing a lesson changed
type CompleteResult struct {
	Word           string              `json:"word"`
	AlreadyLearned bool                `json:"already_learned"`
	Progress       models.UserProgress `json:"progress"`
	Saved          bool                `json:"saved"`
	Status         models.Status       `json:"status"`
}

// Flow wires the stores into the daily lesson
type Flow struct {
	ledger   *ledger.Ledger
	progress *progress.Store
	profiles *profile.Store
	lessons  Lessons
	clock    streak.Clock
	log      *zap.Logger
}

// NewFlow creates the learning flow
func NewFlow(l *ledger.Ledger, p *progress.Store, profiles *profile.Store, lessons Lessons, clock streak.Clock, log *zap.Logger) *Flow {
	if clock == nil {
		clock = streak.SystemClock{}
	}
	return &Flow{
		ledger:   l,
		progress: p,
		profiles: profiles,
		lessons:  lessons,
		clock:    clock,
		log:      logger.OrNop(log),
	}
}

// Start checks the daily gate and loads a lesson personalized from the
// profile and the words already learned.
func (f *Flow) Start(ctx context.Context, sess *models.Session) (StartResult, error) {
	gate := f.ledger.Gate().CanLearnToday(ctx, sess)
	if !gate.Value.CanLearn {
		next := *gate.Value.NextAvailable
		return StartResult{Gate: gate.Value, Status: gate.Status}, apperrors.DailyLimitReached(next, next.Sub(f.clock.Now()))
	}

	prof := f.profiles.Get(ctx, sess)
	words := f.ledger.GetAll(ctx, sess)

	previous := make([]string, 0, len(words.Value))
	for _, w := range words.Value {
		previous = append(previous, w.Word)
	}

	name := prof.Value.FullName
	if prof.Status != models.StatusOK {
		name = ""
	}
	req := models.LessonRequest{
		UserLevel:     prof.Value.Level,
		PreviousWords: previous,
		LearningGoals: prof.Value.LearningGoals,
		UserName:      name,
	}

	res := f.lessons.Load(ctx, req)
	status := gate.Status
	if status == models.StatusOK && (prof.IsDegraded() || words.IsDegraded()) {
		status = models.StatusDegraded
	}
	return StartResult{Lesson: res, Gate: gate.Value, Status: status}, nil
}

// Complete records a finished lesson. Progress and profile stats only move
// when the word is new, so a repeated completion changes nothing.
func (f *Flow) Complete(ctx context.Context, sess *models.Session, req CompleteRequest) (CompleteResult, error) {
	if errs := validation.Validate(req); len(errs) > 0 {
		return CompleteResult{Word: req.Word}, apperrors.Validation("invalid lesson completion", validation.Summary(errs))
	}
	if sess.IsGuest() {
		return CompleteResult{Word: req.Word, Progress: f.progress.GetProgress(ctx, sess).Value, Status: models.StatusGuest}, nil
	}

	added, err := f.ledger.AddWord(ctx, sess, req.Word, req.Meaning, req.Emoji)
	if err != nil {
		return CompleteResult{Word: added.Word}, err
	}

	result := CompleteResult{Word: added.Word, AlreadyLearned: added.AlreadyLearned, Status: models.StatusOK}
	if added.Outcome != models.InsertCreated {
		current := f.progress.GetProgress(ctx, sess)
		result.Progress = current.Value
		result.Status = current.Status
		return result, nil
	}

	updated, ok := f.progress.UpdateAfterLearning(ctx, sess)
	result.Progress = updated
	result.Saved = ok
	if !ok {
		result.Status = models.StatusDegraded
		return result, nil
	}
	f.profiles.SyncStats(ctx, sess, updated.WordsLearned, updated.CurrentStreak)
	f.log.Info("lesson completed",
		zap.String("user_id", sess.UserID),
		zap.String("word", added.Word),
		zap.Int("streak", updated.CurrentStreak))
	return result, nil
}
