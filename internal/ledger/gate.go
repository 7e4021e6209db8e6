// Package ledger records the words a user has completed and decides, from
// that record, whether another lesson may start today.
package ledger

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/lexiday/internal/metrics"
	"github.com/example/lexiday/internal/streak"
	"github.com/example/lexiday/pkg/logger"
	"github.com/example/lexiday/pkg/models"
)

// DailyLimit is the number of new words a user may learn per local day
const DailyLimit = 1

// WordStore is the persistence the ledger needs
type WordStore interface {
	InsertIfAbsent(ctx context.Context, word *models.LearnedWord) (models.InsertOutcome, error)
	ListByUser(ctx context.Context, userID string) ([]models.LearnedWord, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

// GateStatus answers whether a lesson may start now
type GateStatus struct {
	CanLearn   bool `json:"can_learn"`
	WordsToday int  `json:"words_today"`
	DailyLimit int  `json:"daily_limit"`
	// NextAvailable is the next local midnight, set only when CanLearn is false
	NextAvailable *time.Time `json:"next_available,omitempty"`
	Countdown     string     `json:"countdown,omitempty"`
}

// Gate enforces the one-word-per-local-day rule
type Gate struct {
	words   WordStore
	clock   streak.Clock
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewGate creates a gate reading from words
func NewGate(words WordStore, clock streak.Clock, log *zap.Logger) *Gate {
	if clock == nil {
		clock = streak.SystemClock{}
	}
	return &Gate{
		words:   words,
		clock:   clock,
		log:     logger.OrNop(log),
		metrics: metrics.New(),
	}
}

// CanLearnToday counts the words created on the session's current local day.
// A failed read lets the user through and reports a degraded result.
func (g *Gate) CanLearnToday(ctx context.Context, sess *models.Session) models.Result[GateStatus] {
	open := GateStatus{CanLearn: true, DailyLimit: DailyLimit}
	if sess.IsGuest() {
		return models.Guest(open)
	}

	now := g.clock.Now()
	loc := sess.Loc()

	words, err := g.words.ListByUser(ctx, sess.UserID)
	if err != nil {
		g.log.Warn("daily gate failing open",
			zap.String("user_id", sess.UserID),
			zap.String("op", "gate.check"),
			zap.Error(err))
		g.metrics.GateChecks.WithLabelValues("degraded").Inc()
		return models.Degraded(open, err)
	}

	status := evaluate(words, now, loc)
	if status.CanLearn {
		g.metrics.GateChecks.WithLabelValues("allowed").Inc()
	} else {
		g.metrics.GateChecks.WithLabelValues("blocked").Inc()
	}
	return models.OK(status)
}

func evaluate(words []models.LearnedWord, now time.Time, loc *time.Location) GateStatus {
	today := 0
	for _, w := range words {
		if streak.SameDay(w.CreatedAt, now, loc) {
			today++
		}
	}

	status := GateStatus{
		CanLearn:   today < DailyLimit,
		WordsToday: today,
		DailyLimit: DailyLimit,
	}
	if !status.CanLearn {
		next := streak.NextMidnight(now, loc)
		status.NextAvailable = &next
		status.Countdown = streak.FormatCountdown(next.Sub(now))
	}
	return status
}
