package ledger

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/example/lexiday/internal/common/errors"
	"github.com/example/lexiday/internal/metrics"
	"github.com/example/lexiday/internal/streak"
	"github.com/example/lexiday/pkg/models"
)

// AddResult describes what AddWord did
type AddResult struct {
	Word           string               `json:"word"`
	Outcome        models.InsertOutcome `json:"-"`
	AlreadyLearned bool                 `json:"already_learned"`
	LearnedDate    string               `json:"learned_date,omitempty"`
}

// Ledger is the append-only record of learned words
type Ledger struct {
	words   WordStore
	gate    *Gate
	clock   streak.Clock
	log     *zap.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a ledger and the gate it checks before every insert
func New(words WordStore, clock streak.Clock, log *zap.Logger) *Ledger {
	gate := NewGate(words, clock, log)
	return &Ledger{
		words:   words,
		gate:    gate,
		clock:   gate.clock,
		log:     gate.log,
		metrics: gate.metrics,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Gate returns the daily gate backing the ledger
func (l *Ledger) Gate() *Gate {
	return l.gate
}

// userLock serializes the gate check and insert of one user
func (l *Ledger) userLock(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	return m
}

// AddWord records a completed word. The daily gate is checked first and a
// refusal writes nothing. Re-adding a known word succeeds with AlreadyLearned.
func (l *Ledger) AddWord(ctx context.Context, sess *models.Session, word, meaning, emoji string) (AddResult, error) {
	normalized := strings.ToLower(strings.TrimSpace(word))
	result := AddResult{Word: normalized, Outcome: models.InsertFailed}
	if normalized == "" {
		return result, apperrors.Validation("word is required", "")
	}
	if sess.IsGuest() {
		return result, apperrors.Unauthorized("sign in to save learned words")
	}

	lock := l.userLock(sess.UserID)
	lock.Lock()
	defer lock.Unlock()

	gate := l.gate.CanLearnToday(ctx, sess)
	if !gate.Value.CanLearn {
		l.metrics.LedgerInserts.WithLabelValues("refused").Inc()
		next := *gate.Value.NextAvailable
		return result, apperrors.DailyLimitReached(next, next.Sub(l.clock.Now()))
	}

	now := l.clock.Now()
	record := &models.LearnedWord{
		UserID:      sess.UserID,
		Word:        normalized,
		Meaning:     meaning,
		Emoji:       emoji,
		LearnedDate: streak.DateOf(now, sess.Loc()),
		CreatedAt:   now,
	}
	outcome, err := l.words.InsertIfAbsent(ctx, record)
	l.metrics.LedgerInserts.WithLabelValues(outcome.String()).Inc()
	if err != nil {
		l.log.Warn("failed to record learned word",
			zap.String("user_id", sess.UserID),
			zap.String("op", "ledger.add"),
			zap.String("word", normalized),
			zap.Error(err))
		return result, apperrors.Internal("failed to save learned word", err.Error())
	}

	result.Outcome = outcome
	result.AlreadyLearned = outcome == models.InsertAlreadyExisted
	result.LearnedDate = record.LearnedDate
	l.log.Info("word recorded",
		zap.String("user_id", sess.UserID),
		zap.String("word", normalized),
		zap.Stringer("outcome", outcome))
	return result, nil
}

// GetAll returns the user's words newest first. Guests and failed reads get
// an empty list.
func (l *Ledger) GetAll(ctx context.Context, sess *models.Session) models.Result[[]models.LearnedWord] {
	empty := []models.LearnedWord{}
	if sess.IsGuest() {
		return models.Guest(empty)
	}
	words, err := l.words.ListByUser(ctx, sess.UserID)
	if err != nil {
		l.log.Warn("failed to read learned words",
			zap.String("user_id", sess.UserID),
			zap.String("op", "ledger.list"),
			zap.Error(err))
		l.metrics.StoreDegraded.WithLabelValues("ledger.list").Inc()
		return models.Degraded(empty, err)
	}
	return models.OK(words)
}

// Clear removes every word of the session's user
func (l *Ledger) Clear(ctx context.Context, sess *models.Session) (int64, error) {
	if sess.IsGuest() {
		return 0, nil
	}
	return l.words.DeleteByUser(ctx, sess.UserID)
}
