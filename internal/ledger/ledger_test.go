package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	apperrors "github.com/example/lexiday/internal/common/errors"
	"github.com/example/lexiday/internal/database"
	"github.com/example/lexiday/pkg/models"
)

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type failingStore struct {
	inserts int
}

func (f *failingStore) InsertIfAbsent(ctx context.Context, w *models.LearnedWord) (models.InsertOutcome, error) {
	f.inserts++
	return models.InsertFailed, errors.New("connection reset")
}

func (f *failingStore) ListByUser(ctx context.Context, userID string) ([]models.LearnedWord, error) {
	return nil, errors.New("connection reset")
}

func (f *failingStore) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	return 0, errors.New("connection reset")
}

func newSQLiteLedger(t *testing.T, clock *stepClock) (*Ledger, *database.LearnedWordRepository) {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := database.NewLearnedWordRepository(db)
	return New(repo, clock, zap.NewNop()), repo
}

func session(userID string, loc *time.Location) *models.Session {
	return &models.Session{UserID: userID, Location: loc}
}

func TestAddWord_SecondWordSameDayRefused(t *testing.T) {
	clock := &stepClock{t: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)}
	l, repo := newSQLiteLedger(t, clock)
	ctx := context.Background()
	sess := session("u1", time.UTC)

	res, err := l.AddWord(ctx, sess, "Mercy", "kindness", "🙏")
	require.NoError(t, err)
	assert.Equal(t, models.InsertCreated, res.Outcome)
	assert.Equal(t, "mercy", res.Word)
	assert.Equal(t, "2026-10-18", res.LearnedDate)

	clock.Set(time.Date(2026, 10, 18, 21, 0, 0, 0, time.UTC))
	_, err = l.AddWord(ctx, sess, "harbor", "a port", "⚓")
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeDailyLimitReached, appErr.Code)
	assert.Equal(t, 3*time.Hour, appErr.RetryAfter)
	require.NotNil(t, appErr.NextAvailable)
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), *appErr.NextAvailable)

	words, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, words, 1)
}

func TestAddWord_DuplicateWordIsSuccess(t *testing.T) {
	clock := &stepClock{t: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
	l, repo := newSQLiteLedger(t, clock)
	ctx := context.Background()
	sess := session("u1", time.UTC)

	_, err := l.AddWord(ctx, sess, "mercy", "kindness", "")
	require.NoError(t, err)

	clock.Set(time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))
	res, err := l.AddWord(ctx, sess, "MERCY", "kindness", "")
	require.NoError(t, err)
	assert.True(t, res.AlreadyLearned)
	assert.Equal(t, models.InsertAlreadyExisted, res.Outcome)

	words, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, words, 1)
}

func TestCanLearnToday_StableNextAvailable(t *testing.T) {
	clock := &stepClock{t: time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)}
	l, _ := newSQLiteLedger(t, clock)
	ctx := context.Background()
	sess := session("u1", time.UTC)

	first := l.Gate().CanLearnToday(ctx, sess)
	assert.Equal(t, models.StatusOK, first.Status)
	assert.True(t, first.Value.CanLearn)
	assert.Nil(t, first.Value.NextAvailable)

	_, err := l.AddWord(ctx, sess, "mercy", "", "")
	require.NoError(t, err)

	a := l.Gate().CanLearnToday(ctx, sess)
	clock.Set(clock.Now().Add(90 * time.Second))
	b := l.Gate().CanLearnToday(ctx, sess)

	assert.False(t, a.Value.CanLearn)
	assert.False(t, b.Value.CanLearn)
	assert.Equal(t, 1, a.Value.WordsToday)
	assert.Equal(t, DailyLimit, a.Value.DailyLimit)
	require.NotNil(t, a.Value.NextAvailable)
	require.NotNil(t, b.Value.NextAvailable)
	assert.True(t, a.Value.NextAvailable.Equal(*b.Value.NextAvailable))
	assert.Equal(t, "14:00:00", a.Value.Countdown)
}

func TestCanLearnToday_LocalMidnightBoundary(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 23:59 local on the 18th
	clock := &stepClock{t: time.Date(2026, 10, 18, 23, 59, 0, 0, tokyo)}
	l, _ := newSQLiteLedger(t, clock)
	ctx := context.Background()
	sess := session("u1", tokyo)

	_, err = l.AddWord(ctx, sess, "dusk", "", "")
	require.NoError(t, err)

	// two minutes later it is a new local day even though UTC has not rolled over
	clock.Set(time.Date(2026, 10, 19, 0, 1, 0, 0, tokyo))
	gate := l.Gate().CanLearnToday(ctx, sess)
	assert.True(t, gate.Value.CanLearn)
	assert.Equal(t, 0, gate.Value.WordsToday)

	res, err := l.AddWord(ctx, sess, "dawn", "", "")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", res.LearnedDate)
}

func TestCanLearnToday_FailsOpen(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	clock := &stepClock{t: time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)}
	gate := NewGate(&failingStore{}, clock, zap.New(core))

	res := gate.CanLearnToday(context.Background(), session("u1", time.UTC))
	assert.True(t, res.Value.CanLearn)
	assert.True(t, res.IsDegraded())
	assert.Error(t, res.Err)
	assert.Equal(t, 1, logs.FilterMessage("daily gate failing open").Len())
}

func TestAddWord_WriteFailure(t *testing.T) {
	store := &failingStore{}
	clock := &stepClock{t: time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)}
	l := New(store, clock, nil)

	res, err := l.AddWord(context.Background(), session("u1", time.UTC), "mercy", "", "")
	require.Error(t, err)
	assert.Equal(t, models.InsertFailed, res.Outcome)
	assert.Equal(t, 1, store.inserts)
}

func TestGuestMode(t *testing.T) {
	clock := &stepClock{t: time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)}
	l := New(&failingStore{}, clock, nil)
	ctx := context.Background()

	words := l.GetAll(ctx, nil)
	assert.Equal(t, models.StatusGuest, words.Status)
	assert.NotNil(t, words.Value)
	assert.Empty(t, words.Value)

	gate := l.Gate().CanLearnToday(ctx, models.GuestSession(time.UTC))
	assert.Equal(t, models.StatusGuest, gate.Status)
	assert.True(t, gate.Value.CanLearn)

	_, err := l.AddWord(ctx, nil, "mercy", "", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	n, err := l.Clear(ctx, nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestGetAll_DegradedOnReadError(t *testing.T) {
	l := New(&failingStore{}, nil, nil)
	res := l.GetAll(context.Background(), session("u1", time.UTC))
	assert.True(t, res.IsDegraded())
	assert.Empty(t, res.Value)
}

func TestAddWord_ConcurrentSubmissionsRespectLimit(t *testing.T) {
	clock := &stepClock{t: time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)}
	l, repo := newSQLiteLedger(t, clock)
	ctx := context.Background()
	sess := session("u1", time.UTC)

	var wg sync.WaitGroup
	for _, w := range []string{"one", "two", "three", "four"} {
		wg.Add(1)
		go func(word string) {
			defer wg.Done()
			_, _ = l.AddWord(ctx, sess, word, "", "")
		}(w)
	}
	wg.Wait()

	words, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, words, 1)
}
