package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/example/lexiday/internal/database"
	"github.com/example/lexiday/internal/profile"
	"github.com/example/lexiday/internal/streak"
	"github.com/example/lexiday/pkg/models"
)

var now = time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC)

func newSQLiteStore(t *testing.T, at time.Time) (*Store, *database.ProgressRepository) {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := database.NewProgressRepository(db)
	return NewStore(repo, streak.FixedClock{T: at}, zap.NewNop()), repo
}

func seed(t *testing.T, repo *database.ProgressRepository, userID string, words, current int, last string) {
	t.Helper()
	p := models.NewUserProgress(userID)
	p.WordsLearned = words
	p.CurrentStreak = current
	if last != "" {
		p.LastLearningDate = &last
	}
	require.NoError(t, repo.Upsert(context.Background(), p, now.Add(-72*time.Hour)))
}

func session(userID string) *models.Session {
	return &models.Session{UserID: userID, Location: time.UTC}
}

func TestUpdateAfterLearning_FirstLesson(t *testing.T) {
	store, repo := newSQLiteStore(t, now)
	ctx := context.Background()
	sess := session("u1")

	outcome, err := store.Init(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, models.InsertCreated, outcome)

	got, ok := store.UpdateAfterLearning(ctx, sess)
	require.True(t, ok)
	assert.Equal(t, 1, got.WordsLearned)
	assert.Equal(t, 1, got.CurrentStreak)
	require.NotNil(t, got.LastLearningDate)
	assert.Equal(t, "2026-10-18", *got.LastLearningDate)

	stored, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.WordsLearned)
	assert.Equal(t, 1, stored.CurrentStreak)
	require.Len(t, stored.WeeklyProgress, 7)
	assert.True(t, stored.WeeklyProgress[6].Completed)
	assert.True(t, stored.WeeklyProgress[6].IsToday)
	assert.False(t, stored.WeeklyProgress[0].Completed)
}

func TestUpdateAfterLearning_Transitions(t *testing.T) {
	tests := []struct {
		name       string
		last       string
		streak     int
		wantStreak int
	}{
		{"yesterday extends", "2026-10-17", 4, 5},
		{"today unchanged", "2026-10-18", 4, 4},
		{"gap restarts", "2026-10-15", 9, 1},
		{"reset streak restarts", "2026-10-10", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, repo := newSQLiteStore(t, now)
			seed(t, repo, "u1", 10, tt.streak, tt.last)

			got, ok := store.UpdateAfterLearning(context.Background(), session("u1"))
			require.True(t, ok)
			assert.Equal(t, tt.wantStreak, got.CurrentStreak)
			assert.Equal(t, 11, got.WordsLearned)
		})
	}
}

func TestGetProgress_LazyExpiry(t *testing.T) {
	store, repo := newSQLiteStore(t, now)
	ctx := context.Background()
	seed(t, repo, "u1", 6, 5, "2026-10-15")

	res := store.GetProgress(ctx, session("u1"))
	assert.Equal(t, models.StatusOK, res.Status)
	assert.Equal(t, 0, res.Value.CurrentStreak)
	assert.Equal(t, 6, res.Value.WordsLearned)

	stored, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.CurrentStreak)
	assert.Equal(t, "2026-10-12", stored.WeeklyProgress.WeekStart())
}

type recordingSink struct {
	calls [][2]int
}

func (r *recordingSink) SyncStats(ctx context.Context, sess *models.Session, totalWords, currentStreak int) bool {
	r.calls = append(r.calls, [2]int{totalWords, currentStreak})
	return true
}

func TestGetProgress_ExpiryReachesProfile(t *testing.T) {
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	clock := streak.FixedClock{T: now}

	repo := database.NewProgressRepository(db)
	profiles := database.NewProfileRepository(db)
	seed(t, repo, "u1", 6, 5, "2026-10-15")
	profileStore := profile.NewStore(profiles, clock, nil)
	_, err = profileStore.Init(ctx, session("u1"), profile.Seed{FullName: "Ada"})
	require.NoError(t, err)
	require.True(t, profileStore.SyncStats(ctx, session("u1"), 6, 5))

	store := NewStore(repo, clock, nil)
	store.MirrorTo(profileStore)

	res := store.GetProgress(ctx, session("u1"))
	assert.Equal(t, 0, res.Value.CurrentStreak)

	p, err := profiles.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 0, p.CurrentStreak)
	assert.Equal(t, 6, p.TotalWords)
}

func TestGetProgress_SinkOnlySeesLandedCorrections(t *testing.T) {
	store, repo := newSQLiteStore(t, now)
	sink := &recordingSink{}
	store.MirrorTo(sink)
	seed(t, repo, "u1", 6, 5, "2026-10-15")

	store.GetProgress(context.Background(), session("u1"))
	store.GetProgress(context.Background(), session("u1"))
	assert.Equal(t, [][2]int{{6, 0}}, sink.calls)

	last := "2026-10-01"
	broken := &brokenRepo{
		writeErr: errors.New("read only"),
		stored:   &models.UserProgress{UserID: "u2", WordsLearned: 3, CurrentStreak: 3, LastLearningDate: &last},
	}
	failing := NewStore(broken, streak.FixedClock{T: now}, nil)
	failing.MirrorTo(sink)
	failing.GetProgress(context.Background(), session("u2"))
	assert.Len(t, sink.calls, 1)
}

func TestGetProgress_KeepsLiveStreak(t *testing.T) {
	store, repo := newSQLiteStore(t, now)
	seed(t, repo, "u1", 6, 5, "2026-10-17")

	res := store.GetProgress(context.Background(), session("u1"))
	assert.Equal(t, 5, res.Value.CurrentStreak)
}

func TestGetProgress_NoRecord(t *testing.T) {
	store, _ := newSQLiteStore(t, now)
	res := store.GetProgress(context.Background(), session("u1"))
	assert.Equal(t, models.StatusOK, res.Status)
	assert.Equal(t, "u1", res.Value.UserID)
	assert.Zero(t, res.Value.WordsLearned)
	assert.Nil(t, res.Value.LastLearningDate)
	assert.Len(t, res.Value.WeeklyProgress, 7)
}

func TestGuestMode(t *testing.T) {
	store := NewStore(&brokenRepo{}, streak.FixedClock{T: now}, nil)
	ctx := context.Background()

	res := store.GetProgress(ctx, nil)
	assert.Equal(t, models.StatusGuest, res.Status)
	assert.Zero(t, res.Value.WordsLearned)

	_, ok := store.UpdateAfterLearning(ctx, models.GuestSession(time.UTC))
	assert.False(t, ok)
	assert.NoError(t, store.Delete(ctx, nil))
}

type brokenRepo struct {
	getErr    error
	writeErr  error
	stored    *models.UserProgress
	corrected bool
}

func (b *brokenRepo) Get(ctx context.Context, userID string) (*models.UserProgress, error) {
	return b.stored, b.getErr
}

func (b *brokenRepo) CreateIfAbsent(ctx context.Context, p *models.UserProgress, now time.Time) (models.InsertOutcome, error) {
	return models.InsertFailed, b.writeErr
}

func (b *brokenRepo) Upsert(ctx context.Context, p *models.UserProgress, now time.Time) error {
	return b.writeErr
}

func (b *brokenRepo) UpdateStreak(ctx context.Context, userID string, s int, week models.WeekGrid, now time.Time) error {
	b.corrected = true
	return b.writeErr
}

func (b *brokenRepo) Delete(ctx context.Context, userID string) error {
	return b.writeErr
}

func TestGetProgress_ReadFailureIsDegraded(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	store := NewStore(&brokenRepo{getErr: errors.New("timeout")}, streak.FixedClock{T: now}, zap.New(core))

	res := store.GetProgress(context.Background(), session("u1"))
	assert.True(t, res.IsDegraded())
	assert.Zero(t, res.Value.CurrentStreak)
	assert.Equal(t, 1, logs.Len())
}

func TestGetProgress_CorrectionWriteFailureStillReturnsZero(t *testing.T) {
	last := "2026-10-01"
	repo := &brokenRepo{
		writeErr: errors.New("read only"),
		stored:   &models.UserProgress{UserID: "u1", WordsLearned: 3, CurrentStreak: 3, LastLearningDate: &last},
	}
	store := NewStore(repo, streak.FixedClock{T: now}, nil)

	res := store.GetProgress(context.Background(), session("u1"))
	assert.Equal(t, models.StatusOK, res.Status)
	assert.Equal(t, 0, res.Value.CurrentStreak)
	assert.True(t, repo.corrected)
	assert.Equal(t, 3, repo.stored.CurrentStreak)
}

func TestUpdateAfterLearning_WriteFailureReturnsFalse(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	repo := &brokenRepo{writeErr: errors.New("read only")}
	store := NewStore(repo, streak.FixedClock{T: now}, zap.New(core))

	_, ok := store.UpdateAfterLearning(context.Background(), session("u1"))
	assert.False(t, ok)
	assert.Equal(t, 1, logs.FilterMessage("failed to save progress").Len())
}
