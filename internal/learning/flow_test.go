package learning

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/example/lexiday/internal/common/errors"
	"github.com/example/lexiday/internal/database"
	"github.com/example/lexiday/internal/ledger"
	"github.com/example/lexiday/internal/lesson"
	"github.com/example/lexiday/internal/profile"
	"github.com/example/lexiday/internal/progress"
	"github.com/example/lexiday/pkg/models"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingLessons struct {
	last models.LessonRequest
}

func (r *recordingLessons) Load(ctx context.Context, req models.LessonRequest) lesson.Result {
	r.last = req
	return lesson.Result{Exercise: lesson.Fallback(), Source: lesson.SourceFallback}
}

type fixture struct {
	flow     *Flow
	clock    *clock
	lessons  *recordingLessons
	progress *database.ProgressRepository
	profiles *database.ProfileRepository
	sess     *models.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c := &clock{t: time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)}
	f := &fixture{
		clock:    c,
		lessons:  &recordingLessons{},
		progress: database.NewProgressRepository(db),
		profiles: database.NewProfileRepository(db),
		sess:     &models.Session{UserID: "u1", Location: time.UTC},
	}
	progressStore := progress.NewStore(f.progress, c, nil)
	profileStore := profile.NewStore(f.profiles, c, nil)
	f.flow = NewFlow(
		ledger.New(database.NewLearnedWordRepository(db), c, nil),
		progressStore,
		profileStore,
		f.lessons,
		c,
		nil,
	)

	ctx := context.Background()
	_, err = progressStore.Init(ctx, f.sess)
	require.NoError(t, err)
	_, err = profileStore.Init(ctx, f.sess, profile.Seed{FullName: "Ada", Level: models.LevelAdvanced, Goals: []string{"work"}})
	require.NoError(t, err)
	return f
}

func TestFirstLessonScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start, err := f.flow.Start(ctx, f.sess)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOK, start.Status)
	assert.True(t, start.Gate.CanLearn)
	assert.Equal(t, models.LevelAdvanced, f.lessons.last.UserLevel)
	assert.Equal(t, []string{"work"}, f.lessons.last.LearningGoals)
	assert.Equal(t, "Ada", f.lessons.last.UserName)
	assert.Empty(t, f.lessons.last.PreviousWords)

	done, err := f.flow.Complete(ctx, f.sess, CompleteRequest{Word: "Journey", Meaning: "a trip"})
	require.NoError(t, err)
	assert.True(t, done.Saved)
	assert.Equal(t, 1, done.Progress.WordsLearned)
	assert.Equal(t, 1, done.Progress.CurrentStreak)
	require.NotNil(t, done.Progress.LastLearningDate)
	assert.Equal(t, "2026-10-18", *done.Progress.LastLearningDate)

	prof, err := f.profiles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, prof.TotalWords)
	assert.Equal(t, 1, prof.CurrentStreak)
	assert.False(t, prof.IsNewUser)

	_, err = f.flow.Start(ctx, f.sess)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeDailyLimitReached))
}

func TestDoubleCompletionDoesNotBumpProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.flow.Complete(ctx, f.sess, CompleteRequest{Word: "mercy"})
	require.NoError(t, err)

	_, err = f.flow.Complete(ctx, f.sess, CompleteRequest{Word: "mercy"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeDailyLimitReached))

	p, err := f.progress.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.WordsLearned)
}

func TestNextDayExtendsStreakAndExcludesPreviousWords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.flow.Complete(ctx, f.sess, CompleteRequest{Word: "mercy"})
	require.NoError(t, err)

	f.clock.advance(24 * time.Hour)
	_, err = f.flow.Start(ctx, f.sess)
	require.NoError(t, err)
	assert.Equal(t, []string{"mercy"}, f.lessons.last.PreviousWords)

	done, err := f.flow.Complete(ctx, f.sess, CompleteRequest{Word: "harbor"})
	require.NoError(t, err)
	assert.Equal(t, 2, done.Progress.CurrentStreak)
	assert.Equal(t, 2, done.Progress.WordsLearned)

	f.clock.advance(24 * time.Hour)
	again, err := f.flow.Complete(ctx, f.sess, CompleteRequest{Word: "MERCY"})
	require.NoError(t, err)
	assert.True(t, again.AlreadyLearned)
	assert.False(t, again.Saved)
	assert.Equal(t, 2, again.Progress.WordsLearned)
}

func TestGuestFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	guest := models.GuestSession(time.UTC)

	start, err := f.flow.Start(ctx, guest)
	require.NoError(t, err)
	assert.Equal(t, models.StatusGuest, start.Status)
	assert.Equal(t, lesson.SourceFallback, start.Lesson.Source)

	done, err := f.flow.Complete(ctx, guest, CompleteRequest{Word: "journey"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusGuest, done.Status)
	assert.False(t, done.Saved)
}

func TestComplete_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.flow.Complete(context.Background(), f.sess, CompleteRequest{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}
