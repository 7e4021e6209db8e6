package session

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/lexiday/internal/auth"
	"github.com/example/lexiday/internal/cache"
	"github.com/example/lexiday/internal/database"
	"github.com/example/lexiday/internal/ledger"
	"github.com/example/lexiday/internal/profile"
	"github.com/example/lexiday/internal/progress"
	"github.com/example/lexiday/internal/streak"
	"github.com/example/lexiday/pkg/models"
)

type fixture struct {
	coord    *Coordinator
	provider *auth.Provider
	words    *database.LearnedWordRepository
	progress *database.ProgressRepository
	profiles *database.ProfileRepository
	flaky    *flakyProfiles
	kv       *cache.Store
	backup   *fakeBackup
	logs     *observer.ObservedLogs
}

// flakyProfiles fails the next failures profile deletions
type flakyProfiles struct {
	*database.ProfileRepository
	failures int
}

func (f *flakyProfiles) Delete(ctx context.Context, userID string) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("database is locked")
	}
	return f.ProfileRepository.Delete(ctx, userID)
}

type fakeBackup struct {
	err   error
	words []models.LearnedWord
}

func (f *fakeBackup) Backup(ctx context.Context, userID string, words []models.LearnedWord) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.words = words
	return "/tmp/" + userID + ".xlsx", nil
}

var now = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := streak.FixedClock{T: now}
	core, logs := observer.New(zap.DebugLevel)
	log := zap.New(core)

	kv := cache.New(database.NewCacheRepository(db), clock, log)
	provider := auth.NewProvider(database.NewAccountRepository(db), kv, clock, auth.Options{
		SessionTTL: time.Hour,
		HashCost:   bcrypt.MinCost,
	}, log)

	f := &fixture{
		provider: provider,
		words:    database.NewLearnedWordRepository(db),
		progress: database.NewProgressRepository(db),
		profiles: database.NewProfileRepository(db),
		kv:       kv,
		backup:   &fakeBackup{},
		logs:     logs,
	}
	f.flaky = &flakyProfiles{ProfileRepository: f.profiles}
	f.coord = New(Deps{
		Identity: provider,
		Progress: progress.NewStore(f.progress, clock, log),
		Profiles: profile.NewStore(f.flaky, clock, log),
		Ledger:   ledger.New(f.words, clock, log),
		Cache:    kv,
		Backup:   f.backup,
		Clock:    clock,
		Logger:   log,
	})
	t.Cleanup(f.coord.Close)
	return f
}

func signUpRequest() auth.SignUpRequest {
	return auth.SignUpRequest{Name: "Ada", Email: "ada@example.com", Password: "analytical", ConfirmPassword: "analytical"}
}

func TestStartsAsGuest(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.coord.Current().IsGuest())
}

func TestSignUp_InitializesRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.coord.SignUp(ctx, signUpRequest(), profile.Seed{Level: models.LevelIntermediate, Goals: []string{"travel"}, Timezone: "Asia/Tokyo"})
	require.NoError(t, err)
	assert.False(t, sess.IsGuest())
	assert.Same(t, sess, f.coord.Current())
	assert.Equal(t, "Asia/Tokyo", sess.Loc().String())

	p, err := f.progress.Get(ctx, sess.UserID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Zero(t, p.WordsLearned)

	prof, err := f.profiles.Get(ctx, sess.UserID)
	require.NoError(t, err)
	require.NotNil(t, prof)
	assert.Equal(t, models.LevelIntermediate, prof.Level)
	assert.Equal(t, models.GoalSet{"travel"}, prof.LearningGoals)
	assert.True(t, prof.IsNewUser)
}

func TestSignIn_ExistingRecordsAreKept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.coord.SignUp(ctx, signUpRequest(), profile.Seed{})
	require.NoError(t, err)
	require.NoError(t, f.profiles.UpdateStats(ctx, first.UserID, 5, 2, now))

	require.NoError(t, f.coord.SignOut(ctx, first))
	assert.True(t, f.coord.Current().IsGuest())

	second, err := f.coord.SignIn(ctx, "ada@example.com", "analytical")
	require.NoError(t, err)
	assert.Equal(t, first.UserID, second.UserID)
	assert.NotEqual(t, first.Token, second.Token)

	prof, err := f.profiles.Get(ctx, second.UserID)
	require.NoError(t, err)
	assert.Equal(t, 5, prof.TotalWords)
}

func TestResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.coord.SignUp(ctx, signUpRequest(), profile.Seed{Timezone: "Europe/Berlin"})
	require.NoError(t, err)

	resolved := f.coord.Resolve(ctx, sess.Token)
	assert.Equal(t, sess.UserID, resolved.UserID)
	assert.Equal(t, "Europe/Berlin", resolved.Loc().String())

	assert.True(t, f.coord.Resolve(ctx, "bogus").IsGuest())
	assert.True(t, f.coord.Resolve(ctx, "").IsGuest())
}

func TestDeleteAccount_RemovesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.coord.SignUp(ctx, signUpRequest(), profile.Seed{})
	require.NoError(t, err)

	_, err = f.words.InsertIfAbsent(ctx, &models.LearnedWord{UserID: sess.UserID, Word: "mercy", LearnedDate: "2026-10-17", CreatedAt: now.Add(-24 * time.Hour)})
	require.NoError(t, err)

	report := f.coord.DeleteAccount(ctx, sess)
	require.NoError(t, report.Err)
	assert.True(t, report.Completed)
	assert.Empty(t, report.Failed())
	assert.Equal(t, "/tmp/"+sess.UserID+".xlsx", report.BackupPath)
	require.Len(t, f.backup.words, 1)

	names := make([]string, len(report.Steps))
	for i, s := range report.Steps {
		names[i] = s.Name
	}
	assert.Equal(t, []string{StepBackup, StepLedger, StepProgress, StepProfile, StepAccount, StepSession, StepCache, StepGuest}, names)

	words, err := f.words.ListByUser(ctx, sess.UserID)
	require.NoError(t, err)
	assert.Empty(t, words)
	p, err := f.progress.Get(ctx, sess.UserID)
	require.NoError(t, err)
	assert.Nil(t, p)
	prof, err := f.profiles.Get(ctx, sess.UserID)
	require.NoError(t, err)
	assert.Nil(t, prof)

	assert.True(t, f.coord.Current().IsGuest())
	assert.Empty(t, f.provider.GetSession(ctx, sess.Token))
	_, err = f.coord.SignIn(ctx, "ada@example.com", "analytical")
	assert.Error(t, err)
}

func TestDeleteAccount_FailuresAreCollected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.coord.SignUp(ctx, signUpRequest(), profile.Seed{})
	require.NoError(t, err)

	f.backup.err = errors.New("disk full")
	steps := f.coord.DeletionSteps()
	for i := range steps {
		if steps[i].Name == StepProfile {
			steps[i].Run = func(context.Context, *models.Session, *DeletionReport) error { panic("boom") }
		}
	}

	report := f.coord.RunDeletion(ctx, sess, steps)
	assert.True(t, report.Completed)
	assert.Equal(t, []string{StepBackup, StepProfile}, report.Failed())
	assert.Error(t, report.Err)
	assert.Contains(t, report.Err.Error(), "disk full")
	assert.True(t, f.coord.Current().IsGuest())
	assert.Equal(t, 2, f.logs.FilterMessage("account deletion step failed").Len())

	f.backup.err = nil
	retry := f.coord.RunDeletion(ctx, sess, f.coord.StepsNamed(report.Failed()...))
	assert.Empty(t, retry.Failed())
	require.Len(t, retry.Steps, 2)

	prof, err := f.profiles.Get(ctx, sess.UserID)
	require.NoError(t, err)
	assert.Nil(t, prof)
}

func TestDeleteAccount_TransientFailureIsRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.coord.SignUp(ctx, signUpRequest(), profile.Seed{})
	require.NoError(t, err)
	f.flaky.failures = 1

	report := f.coord.DeleteAccount(ctx, sess)
	assert.Empty(t, report.Failed())
	assert.NoError(t, report.Err)
	require.Len(t, report.Steps, 8)

	prof, err := f.profiles.Get(ctx, sess.UserID)
	require.NoError(t, err)
	assert.Nil(t, prof)

	pending, err := f.kv.Scan(ctx, cache.DeletionPrefix)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDeleteAccount_StuckStepIsRetriedLater(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.coord.SignUp(ctx, signUpRequest(), profile.Seed{})
	require.NoError(t, err)
	f.flaky.failures = 2

	report := f.coord.DeleteAccount(ctx, sess)
	assert.Equal(t, []string{StepProfile}, report.Failed())
	assert.Error(t, report.Err)
	assert.Contains(t, report.Err.Error(), "database is locked")

	pending, err := f.kv.Scan(ctx, cache.DeletionPrefix)
	require.NoError(t, err)
	require.Contains(t, pending, sess.UserID)
	assert.Contains(t, pending[sess.UserID], StepProfile)

	done, err := f.coord.RetryPendingDeletions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, done)

	prof, err := f.profiles.Get(ctx, sess.UserID)
	require.NoError(t, err)
	assert.Nil(t, prof)
	pending, err = f.kv.Scan(ctx, cache.DeletionPrefix)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDeleteAccount_BackupFailureIsNotRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.coord.SignUp(ctx, signUpRequest(), profile.Seed{})
	require.NoError(t, err)
	f.backup.err = errors.New("disk full")

	report := f.coord.DeleteAccount(ctx, sess)
	assert.Equal(t, []string{StepBackup}, report.Failed())
	assert.Equal(t, 1, f.logs.FilterMessage("account deletion step failed").Len())

	pending, err := f.kv.Scan(ctx, cache.DeletionPrefix)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRetryable(t *testing.T) {
	assert.Equal(t, []string{StepProfile}, retryable([]string{StepBackup, StepProfile, StepGuest}))
	assert.Equal(t, []string{StepBackup, StepLedger}, retryable([]string{StepBackup, StepLedger}))
	assert.Empty(t, retryable(nil))
}

func TestDeleteAccount_Guest(t *testing.T) {
	f := newFixture(t)
	report := f.coord.DeleteAccount(context.Background(), nil)
	assert.True(t, report.Completed)
	assert.Empty(t, report.Steps)
}

func TestSignOutElsewhereDropsToGuest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.coord.SignUp(ctx, signUpRequest(), profile.Seed{})
	require.NoError(t, err)

	require.NoError(t, f.provider.SignOut(ctx, sess.Token))
	assert.True(t, f.coord.Current().IsGuest())
}
