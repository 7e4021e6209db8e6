package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/lexiday/internal/cache"
	apperrors "github.com/example/lexiday/internal/common/errors"
	"github.com/example/lexiday/internal/database"
	"github.com/example/lexiday/internal/streak"
)

type movingClock struct{ t time.Time }

func (c *movingClock) Now() time.Time { return c.t }

func newProvider(t *testing.T) *Provider {
	t.Helper()
	return newProviderAt(t, streak.FixedClock{T: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)})
}

func newProviderAt(t *testing.T, clock streak.Clock) *Provider {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens := cache.New(database.NewCacheRepository(db), clock, nil)
	return NewProvider(database.NewAccountRepository(db), tokens, clock, Options{
		SessionTTL:     time.Hour,
		AttemptsPerMin: 5,
		AttemptsBurst:  3,
		HashCost:       bcrypt.MinCost,
	}, nil)
}

func signUp(t *testing.T, p *Provider) Identity {
	t.Helper()
	id, err := p.SignUp(context.Background(), SignUpRequest{
		Name:            "Ada Lovelace",
		Email:           " Ada@Example.com ",
		Password:        "analytical-engine",
		ConfirmPassword: "analytical-engine",
	})
	require.NoError(t, err)
	return id
}

func TestSignUpAndSignIn(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()

	var events []Event
	unsubscribe := p.OnAuthStateChange(func(ev Event) { events = append(events, ev) })
	defer unsubscribe()

	id := signUp(t, p)
	assert.NotEmpty(t, id.UserID)
	assert.Equal(t, "ada@example.com", id.Email)
	assert.Equal(t, id.UserID, p.GetSession(ctx, id.Token))

	again, err := p.SignIn(ctx, "ADA@example.com", "analytical-engine")
	require.NoError(t, err)
	assert.Equal(t, id.UserID, again.UserID)
	assert.NotEqual(t, id.Token, again.Token)

	require.NoError(t, p.SignOut(ctx, again.Token))
	assert.Empty(t, p.GetSession(ctx, again.Token))
	assert.Equal(t, id.UserID, p.GetSession(ctx, id.Token))

	require.Len(t, events, 3)
	assert.Equal(t, EventSignedIn, events[0].Type)
	assert.Equal(t, EventSignedIn, events[1].Type)
	assert.Equal(t, EventSignedOut, events[2].Type)
}

func TestSignUp_Errors(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()
	signUp(t, p)

	_, err := p.SignUp(ctx, SignUpRequest{Name: "Ada", Email: "ada@example.com", Password: "analytical-engine", ConfirmPassword: "analytical-engine"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyRegistered))

	_, err = p.SignUp(ctx, SignUpRequest{Name: "Bob", Email: "bob@example.com", Password: "longenough", ConfirmPassword: "different1"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = p.SignUp(ctx, SignUpRequest{Name: "Bob", Email: "not-an-email", Password: "longenough", ConfirmPassword: "longenough"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = p.SignUp(ctx, SignUpRequest{Name: "Bob", Email: "bob@example.com", Password: "short", ConfirmPassword: "short"})
	require.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	appErr, _ := apperrors.As(err)
	assert.Contains(t, appErr.Details, "at least 8")
}

func TestSignIn_InvalidCredentialsAndRateLimit(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()
	signUp(t, p)

	_, err := p.SignIn(ctx, "nobody@example.com", "whatever")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidCredentials))

	for i := 0; i < 3; i++ {
		_, err = p.SignIn(ctx, "ada@example.com", "wrong-password")
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidCredentials))
	}

	_, err = p.SignIn(ctx, "ada@example.com", "analytical-engine")
	require.True(t, apperrors.HasCode(err, apperrors.CodeRateLimited))
	appErr, _ := apperrors.As(err)
	assert.Equal(t, 12*time.Second, appErr.RetryAfter)
}

func TestPruneLimiters(t *testing.T) {
	clock := &movingClock{t: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
	p := newProviderAt(t, clock)
	ctx := context.Background()

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		_, err := p.SignIn(ctx, email, "whatever")
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidCredentials))
	}
	_, _ = p.SignIn(ctx, "a@example.com", "whatever")
	_, _ = p.SignIn(ctx, "a@example.com", "whatever")
	assert.Len(t, p.limiters, 3)

	// One attempt refills in 12s; a used up burst of three needs 36s.
	clock.t = clock.t.Add(13 * time.Second)
	assert.Equal(t, 2, p.PruneLimiters())
	assert.Len(t, p.limiters, 1)

	_, err := p.SignIn(ctx, "a@example.com", "whatever")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidCredentials))

	clock.t = clock.t.Add(time.Minute)
	assert.Equal(t, 1, p.PruneLimiters())
	assert.Empty(t, p.limiters)
}

func TestDeleteAccount(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()
	id := signUp(t, p)

	var deleted string
	p.OnAuthStateChange(func(ev Event) {
		if ev.Type == EventDeleted {
			deleted = ev.UserID
		}
	})

	require.NoError(t, p.DeleteAccount(ctx, id.UserID))
	assert.Equal(t, id.UserID, deleted)
	assert.Empty(t, p.GetSession(ctx, id.Token))

	_, err := p.SignIn(ctx, "ada@example.com", "analytical-engine")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidCredentials))
}
