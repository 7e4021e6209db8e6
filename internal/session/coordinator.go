// Package session binds the stores to whoever is signed in, including guests,
// and runs first-time setup and account teardown.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/lexiday/internal/auth"
	"github.com/example/lexiday/internal/ledger"
	"github.com/example/lexiday/internal/metrics"
	"github.com/example/lexiday/internal/profile"
	"github.com/example/lexiday/internal/progress"
	"github.com/example/lexiday/internal/streak"
	"github.com/example/lexiday/pkg/logger"
	"github.com/example/lexiday/pkg/models"
)

// Identity is the identity provider as seen by the coordinator
type Identity interface {
	SignUp(ctx context.Context, req auth.SignUpRequest) (auth.Identity, error)
	SignIn(ctx context.Context, email, password string) (auth.Identity, error)
	SignOut(ctx context.Context, token string) error
	GetSession(ctx context.Context, token string) string
	DeleteAccount(ctx context.Context, userID string) error
	OnAuthStateChange(fn func(auth.Event)) func()
}

// KeyCache is the local cache as seen by the coordinator
type KeyCache interface {
	ClearValue(ctx context.Context, prefix, value string) (int64, error)
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
	Scan(ctx context.Context, prefix string) (map[string]string, error)
	Delete(ctx context.Context, key string) error
}

// Backup saves a copy of a user's words before deletion and returns where it went
type Backup interface {
	Backup(ctx context.Context, userID string, words []models.LearnedWord) (string, error)
}

// Deps are the collaborators of a Coordinator
type Deps struct {
	Identity Identity
	Progress *progress.Store
	Profiles *profile.Store
	Ledger   *ledger.Ledger
	Cache    KeyCache
	Backup   Backup
	// DefaultLocation is used for users without a valid profile timezone
	DefaultLocation *time.Location
	Clock           streak.Clock
	Logger          *zap.Logger
}

// Coordinator owns the active session. The session value is replaced on every
// auth change and never modified in place.
type Coordinator struct {
	identity   Identity
	progress   *progress.Store
	profiles   *profile.Store
	ledger     *ledger.Ledger
	cache      KeyCache
	backup     Backup
	defaultLoc *time.Location
	clock      streak.Clock
	log        *zap.Logger
	metrics    *metrics.Metrics

	mu      sync.RWMutex
	current *models.Session

	unsubscribe func()
}

// New creates a coordinator in guest mode and subscribes it to auth events
func New(d Deps) *Coordinator {
	if d.DefaultLocation == nil {
		d.DefaultLocation = time.UTC
	}
	if d.Clock == nil {
		d.Clock = streak.SystemClock{}
	}
	c := &Coordinator{
		identity:   d.Identity,
		progress:   d.Progress,
		profiles:   d.Profiles,
		ledger:     d.Ledger,
		cache:      d.Cache,
		backup:     d.Backup,
		defaultLoc: d.DefaultLocation,
		clock:      d.Clock,
		log:        logger.OrNop(d.Logger),
		metrics:    metrics.New(),
	}
	c.current = models.GuestSession(c.defaultLoc)
	if c.identity != nil {
		c.unsubscribe = c.identity.OnAuthStateChange(c.handle)
	}
	return c
}

// Close stops listening to auth events
func (c *Coordinator) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// Current returns the active session
func (c *Coordinator) Current() *models.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *Coordinator) replace(sess *models.Session) {
	c.mu.Lock()
	c.current = sess
	c.mu.Unlock()
}

func (c *Coordinator) toGuest() *models.Session {
	guest := models.GuestSession(c.defaultLoc)
	guest.StartedAt = c.clock.Now()
	c.replace(guest)
	return guest
}

// handle drops back to guest mode when the active user signs out or is deleted elsewhere
func (c *Coordinator) handle(ev auth.Event) {
	if ev.Type != auth.EventSignedOut && ev.Type != auth.EventDeleted {
		return
	}
	if c.Current().ID() == ev.UserID {
		c.log.Info("active user left, switching to guest", zap.String("user_id", ev.UserID), zap.String("event", string(ev.Type)))
		c.toGuest()
	}
}

// SignIn authenticates and makes the user active, creating their records on first use
func (c *Coordinator) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	id, err := c.identity.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	sess := c.Bind(ctx, id, profile.Seed{FullName: id.FullName, Email: id.Email}, false)
	return sess, nil
}

// SignUp registers a user and makes them active. seed carries assessment
// results and goals chosen before sign-up.
func (c *Coordinator) SignUp(ctx context.Context, req auth.SignUpRequest, seed profile.Seed) (*models.Session, error) {
	id, err := c.identity.SignUp(ctx, req)
	if err != nil {
		return nil, err
	}
	seed.FullName = id.FullName
	seed.Email = id.Email
	return c.Bind(ctx, id, seed, true), nil
}

// Bind activates an authenticated identity. Missing progress and profile
// records are created; records that already exist count as success. With
// fresh set, an existing profile is reset to seed.
func (c *Coordinator) Bind(ctx context.Context, id auth.Identity, seed profile.Seed, fresh bool) *models.Session {
	sess := &models.Session{
		UserID:    id.UserID,
		Email:     id.Email,
		Token:     id.Token,
		Location:  c.defaultLoc,
		StartedAt: c.clock.Now(),
	}
	if seed.Timezone == "" {
		seed.Timezone = c.defaultLoc.String()
	}

	if _, err := c.progress.Init(ctx, sess); err != nil {
		c.log.Warn("failed to initialize progress",
			zap.String("user_id", sess.UserID),
			zap.String("op", "session.init_progress"),
			zap.Error(err))
	}

	var err error
	if fresh {
		err = c.profiles.Reset(ctx, sess, seed)
	} else {
		_, err = c.profiles.Init(ctx, sess, seed)
	}
	if err != nil {
		c.log.Warn("failed to initialize profile",
			zap.String("user_id", sess.UserID),
			zap.String("op", "session.init_profile"),
			zap.Error(err))
	}

	sess.Location = c.location(ctx, sess)
	c.replace(sess)
	c.log.Info("session bound", zap.String("user_id", sess.UserID), zap.String("tz", sess.Location.String()))
	return sess
}

// SignOut revokes the session's token and returns to guest mode
func (c *Coordinator) SignOut(ctx context.Context, sess *models.Session) error {
	var err error
	if !sess.IsGuest() && sess.Token != "" {
		err = c.identity.SignOut(ctx, sess.Token)
	}
	if c.Current().ID() == sess.ID() {
		c.toGuest()
	}
	return err
}

// Resolve turns a bearer token into a session. Unknown tokens get a guest session.
func (c *Coordinator) Resolve(ctx context.Context, token string) *models.Session {
	userID := ""
	if token != "" && c.identity != nil {
		userID = c.identity.GetSession(ctx, token)
	}
	if userID == "" {
		guest := models.GuestSession(c.defaultLoc)
		guest.StartedAt = c.clock.Now()
		return guest
	}
	sess := &models.Session{UserID: userID, Token: token, Location: c.defaultLoc, StartedAt: c.clock.Now()}
	sess.Location = c.location(ctx, sess)
	return sess
}

// location is the user's calendar zone from their profile
func (c *Coordinator) location(ctx context.Context, sess *models.Session) *time.Location {
	res := c.profiles.Get(ctx, sess)
	if res.Status != models.StatusOK {
		return c.defaultLoc
	}
	return profile.Location(res.Value, c.defaultLoc)
}
