// Package auth is the identity provider: accounts, password checks, opaque
// session tokens and auth state notifications.
package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/example/lexiday/internal/cache"
	apperrors "github.com/example/lexiday/internal/common/errors"
	"github.com/example/lexiday/internal/common/validation"
	"github.com/example/lexiday/internal/streak"
	"github.com/example/lexiday/pkg/config"
	"github.com/example/lexiday/pkg/logger"
	"github.com/example/lexiday/pkg/models"
)

// Accounts is the account persistence the provider needs
type Accounts interface {
	Create(ctx context.Context, a *models.Account) (models.InsertOutcome, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	Delete(ctx context.Context, id string) error
}

// Tokens stores session tokens
type Tokens interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	ClearValue(ctx context.Context, prefix, value string) (int64, error)
}

// EventType names an auth state change
type EventType string

const (
	EventSignedIn  EventType = "signed_in"
	EventSignedOut EventType = "signed_out"
	EventDeleted   EventType = "deleted"
)

// Event is delivered to OnAuthStateChange subscribers
type Event struct {
	Type   EventType
	UserID string
	Email  string
}

// SignUpRequest holds the sign-up form
type SignUpRequest struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// Identity is a signed-in user and their session token
type Identity struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Token    string `json:"token"`
}

// Options tunes the provider
type Options struct {
	SessionTTL       time.Duration
	AttemptsPerMin   int
	AttemptsBurst    int
	MinPasswordChars int
	HashCost         int
}

// OptionsFromConfig maps the auth config section
func OptionsFromConfig(cfg config.AuthConfig) Options {
	return Options{
		SessionTTL:       cfg.SessionTTL,
		AttemptsPerMin:   cfg.AttemptsPerMin,
		AttemptsBurst:    cfg.AttemptsBurst,
		MinPasswordChars: cfg.MinPasswordChars,
		HashCost:         bcrypt.DefaultCost,
	}
}

// Provider authenticates users
type Provider struct {
	accounts Accounts
	tokens   Tokens
	clock    streak.Clock
	log      *zap.Logger
	opts     Options

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	subMu  sync.RWMutex
	nextID int
	subs   map[int]func(Event)
}

// NewProvider creates an identity provider
func NewProvider(accounts Accounts, tokens Tokens, clock streak.Clock, opts Options, log *zap.Logger) *Provider {
	if clock == nil {
		clock = streak.SystemClock{}
	}
	if opts.AttemptsPerMin <= 0 {
		opts.AttemptsPerMin = 5
	}
	if opts.AttemptsBurst <= 0 {
		opts.AttemptsBurst = opts.AttemptsPerMin
	}
	if opts.MinPasswordChars <= 0 {
		opts.MinPasswordChars = 8
	}
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	return &Provider{
		accounts: accounts,
		tokens:   tokens,
		clock:    clock,
		log:      logger.OrNop(log),
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
		subs:     make(map[int]func(Event)),
	}
}

// SignUp creates an account and signs it in
func (p *Provider) SignUp(ctx context.Context, req SignUpRequest) (Identity, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if errs := validation.Validate(req); len(errs) > 0 {
		return Identity{}, apperrors.Validation("invalid sign-up details", validation.Summary(errs))
	}
	if len(req.Password) < p.opts.MinPasswordChars {
		return Identity{}, apperrors.Validation("password is too weak", fmt.Sprintf("Password: must be at least %d characters", p.opts.MinPasswordChars))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), p.opts.HashCost)
	if err != nil {
		return Identity{}, apperrors.Internal("failed to hash password", err.Error())
	}

	account := &models.Account{
		ID:           uuid.NewString(),
		Email:        req.Email,
		FullName:     req.Name,
		PasswordHash: string(hash),
		CreatedAt:    p.clock.Now().UTC(),
	}
	outcome, err := p.accounts.Create(ctx, account)
	if err != nil {
		return Identity{}, apperrors.Network(err.Error())
	}
	if outcome == models.InsertAlreadyExisted {
		return Identity{}, apperrors.AlreadyRegistered()
	}

	p.log.Info("account created", zap.String("user_id", account.ID))
	return p.startSession(ctx, account)
}

// SignIn checks credentials and issues a session token
func (p *Provider) SignIn(ctx context.Context, email, password string) (Identity, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Identity{}, apperrors.Validation("email and password are required", "")
	}
	if !p.limiter(email).AllowN(p.clock.Now(), 1) {
		p.log.Warn("sign-in rate limited", zap.String("email", email))
		return Identity{}, apperrors.RateLimited(time.Minute / time.Duration(p.opts.AttemptsPerMin))
	}

	account, err := p.accounts.GetByEmail(ctx, email)
	if err != nil {
		return Identity{}, apperrors.Network(err.Error())
	}
	if account == nil {
		return Identity{}, apperrors.InvalidCredentials()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return Identity{}, apperrors.InvalidCredentials()
	}
	return p.startSession(ctx, account)
}

// SignOut revokes a token
func (p *Provider) SignOut(ctx context.Context, token string) error {
	userID := p.GetSession(ctx, token)
	if userID == "" {
		return nil
	}
	if err := p.tokens.Delete(ctx, cache.SessionPrefix+token); err != nil {
		return apperrors.Network(err.Error())
	}
	p.emit(Event{Type: EventSignedOut, UserID: userID})
	return nil
}

// GetSession returns the user id bound to token, "" when unknown or expired
func (p *Provider) GetSession(ctx context.Context, token string) string {
	if token == "" {
		return ""
	}
	userID, ok := p.tokens.Get(ctx, cache.SessionPrefix+token)
	if !ok {
		return ""
	}
	return userID
}

// Account returns the account behind a user id
func (p *Provider) Account(ctx context.Context, userID string) (*models.Account, error) {
	return p.accounts.GetByID(ctx, userID)
}

// DeleteAccount removes the account and all of its tokens
func (p *Provider) DeleteAccount(ctx context.Context, userID string) error {
	if err := p.accounts.Delete(ctx, userID); err != nil {
		return err
	}
	if _, err := p.tokens.ClearValue(ctx, cache.SessionPrefix, userID); err != nil {
		return err
	}
	p.emit(Event{Type: EventDeleted, UserID: userID})
	return nil
}

// OnAuthStateChange subscribes fn to auth events and returns an unsubscribe func.
// Events are delivered synchronously.
func (p *Provider) OnAuthStateChange(fn func(Event)) func() {
	p.subMu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	p.subMu.Unlock()

	return func() {
		p.subMu.Lock()
		delete(p.subs, id)
		p.subMu.Unlock()
	}
}

func (p *Provider) emit(ev Event) {
	p.subMu.RLock()
	fns := make([]func(Event), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.subMu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (p *Provider) startSession(ctx context.Context, account *models.Account) (Identity, error) {
	token := uuid.NewString()
	if err := p.tokens.Set(ctx, cache.SessionPrefix+token, account.ID, p.opts.SessionTTL); err != nil {
		return Identity{}, apperrors.Network(err.Error())
	}
	p.emit(Event{Type: EventSignedIn, UserID: account.ID, Email: account.Email})
	return Identity{UserID: account.ID, Email: account.Email, FullName: account.FullName, Token: token}, nil
}

// maxLimiters is the map size at which sign-in attempts start sweeping
// limiters that have refilled
const maxLimiters = 10000

func (p *Provider) limiter(email string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	lim, ok := p.limiters[email]
	if !ok {
		if len(p.limiters) >= maxLimiters {
			p.pruneLocked(p.clock.Now())
		}
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(p.opts.AttemptsPerMin)), p.opts.AttemptsBurst)
		p.limiters[email] = lim
	}
	return lim
}

// PruneLimiters drops the per-email limiters that have refilled to their
// burst. Such a limiter behaves exactly like a new one. It returns how many
// were dropped.
func (p *Provider) PruneLimiters() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pruneLocked(p.clock.Now())
}

func (p *Provider) pruneLocked(now time.Time) int {
	n := 0
	for email, lim := range p.limiters {
		if lim.TokensAt(now) >= float64(lim.Burst()) {
			delete(p.limiters, email)
			n++
		}
	}
	return n
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
