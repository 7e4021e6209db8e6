package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/example/lexiday/pkg/models"
)

// AccountRepository handles database operations for identity accounts
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new repository instance
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts an account; an already registered email reports InsertAlreadyExisted
func (r *AccountRepository) Create(ctx context.Context, a *models.Account) (models.InsertOutcome, error) {
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	query := r.db.Rebind(`
		INSERT INTO accounts (id, email, full_name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (email) DO NOTHING
	`)
	res, err := r.db.ExecContext(ctx, query, a.ID, a.Email, a.FullName, a.PasswordHash, a.CreatedAt.UTC())
	if err != nil {
		return models.InsertFailed, fmt.Errorf("failed to create account: %w", err)
	}
	return outcome(res)
}

// GetByEmail returns an account by email, or nil when there is none
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getOne(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

// GetByID returns an account by id, or nil when there is none
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.getOne(ctx, "id", id)
}

// Delete removes an account
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM accounts WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

func (r *AccountRepository) getOne(ctx context.Context, column, value string) (*models.Account, error) {
	var account models.Account
	query := r.db.Rebind("SELECT id, email, full_name, password_hash, created_at FROM accounts WHERE " + column + " = ?")
	err := r.db.GetContext(ctx, &account, query, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}
