package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"social-service/internal/models"
)

var ErrAccountNotFound = errors.New("account not found")

// AccountRepository reads account identities.
type AccountRepository interface {
	GetAccount(ctx context.Context, accountID int) (models.Account, error)
	NearbyAccountIDs(ctx context.Context, city, state string) ([]int, error)
}

// AccountRepo is a sqlx implementation of AccountRepository.
type AccountRepo struct {
	db *sqlx.DB
}

// NewAccountRepo constructs an AccountRepo.
func NewAccountRepo(db *sqlx.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

// GetAccount fetches an account by id.
func (r *AccountRepo) GetAccount(ctx context.Context, accountID int) (models.Account, error) {
	var account models.Account
	err := r.db.GetContext(ctx, &account, `SELECT id, display_name, COALESCE(city, '') AS city, COALESCE(state, '') AS state, is_banned, created_at
        FROM accounts WHERE id=$1`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, ErrAccountNotFound
	}
	return account, err
}

// NearbyAccountIDs returns accounts in the same city (case-insensitive), or in the same state
// when state is non-empty and differs from the city.
func (r *AccountRepo) NearbyAccountIDs(ctx context.Context, city, state string) ([]int, error) {
	city = strings.TrimSpace(city)
	state = strings.TrimSpace(state)
	if strings.EqualFold(city, state) {
		state = ""
	}
	if city == "" && state == "" {
		return nil, nil
	}

	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT id FROM accounts
        WHERE ($1 <> '' AND LOWER(city) = LOWER($1))
        OR ($2 <> '' AND LOWER(state) = LOWER($2))`, city, state)
	return ids, err
}
