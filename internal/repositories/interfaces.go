package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jcob-sikorski/mech-mashup/internal/models"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_repositories.go -package=mocks

var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateUsername is returned when the unique index on users.username rejects a write.
	ErrDuplicateUsername = errors.New("username already exists")
)

// AccountRepository defines the interface for account data operations
type AccountRepository interface {
	ListAccounts(ctx context.Context) ([]models.Account, error)
	GetAccountByID(ctx context.Context, id int64) (*models.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)
	CreateAccount(ctx context.Context, account models.Account) (*models.Account, error)
	UpdateAccount(ctx context.Context, id int64, update models.AccountUpdate) (*models.Account, error)
	SetStaff(ctx context.Context, username string, isStaff bool) (*models.Account, error)
	CheckUsernameExists(ctx context.Context, username string, excludeID int64) (bool, error)
	// Login locks the account row, runs verify against it and, when verify succeeds and
	// recordLogin is set, stores now as last_login before the lock is released.
	Login(ctx context.Context, username string, verify func(*models.Account) error, now time.Time, recordLogin bool) (*models.Account, error)
}

// BlacklistRepository stores refresh token identifiers that may no longer be used
type BlacklistRepository interface {
	Add(ctx context.Context, token models.BlacklistedToken) error
	Contains(ctx context.Context, jti string) (bool, error)
}
