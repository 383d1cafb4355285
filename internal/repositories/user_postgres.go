package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jcob-sikorski/mech-mashup/internal/database"
	"github.com/jcob-sikorski/mech-mashup/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const accountColumns = `id, username, email, first_name, last_name, password,
               is_active, is_staff, date_joined, last_login`

// PostgresAccountRepository implements AccountRepository for PostgreSQL
type PostgresAccountRepository struct {
	db *sqlx.DB
}

// NewPostgresAccountRepository creates a new instance of PostgresAccountRepository
func NewPostgresAccountRepository(db *sqlx.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

// ListAccounts retrieves all accounts, newest first
func (repo *PostgresAccountRepository) ListAccounts(ctx context.Context) ([]models.Account, error) {
	accounts := []models.Account{}
	err := repo.db.SelectContext(ctx, &accounts, `
        SELECT `+accountColumns+`
        FROM users ORDER BY date_joined DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("error querying accounts: %w", err)
	}
	return accounts, nil
}

// GetAccountByID retrieves an account by its ID
func (repo *PostgresAccountRepository) GetAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	var a models.Account
	err := repo.db.GetContext(ctx, &a, `
        SELECT `+accountColumns+`
        FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying account by ID: %w", err)
	}
	return &a, nil
}

// GetAccountByUsername retrieves an account by its username
func (repo *PostgresAccountRepository) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	var a models.Account
	err := repo.db.GetContext(ctx, &a, `
        SELECT `+accountColumns+`
        FROM users WHERE username = $1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying account by username: %w", err)
	}
	return &a, nil
}

// CreateAccount inserts a new account and returns it with its generated ID
func (repo *PostgresAccountRepository) CreateAccount(ctx context.Context, account models.Account) (*models.Account, error) {
	if account.DateJoined.IsZero() {
		account.DateJoined = time.Now().UTC()
	}

	err := repo.db.QueryRowxContext(ctx, `
        INSERT INTO users (username, email, first_name, last_name, password, is_active, is_staff, date_joined)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id`,
		account.Username, account.Email, account.FirstName, account.LastName,
		account.PasswordHash, account.IsActive, account.IsStaff, account.DateJoined,
	).Scan(&account.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("error creating account: %w", err)
	}
	return &account, nil
}

// UpdateAccount writes the supplied profile fields and returns the stored account
func (repo *PostgresAccountRepository) UpdateAccount(ctx context.Context, id int64, update models.AccountUpdate) (*models.Account, error) {
	if update.IsEmpty() {
		return repo.GetAccountByID(ctx, id)
	}

	// Build the update query dynamically
	updates := []string{}
	args := []interface{}{}
	argCounter := 1

	set := func(column string, value *string) {
		if value == nil {
			return
		}
		updates = append(updates, fmt.Sprintf("%s = $%d", column, argCounter))
		args = append(args, *value)
		argCounter++
	}
	set("username", update.Username)
	set("email", update.Email)
	set("first_name", update.FirstName)
	set("last_name", update.LastName)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(updates, ", "), argCounter, accountColumns)
	args = append(args, id)

	var a models.Account
	err := repo.db.GetContext(ctx, &a, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("error updating account: %w", err)
	}
	return &a, nil
}

// SetStaff grants or revokes staff status
func (repo *PostgresAccountRepository) SetStaff(ctx context.Context, username string, isStaff bool) (*models.Account, error) {
	var a models.Account
	err := repo.db.GetContext(ctx, &a, `
        UPDATE users SET is_staff = $1 WHERE username = $2
        RETURNING `+accountColumns, isStaff, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error updating staff status: %w", err)
	}
	return &a, nil
}

// CheckUsernameExists reports whether another account already uses username
func (repo *PostgresAccountRepository) CheckUsernameExists(ctx context.Context, username string, excludeID int64) (bool, error) {
	var count int
	err := repo.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM users WHERE username = $1 AND id <> $2`, username, excludeID)
	if err != nil {
		return false, fmt.Errorf("error checking username existence: %w", err)
	}
	return count > 0, nil
}

// Login locks the account row for the verify and last_login sequence
func (repo *PostgresAccountRepository) Login(ctx context.Context, username string, verify func(*models.Account) error, now time.Time, recordLogin bool) (*models.Account, error) {
	var a models.Account
	err := database.WithTx(ctx, repo.db, nil, func(ctx context.Context, tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &a, `
        SELECT `+accountColumns+`
        FROM users WHERE username = $1 FOR UPDATE`, username)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("error locking account: %w", err)
		}

		if err := verify(&a); err != nil {
			return err
		}

		if recordLogin {
			if _, err := tx.ExecContext(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, now, a.ID); err != nil {
				return fmt.Errorf("error recording last login: %w", err)
			}
			a.LastLogin = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgerrcode.UniqueViolation
}
