package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/jcob-sikorski/mech-mashup/internal/apierror"
	"github.com/jcob-sikorski/mech-mashup/internal/models"
	"github.com/jcob-sikorski/mech-mashup/internal/repositories"
	"github.com/jcob-sikorski/mech-mashup/pkg/utils"
)

// UserService provides business logic for the users resource.
type UserService interface {
	ListAccounts(ctx context.Context) ([]models.AccountResponse, error)
	GetAccount(ctx context.Context, id int64) (*models.AccountResponse, error)
	// UpdateAccount applies a JSON profile update. partial selects PATCH semantics.
	UpdateAccount(ctx context.Context, id int64, body []byte, partial bool) (*models.AccountResponse, error)
	CreateStaff(ctx context.Context, username, email, password string) (*models.AccountResponse, error)
	PromoteStaff(ctx context.Context, username string) (*models.AccountResponse, error)
}

type userService struct {
	accountRepo repositories.AccountRepository
}

// NewUserService creates a new UserService.
func NewUserService(accountRepo repositories.AccountRepository) UserService {
	return &userService{
		accountRepo: accountRepo,
	}
}

// ListAccounts returns every account, newest first.
func (s *userService) ListAccounts(ctx context.Context) ([]models.AccountResponse, error) {
	accounts, err := s.accountRepo.ListAccounts(ctx)
	if err != nil {
		return nil, apierror.Internal(fmt.Errorf("service: failed to list accounts: %w", err))
	}

	resp := make([]models.AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, models.ToAccountResponse(a))
	}
	return resp, nil
}

func (s *userService) GetAccount(ctx context.Context, id int64) (*models.AccountResponse, error) {
	account, err := s.accountRepo.GetAccountByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apierror.NotFound("")
	}
	if err != nil {
		return nil, apierror.Internal(fmt.Errorf("service: failed to get account by ID: %w", err))
	}
	resp := models.ToAccountResponse(*account)
	return &resp, nil
}

func (s *userService) UpdateAccount(ctx context.Context, id int64, body []byte, partial bool) (*models.AccountResponse, error) {
	update, err := DecodeAccountUpdate(body, partial)
	if err != nil {
		return nil, err
	}

	if update.Username != nil {
		taken, err := s.accountRepo.CheckUsernameExists(ctx, *update.Username, id)
		if err != nil {
			return nil, apierror.Internal(fmt.Errorf("service: failed to check username existence: %w", err))
		}
		if taken {
			return nil, apierror.FieldError("username", usernameTakenMessage)
		}
	}

	account, err := s.accountRepo.UpdateAccount(ctx, id, update)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return nil, apierror.NotFound("")
	case errors.Is(err, repositories.ErrDuplicateUsername):
		// Lost a race with a concurrent write that passed the check above.
		return nil, apierror.FieldError("username", usernameTakenMessage)
	case err != nil:
		return nil, apierror.Internal(fmt.Errorf("service: failed to update account: %w", err))
	}

	logrus.WithField("account_id", id).Info("Account updated")
	resp := models.ToAccountResponse(*account)
	return &resp, nil
}

// CreateStaff inserts an active staff account.
func (s *userService) CreateStaff(ctx context.Context, username, email, password string) (*models.AccountResponse, error) {
	fields := map[string][]string{}
	if !utils.IsValidUsername(username) || utf8.RuneCountInString(username) > 150 {
		fields["username"] = []string{"Enter a valid username."}
	}
	if email != "" && !utils.IsValidEmail(email) {
		fields["email"] = []string{"Enter a valid email address."}
	}
	if problems := utils.ValidatePassword(password, username); len(problems) > 0 {
		fields["password"] = problems
	}
	if len(fields) > 0 {
		return nil, apierror.Validation(fields)
	}

	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return nil, apierror.Internal(fmt.Errorf("failed to hash password: %w", err))
	}

	account, err := s.accountRepo.CreateAccount(ctx, models.Account{
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		IsActive:     true,
		IsStaff:      true,
		DateJoined:   time.Now().UTC(),
	})
	if errors.Is(err, repositories.ErrDuplicateUsername) {
		return nil, apierror.Conflict(usernameTakenMessage)
	}
	if err != nil {
		return nil, apierror.Internal(fmt.Errorf("service: failed to create staff account: %w", err))
	}
	resp := models.ToAccountResponse(*account)
	return &resp, nil
}

// PromoteStaff grants staff status to an existing account.
func (s *userService) PromoteStaff(ctx context.Context, username string) (*models.AccountResponse, error) {
	account, err := s.accountRepo.SetStaff(ctx, username, true)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apierror.NotFound(fmt.Sprintf("No account named %q.", username))
	}
	if err != nil {
		return nil, apierror.Internal(fmt.Errorf("service: failed to promote account: %w", err))
	}
	resp := models.ToAccountResponse(*account)
	return &resp, nil
}

// DecodeAccountUpdate parses a profile update body. Read-only and unknown
// fields are rejected, not ignored. With partial unset, username is required.
func DecodeAccountUpdate(body []byte, partial bool) (models.AccountUpdate, error) {
	var update models.AccountUpdate

	raw := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &raw); err != nil {
			return update, apierror.ParseError(err)
		}
		if raw == nil {
			return update, apierror.Validation(map[string][]string{
				apierror.NonFieldErrors: {"No data provided"},
			})
		}
	}

	fields := map[string][]string{}
	for key, value := range raw {
		if _, ok := models.ReadOnlyFields[key]; ok {
			fields[key] = append(fields[key], "This field is read-only.")
			continue
		}
		if _, ok := models.WritableFields[key]; !ok {
			fields[key] = append(fields[key], "Unknown field.")
			continue
		}
		if string(bytes.TrimSpace(value)) == "null" {
			fields[key] = append(fields[key], "This field may not be null.")
			continue
		}
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			fields[key] = append(fields[key], "Not a valid string.")
			continue
		}
		setField(&update, key, s)
	}

	if !partial && update.Username == nil && fields["username"] == nil {
		fields["username"] = []string{"This field is required."}
	}

	if err := utils.ValidateStruct(&update); err != nil {
		msgs := utils.ValidationMessages(err)
		if msgs == nil {
			return update, apierror.Internal(err)
		}
		for k, v := range msgs {
			fields[k] = append(fields[k], v...)
		}
	}

	if len(fields) > 0 {
		return models.AccountUpdate{}, apierror.Validation(fields)
	}
	return update, nil
}

func setField(update *models.AccountUpdate, key, value string) {
	v := value
	switch key {
	case "username":
		update.Username = &v
	case "email":
		update.Email = &v
	case "first_name":
		update.FirstName = &v
	case "last_name":
		update.LastName = &v
	}
}
