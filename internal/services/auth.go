package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/jcob-sikorski/mech-mashup/internal/apierror"
	"github.com/jcob-sikorski/mech-mashup/internal/auth"
	"github.com/jcob-sikorski/mech-mashup/internal/config"
	"github.com/jcob-sikorski/mech-mashup/internal/models"
	"github.com/jcob-sikorski/mech-mashup/internal/repositories"
	"github.com/jcob-sikorski/mech-mashup/pkg/utils"
)

const usernameTakenMessage = "A user with that username already exists."

// errInvalidCredentials never leaves this package; callers see invalidCredentials().
var errInvalidCredentials = errors.New("invalid credentials")

// AuthService provides token issuance and verification on top of the account store.
type AuthService interface {
	auth.Authenticator
	RegisterAccount(ctx context.Context, req auth.RegisterRequest) (*models.AccountResponse, error)
	// Issue exchanges a username and password for an access/refresh pair.
	Issue(ctx context.Context, username, password string) (models.TokenPair, error)
	// Verify checks an access token and returns the account id it names.
	Verify(ctx context.Context, rawAccess string) (int64, error)
	// VerifyAny checks signature, expiry and blacklist membership of a token of either type.
	VerifyAny(ctx context.Context, raw string) error
	// Refresh mints a new access token from a refresh token, rotating the refresh token when configured.
	Refresh(ctx context.Context, rawRefresh string) (models.TokenPair, error)
	// Blacklist makes a refresh token unusable before it expires.
	Blacklist(ctx context.Context, rawRefresh string) error
	BlacklistEnabled() bool
}

type authService struct {
	accounts  repositories.AccountRepository
	blacklist repositories.BlacklistRepository
	tokens    *auth.TokenManager
	cfg       config.JWTConfig
}

// NewAuthService creates a new AuthService. blacklist may be nil, which disables blacklisting.
func NewAuthService(accounts repositories.AccountRepository, blacklist repositories.BlacklistRepository, tokens *auth.TokenManager, cfg config.JWTConfig) AuthService {
	if !cfg.BlacklistEnabled {
		blacklist = nil
	}
	return &authService{
		accounts:  accounts,
		blacklist: blacklist,
		tokens:    tokens,
		cfg:       cfg,
	}
}

func (s *authService) BlacklistEnabled() bool { return s.blacklist != nil }

// RegisterAccount creates an active, non-staff account.
func (s *authService) RegisterAccount(ctx context.Context, req auth.RegisterRequest) (*models.AccountResponse, error) {
	fields := map[string][]string{}
	if problems := utils.ValidatePassword(req.Password, req.Username); len(problems) > 0 {
		fields["password"] = problems
	}

	usernameExists, err := s.accounts.CheckUsernameExists(ctx, req.Username, 0)
	if err != nil {
		return nil, apierror.Internal(fmt.Errorf("failed to check username existence: %w", err))
	}
	if usernameExists {
		fields["username"] = []string{usernameTakenMessage}
	}
	if len(fields) > 0 {
		return nil, apierror.Validation(fields)
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, apierror.Internal(fmt.Errorf("failed to hash password: %w", err))
	}

	account, err := s.accounts.CreateAccount(ctx, models.Account{
		Username:     req.Username,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hashedPassword,
		IsActive:     true,
		DateJoined:   s.tokens.Now().UTC(),
	})
	if errors.Is(err, repositories.ErrDuplicateUsername) {
		return nil, apierror.FieldError("username", usernameTakenMessage)
	}
	if err != nil {
		return nil, apierror.Internal(fmt.Errorf("failed to create account: %w", err))
	}

	logrus.WithField("account_id", account.ID).Info("Account registered")
	resp := models.ToAccountResponse(*account)
	return &resp, nil
}

// Issue authenticates the credentials under a row lock and mints a token pair.
// Unknown usernames, wrong passwords and inactive accounts are indistinguishable.
func (s *authService) Issue(ctx context.Context, username, password string) (models.TokenPair, error) {
	now := s.tokens.Now().UTC()
	account, err := s.accounts.Login(ctx, username, func(a *models.Account) error {
		if !utils.CheckPasswordHash(password, a.PasswordHash) || !a.IsActive {
			return errInvalidCredentials
		}
		return nil
	}, now, s.cfg.UpdateLastLogin)

	switch {
	case errors.Is(err, repositories.ErrNotFound):
		// Pay for one hash comparison so timing does not reveal unknown usernames.
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		logrus.WithField("username", username).Info("Login failed: unknown username")
		return models.TokenPair{}, invalidCredentials()
	case errors.Is(err, errInvalidCredentials):
		logrus.WithField("username", username).Info("Login failed: bad credentials or inactive account")
		return models.TokenPair{}, invalidCredentials()
	case err != nil:
		return models.TokenPair{}, apierror.Internal(fmt.Errorf("login %q: %w", username, err))
	}

	access, err := s.tokens.Mint(account.ID, auth.TokenTypeAccess)
	if err != nil {
		return models.TokenPair{}, apierror.Internal(err)
	}
	refresh, err := s.tokens.Mint(account.ID, auth.TokenTypeRefresh)
	if err != nil {
		return models.TokenPair{}, apierror.Internal(err)
	}

	logrus.WithField("account_id", account.ID).Info("Token pair issued")
	return models.TokenPair{Access: access.Raw, Refresh: refresh.Raw}, nil
}

func (s *authService) Verify(_ context.Context, rawAccess string) (int64, error) {
	tok, err := s.tokens.Parse(rawAccess, auth.TokenTypeAccess)
	if err != nil {
		return 0, tokenError(err)
	}
	return tok.AccountID, nil
}

// Authenticate verifies an access token and loads the account it names.
func (s *authService) Authenticate(ctx context.Context, rawAccess string) (auth.Identity, error) {
	accountID, err := s.Verify(ctx, rawAccess)
	if err != nil {
		return auth.Anonymous, err
	}

	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if errors.Is(err, repositories.ErrNotFound) {
		return auth.Anonymous, apierror.Authentication(apierror.CodeAuthFailed, "User not found", err)
	}
	if err != nil {
		return auth.Anonymous, apierror.Internal(fmt.Errorf("load account %d: %w", accountID, err))
	}
	if !account.IsActive {
		return auth.Anonymous, apierror.Authentication(apierror.CodeAuthFailed, "User is inactive", nil)
	}

	return auth.Identity{
		AccountID: account.ID,
		Username:  account.Username,
		IsStaff:   account.IsStaff,
	}, nil
}

func (s *authService) VerifyAny(ctx context.Context, raw string) error {
	tok, err := s.tokens.Parse(raw, "")
	if err != nil {
		return tokenError(err)
	}
	return s.checkBlacklist(ctx, tok)
}

// Refresh does not consult the account store; a refresh token stays usable
// for its whole lifetime unless it is blacklisted.
func (s *authService) Refresh(ctx context.Context, rawRefresh string) (models.TokenPair, error) {
	tok, err := s.tokens.Parse(rawRefresh, auth.TokenTypeRefresh)
	if err != nil {
		return models.TokenPair{}, tokenError(err)
	}
	if err := s.checkBlacklist(ctx, tok); err != nil {
		return models.TokenPair{}, err
	}

	access, err := s.tokens.Mint(tok.AccountID, auth.TokenTypeAccess)
	if err != nil {
		return models.TokenPair{}, apierror.Internal(err)
	}
	pair := models.TokenPair{Access: access.Raw}

	if !s.cfg.RotateRefreshTokens {
		return pair, nil
	}

	if s.blacklist != nil && s.cfg.BlacklistAfterRotation {
		if err := s.addToBlacklist(ctx, tok); err != nil {
			return models.TokenPair{}, err
		}
	}
	refresh, err := s.tokens.Mint(tok.AccountID, auth.TokenTypeRefresh)
	if err != nil {
		return models.TokenPair{}, apierror.Internal(err)
	}
	pair.Refresh = refresh.Raw

	logrus.WithField("account_id", tok.AccountID).Debug("Refresh token rotated")
	return pair, nil
}

func (s *authService) Blacklist(ctx context.Context, rawRefresh string) error {
	if s.blacklist == nil {
		return apierror.Internal(errors.New("token blacklist is disabled"))
	}
	tok, err := s.tokens.Parse(rawRefresh, auth.TokenTypeRefresh)
	if err != nil {
		return tokenError(err)
	}
	if err := s.addToBlacklist(ctx, tok); err != nil {
		return err
	}
	logrus.WithField("account_id", tok.AccountID).Info("Refresh token blacklisted")
	return nil
}

func (s *authService) checkBlacklist(ctx context.Context, tok auth.Token) error {
	if s.blacklist == nil {
		return nil
	}
	listed, err := s.blacklist.Contains(ctx, tok.JTI)
	if err != nil {
		return apierror.Internal(fmt.Errorf("check blacklist: %w", err))
	}
	if listed {
		return apierror.Authentication(apierror.CodeTokenNotValid, "Token is blacklisted", auth.ErrTokenBlacklisted)
	}
	return nil
}

func (s *authService) addToBlacklist(ctx context.Context, tok auth.Token) error {
	err := s.blacklist.Add(ctx, models.BlacklistedToken{
		JTI:           tok.JTI,
		AccountID:     tok.AccountID,
		ExpiresAt:     tok.ExpiresAt,
		BlacklistedAt: s.tokens.Now().UTC(),
	})
	if err != nil {
		return apierror.Internal(fmt.Errorf("blacklist token: %w", err))
	}
	return nil
}

func invalidCredentials() *apierror.Error {
	return apierror.Authentication(apierror.CodeInvalidCredentials,
		"No active account found with the given credentials", nil)
}

func tokenError(err error) *apierror.Error {
	return apierror.Authentication(apierror.CodeTokenNotValid, "Token is invalid or expired", err)
}

var (
	dummyHashOnce sync.Once
	dummyHashVal  []byte
)

// dummyHash is a bcrypt hash at the default cost that no password is expected to match.
func dummyHash() []byte {
	dummyHashOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("mech-mashup-unusable-password"), bcrypt.DefaultCost)
		if err != nil {
			logrus.WithError(err).Error("Failed to prepare dummy password hash")
		}
		dummyHashVal = h
	})
	return dummyHashVal
}
