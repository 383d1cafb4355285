package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jcob-sikorski/mech-mashup/internal/config"
)

// Token types carried in the token type claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

const jtiClaim = "jti"

var (
	ErrTokenMalformed   = errors.New("token is malformed")
	ErrTokenSignature   = errors.New("token signature is invalid")
	ErrTokenExpired     = errors.New("token is expired")
	ErrTokenType        = errors.New("token has wrong type")
	ErrTokenClaims      = errors.New("token contains invalid claims")
	ErrTokenBlacklisted = errors.New("token is blacklisted")
)

// Token is a verified (or freshly minted) token with its claims decoded.
type Token struct {
	Raw       string
	Type      string
	JTI       string
	AccountID int64
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenManager mints and verifies HS256 tokens. It holds no mutable state.
type TokenManager struct {
	secret         []byte
	accessTTL      time.Duration
	refreshTTL     time.Duration
	userIDClaim    string
	tokenTypeClaim string
	now            func() time.Time
}

func NewTokenManager(cfg config.JWTConfig) *TokenManager {
	return &TokenManager{
		secret:         []byte(cfg.SecretKey),
		accessTTL:      cfg.AccessTokenLifetime,
		refreshTTL:     cfg.RefreshTokenLifetime,
		userIDClaim:    cfg.UserIDClaim,
		tokenTypeClaim: cfg.TokenTypeClaim,
		now:            time.Now,
	}
}

// WithClock returns a copy of m that reads the current time from now.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	cp := *m
	cp.now = now
	return &cp
}

// Now is the manager's notion of the current time.
func (m *TokenManager) Now() time.Time { return m.now() }

// Mint creates a signed token of the given type for accountID.
func (m *TokenManager) Mint(accountID int64, tokenType string) (Token, error) {
	var ttl time.Duration
	switch tokenType {
	case TokenTypeAccess:
		ttl = m.accessTTL
	case TokenTypeRefresh:
		ttl = m.refreshTTL
	default:
		return Token{}, fmt.Errorf("unknown token type %q", tokenType)
	}

	now := m.now()
	t := Token{
		Type:      tokenType,
		JTI:       uuid.New().String(),
		AccountID: accountID,
		IssuedAt:  time.Unix(now.Unix(), 0),
		ExpiresAt: time.Unix(now.Add(ttl).Unix(), 0),
	}

	claims := jwt.MapClaims{
		m.userIDClaim:    accountID,
		m.tokenTypeClaim: tokenType,
		jtiClaim:         t.JTI,
		"iat":            t.IssuedAt.Unix(),
		"exp":            t.ExpiresAt.Unix(),
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	t.Raw = raw
	return t, nil
}

// Parse verifies signature and expiry and decodes the claims. An empty
// expectedType accepts any token type.
func (m *TokenManager) Parse(raw, expectedType string) (Token, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
		jwt.WithJSONNumber(),
	)

	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return Token{}, classify(err)
	}

	tokenType, ok := claims[m.tokenTypeClaim].(string)
	if !ok || tokenType == "" {
		return Token{}, fmt.Errorf("%w: no recognizable token type", ErrTokenClaims)
	}
	if expectedType != "" && tokenType != expectedType {
		return Token{}, fmt.Errorf("%w: expected %s, got %s", ErrTokenType, expectedType, tokenType)
	}

	accountID, err := parseAccountID(claims[m.userIDClaim])
	if err != nil {
		return Token{}, err
	}

	jti, ok := claims[jtiClaim].(string)
	if !ok || jti == "" {
		return Token{}, fmt.Errorf("%w: no token identifier", ErrTokenClaims)
	}

	t := Token{Raw: raw, Type: tokenType, JTI: jti, AccountID: accountID}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		t.IssuedAt = iat.Time
	}
	return t, nil
}

// classify maps jwt library errors onto this package's error set. Signature
// problems are reported before any claim is looked at.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrTokenSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %w", ErrTokenClaims, err)
	}
}

func parseAccountID(v interface{}) (int64, error) {
	var (
		id  int64
		err error
	)
	switch n := v.(type) {
	case json.Number:
		id, err = n.Int64()
	case string:
		id, err = strconv.ParseInt(n, 10, 64)
	case float64:
		id = int64(n)
		if float64(id) != n {
			err = errors.New("not an integer")
		}
	default:
		return 0, fmt.Errorf("%w: no recognizable user identification", ErrTokenClaims)
	}
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid user identification", ErrTokenClaims)
	}
	return id, nil
}
