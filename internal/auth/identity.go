package auth

import (
	"context"

	"github.com/gin-gonic/gin"
)

// Identity is the caller resolved for a request. The zero value is anonymous.
type Identity struct {
	AccountID int64
	Username  string
	IsStaff   bool
}

// Anonymous is the identity of a request without credentials.
var Anonymous = Identity{}

func (i Identity) IsAuthenticated() bool { return i.AccountID != 0 }

type identityKey struct{}

const ginIdentityKey = "identity"

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity stored in ctx, or Anonymous.
func IdentityFromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityKey{}).(Identity); ok {
		return id
	}
	return Anonymous
}

// CurrentIdentity returns the identity the authentication middleware attached to c.
func CurrentIdentity(c *gin.Context) Identity {
	if v, ok := c.Get(ginIdentityKey); ok {
		if id, ok := v.(Identity); ok {
			return id
		}
	}
	return IdentityFromContext(c.Request.Context())
}

func setIdentity(c *gin.Context, identity Identity) {
	c.Set(ginIdentityKey, identity)
	c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), identity))
}
