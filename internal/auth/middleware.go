package auth

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jcob-sikorski/mech-mashup/internal/apierror"
	"github.com/jcob-sikorski/mech-mashup/pkg/utils"
	"github.com/sirupsen/logrus"
)

const bearerScheme = "Bearer"

// Authenticator turns a raw access token into the identity of an active account.
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (Identity, error)
}

// Authenticate resolves the caller from the Authorization header. Requests
// without a Bearer credential continue as Anonymous; a Bearer credential that
// fails verification is rejected with 401 before any handler runs.
func Authenticate(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !ok {
			setIdentity(c, Anonymous)
			c.Next()
			return
		}

		identity, err := a.Authenticate(c.Request.Context(), raw)
		if err != nil {
			if apierror.IsKind(err, apierror.KindAuthentication) {
				logrus.WithError(err).WithField("path", c.Request.URL.Path).Debug("Rejected bearer token")
			}
			abortWithError(c, err)
			return
		}

		setIdentity(c, identity)
		c.Next()
	}
}

// bearerToken extracts the token from an Authorization header value. ok is
// false when the header is absent or uses another scheme.
func bearerToken(header string) (token string, ok bool, err error) {
	parts := strings.Fields(header)
	if len(parts) == 0 || parts[0] != bearerScheme {
		return "", false, nil
	}
	switch len(parts) {
	case 1:
		return "", false, apierror.Authentication(apierror.CodeAuthFailed,
			"Invalid Authorization header. No credentials provided.", nil)
	case 2:
		return parts[1], true, nil
	default:
		return "", false, apierror.Authentication(apierror.CodeAuthFailed,
			"Invalid Authorization header. Credentials string should not contain spaces.", nil)
	}
}

// RequirePermission aborts the request unless the policy allows action on the
// target named by the request.
func RequirePermission(action Action, target func(*gin.Context) Target) gin.HandlerFunc {
	return func(c *gin.Context) {
		t := NoTarget
		if target != nil {
			t = target(c)
		}

		identity := CurrentIdentity(c)
		if err := Check(identity, action, t); err != nil {
			logrus.WithFields(logrus.Fields{
				"account_id": identity.AccountID,
				"action":     action,
				"target":     t.AccountID,
			}).Info("Permission denied")
			abortWithError(c, err)
			return
		}
		c.Next()
	}
}

// ParamTarget reads the target account id from the named path parameter.
func ParamTarget(name string) func(*gin.Context) Target {
	return func(c *gin.Context) Target {
		id, err := strconv.ParseInt(c.Param(name), 10, 64)
		if err != nil || id <= 0 {
			return NoTarget
		}
		return TargetID(id)
	}
}

func abortWithError(c *gin.Context, err error) {
	utils.SendAPIError(c, err)
	c.Abort()
}
