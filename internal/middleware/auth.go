package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/xoen85/accept-connect-app-oqvfkg/internal/auth"
	"github.com/xoen85/accept-connect-app-oqvfkg/pkg/errors"
	"github.com/xoen85/accept-connect-app-oqvfkg/pkg/response"
)

const (
	CtxClaimsKey    = "authClaims"
	CtxUserIDKey    = "userID"
	CtxSessionIDKey = "sessionID"

	accessTokenQueryParam = "access_token"
)

// AuthOption customises the Auth middleware.
type AuthOption func(*authOptions)

type authOptions struct {
	allowQueryToken bool
}

// AllowQueryToken accepts the bearer token from the access_token query parameter. Browsers cannot
// set headers on websocket upgrades, so the push stream relies on this.
func AllowQueryToken() AuthOption {
	return func(o *authOptions) {
		o.allowQueryToken = true
	}
}

// Auth enforces JWT authentication using the supplied JWT service.
func Auth(jwt *iauth.JWTService, opts ...AuthOption) gin.HandlerFunc {
	var cfg authOptions
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(c *gin.Context) {
		token := bearerToken(c, cfg.allowQueryToken)
		if token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			response.Abort(c, errors.ErrUnauthorized)
			return
		}

		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// All validation failures are reported as 401.
			c.Header("WWW-Authenticate", "Bearer")
			response.Abort(c, errors.ErrUnauthorized)
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		if claims.SessionID != "" {
			c.Set(CtxSessionIDKey, claims.SessionID)
		}

		c.Next()
	}
}

func bearerToken(c *gin.Context, allowQuery bool) string {
	authz := c.GetHeader("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "Bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	if allowQuery {
		return strings.TrimSpace(c.Query(accessTokenQueryParam))
	}
	return ""
}
