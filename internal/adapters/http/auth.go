package http

import (
	nethttp "net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/dkeye/songroom/internal/domain"
	"github.com/dkeye/songroom/internal/identity"
)

const (
	actorKey       = "user_id"
	sessionUserKey = "uid"
)

// IdentityMiddleware resolves the caller from a bearer token, falling back to
// the guest id kept in the cookie session. A bad token is rejected outright;
// no identity at all is left for handlers to refuse.
func IdentityMiddleware(tokens *identity.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, err := identity.FromRequest(c.Request); err == nil {
			uid, err := tokens.Verify(raw)
			if err != nil {
				c.AbortWithStatusJSON(nethttp.StatusUnauthorized, gin.H{"error": "unauthenticated"})
				return
			}
			c.Set(actorKey, uid)
		} else if uid, ok := sessions.Default(c).Get(sessionUserKey).(string); ok && domain.ValidUserID(domain.UserID(uid)) {
			c.Set(actorKey, domain.UserID(uid))
		}
		c.Next()
	}
}

// Actor is the authenticated caller, empty when there is none.
func Actor(c *gin.Context) domain.UserID {
	v, _ := c.Get(actorKey)
	uid, _ := v.(domain.UserID)
	return uid
}
