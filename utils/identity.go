package utils

import (
	"github.com/gin-gonic/gin"
)

// UserIDHeader is the client-asserted identity header. The value is trusted
// at face value: there is no credential behind it, and ownership checks
// simply compare it against the stored ownerId.
const UserIDHeader = "x-user-id"

// identityKey is the gin context key the acting user id is stored under.
const identityKey = "actingUserID"

// IdentityMiddleware copies the x-user-id header into the request context.
// It never rejects a request: each handler decides whether a missing
// identity is a 400 or a 403.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.GetHeader(UserIDHeader); id != "" {
			c.Set(identityKey, id)
		}
		c.Next()
	}
}

// ActingUserID returns the caller-asserted user id, if one was supplied.
func ActingUserID(c *gin.Context) (string, bool) {
	value, exists := c.Get(identityKey)
	if !exists {
		return "", false
	}
	id, ok := value.(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
