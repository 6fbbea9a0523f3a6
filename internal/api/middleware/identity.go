package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nicholaswood-whop/trading-view-whop/internal/auth"
)

// IdentityKey is the context key under which the decoded identity is stored.
const IdentityKey = "identity"

// RequireIdentity extracts the platform identity from the request token and
// aborts with 401 when none is present.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := auth.IdentityFromRequest(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// GetIdentity returns the identity stored by RequireIdentity.
func GetIdentity(c *gin.Context) (*auth.Identity, bool) {
	value, exists := c.Get(IdentityKey)
	if !exists {
		return nil, false
	}
	identity, ok := value.(*auth.Identity)
	return identity, ok
}

// ResolveCompanyID returns the caller's company. When the token carries no
// company claim the companyId query parameter is accepted instead, which is
// how the embedded dashboard passes the context company on some views.
func ResolveCompanyID(c *gin.Context) string {
	identity, ok := GetIdentity(c)
	if ok && identity.CompanyID != "" {
		return identity.CompanyID
	}
	return c.Query("companyId")
}
