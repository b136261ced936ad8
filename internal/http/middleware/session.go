package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	gojwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/smallbiznis/cardlink/internal/jwt"
	"github.com/smallbiznis/cardlink/internal/session"
)

// SessionCookie carries the access token for browser clients.
const SessionCookie = "cardlink_session"

const (
	sessionClaimsKey = "sessionClaims"
	upgradeClaimsKey = "upgradeClaims"
	stdClaimsKey     = "stdClaims"
)

// Auth validates credentials and attaches claims.
type Auth struct {
	Sessions *session.Manager
	Upgrades *jwt.UpgradeIssuer
}

// RequireSession authenticates the owner of a profile. A bearer token that fails
// verification is rejected outright. Without a bearer token the session cookie is consulted,
// and an unreadable cookie counts as no session.
func (m *Auth) RequireSession(c *gin.Context) {
	if token, present := bearerToken(c); present {
		claims, err := m.Sessions.Verify(token)
		if err != nil {
			abortUnauthorized(c, "Invalid access token.")
			return
		}
		c.Set(sessionClaimsKey, claims)
		c.Next()
		return
	}

	if cookie, err := c.Cookie(SessionCookie); err == nil {
		if claims, ok := m.Sessions.VerifySoft(cookie); ok {
			c.Set(sessionClaimsKey, claims)
			c.Next()
			return
		}
	}
	abortUnauthorized(c, "Authentication required.")
}

// RequireUpgrade authenticates a client holding an upgrade token from a redeemed capability.
func (m *Auth) RequireUpgrade(c *gin.Context) {
	token, present := bearerToken(c)
	if !present {
		abortUnauthorized(c, "Bearer token required.")
		return
	}
	std, claims, err := m.Upgrades.Validate(token)
	if err != nil {
		abortUnauthorized(c, "Invalid upgrade token.")
		return
	}
	c.Set(stdClaimsKey, std)
	c.Set(upgradeClaimsKey, claims)
	c.Next()
}

// GetSessionClaims exposes session claims to handlers.
func GetSessionClaims(c *gin.Context) (session.Claims, bool) {
	value, ok := c.Get(sessionClaimsKey)
	if !ok {
		return session.Claims{}, false
	}
	claims, ok := value.(session.Claims)
	return claims, ok
}

// GetUpgradeClaims exposes upgrade token claims to handlers.
func GetUpgradeClaims(c *gin.Context) (*jwt.UpgradeClaims, bool) {
	value, ok := c.Get(upgradeClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*jwt.UpgradeClaims)
	return claims, ok
}

// GetStdClaims returns the standard claims of the upgrade token.
func GetStdClaims(c *gin.Context) (*gojwt.Claims, bool) {
	value, ok := c.Get(stdClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*gojwt.Claims)
	return claims, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", true
	}
	return strings.TrimSpace(parts[1]), true
}

func abortUnauthorized(c *gin.Context, description string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": description})
}
