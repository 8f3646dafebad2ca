package mw

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ev-booking-gateway/internal/bookingapi"
)

const sessionKey = "bookingapi.session"

// Session requires a bearer token and stores it for handlers. Tokens whose JWT
// "exp" has passed are refused here instead of round-tripping to the backend.
// With a verifier the token must also carry a valid signature, and the session
// is keyed by its subject; without one it is keyed by the token itself.
func Session(v *bookingapi.Verifier, now func() time.Time) gin.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		sess := bookingapi.Session{Token: token}
		if sess.Expired(now()) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}
		if v != nil {
			verified, err := v.Verify(token, now())
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
				return
			}
			sess = verified
		}

		c.Set(sessionKey, sess)
		c.Next()
	}
}

// bearerToken extracts the token from an Authorization header. The scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// SessionFrom returns the session stored by the Session middleware.
func SessionFrom(c *gin.Context) (bookingapi.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return bookingapi.Session{}, false
	}
	sess, ok := v.(bookingapi.Session)
	return sess, ok
}
