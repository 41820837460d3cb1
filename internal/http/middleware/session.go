package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// SessionHeader carries the caller's session identifier.
	SessionHeader = "X-User-ID"
	// DefaultSession is used when no header is sent.
	DefaultSession = "demo-user"

	sessionKey = "userID"
)

var sessionRE = regexp.MustCompile(`^[A-Za-z0-9._@:\-]{1,128}$`)

// Session resolves the session id from X-User-ID and stores it under
// "userID". Requests without the header share DefaultSession; malformed ids
// are rejected with 400.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(SessionHeader))
		if id == "" {
			id = DefaultSession
		}
		if !sessionRE.MatchString(id) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_request",
				"message":    "invalid " + SessionHeader + " header",
			})
			return
		}
		c.Set(sessionKey, id)
		c.Next()
	}
}

// SessionID returns the id stored by Session, or "" when it did not run.
func SessionID(c *gin.Context) string {
	if v, ok := c.Get(sessionKey); ok {
		return asString(v)
	}
	return ""
}
