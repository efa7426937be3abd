// Package middleware carries the gin middleware for the chat service.
package middleware

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SessionCookie is the cookie carrying the opaque session id.
const SessionCookie = "netchat_session"

// sessionKey is the gin context key the resolved id is stored under.
const sessionKey = "session_id"

// cookieMaxAge is one hour. Server-side conversation documents do not
// expire with the cookie; a returning client with the same cookie resumes
// its conversation.
const cookieMaxAge = 3600

// Session resolves or mints the session id for a request and refreshes the
// cookie's max age on every response.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(SessionCookie)
		if err != nil || !strings.HasPrefix(id, "session_") {
			id = NewSessionID()
		}
		c.SetCookie(SessionCookie, id, cookieMaxAge, "/", "", false, true)
		c.Set(sessionKey, id)
		c.Next()
	}
}

// NewSessionID mints an opaque session token.
func NewSessionID() string {
	return fmt.Sprintf("session_%d_%d", time.Now().Unix(), os.Getpid())
}

// SessionID returns the id resolved by Session for this request.
func SessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}
