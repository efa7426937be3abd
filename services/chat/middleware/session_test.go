package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionRouter() (*gin.Engine, *string) {
	gin.SetMode(gin.TestMode)
	seen := new(string)
	router := gin.New()
	router.Use(Session())
	router.GET("/probe", func(c *gin.Context) {
		*seen = SessionID(c)
		c.Status(http.StatusNoContent)
	})
	return router, seen
}

func TestSession_MintsIDWhenAbsent(t *testing.T) {
	router, seen := newSessionRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	router.ServeHTTP(w, req)

	assert.True(t, strings.HasPrefix(*seen, "session_"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.Equal(t, *seen, cookies[0].Value)
	assert.Equal(t, cookieMaxAge, cookies[0].MaxAge)
	assert.True(t, cookies[0].HttpOnly)
}

func TestSession_ReusesExistingCookie(t *testing.T) {
	router, seen := newSessionRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "session_1756000000_42"})
	router.ServeHTTP(w, req)

	assert.Equal(t, "session_1756000000_42", *seen)
}

func TestSession_RejectsMalformedCookie(t *testing.T) {
	router, seen := newSessionRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "garbage"})
	router.ServeHTTP(w, req)

	assert.NotEqual(t, "garbage", *seen)
	assert.True(t, strings.HasPrefix(*seen, "session_"))
}
