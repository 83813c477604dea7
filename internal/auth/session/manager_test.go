package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/invoiceflow/internal/clock"
	"github.com/smallbiznis/invoiceflow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(req *http.Request) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c, w
}

func TestReadTokenPrefersBearer(t *testing.T) {
	m := NewManager(config.Config{}, clock.New())
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "cookie-token"})
	c, _ := newContext(req)

	token, ok := m.ReadToken(c)
	require.True(t, ok)
	assert.Equal(t, "header-token", token)
}

func TestReadTokenFallsBackToCookie(t *testing.T) {
	m := NewManager(config.Config{}, clock.New())
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "cookie-token"})
	c, _ := newContext(req)

	token, ok := m.ReadToken(c)
	require.True(t, ok)
	assert.Equal(t, "cookie-token", token)
}

func TestReadTokenMissing(t *testing.T) {
	m := NewManager(config.Config{}, clock.New())
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer   ")
	c, _ := newContext(req)

	_, ok := m.ReadToken(c)
	assert.False(t, ok)
}

func TestSetWritesHttpOnlyCookie(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManager(config.Config{AuthCookieSecure: true}, clock.NewFakeClock(now))
	c, w := newContext(httptest.NewRequest(http.MethodPost, "/session", nil))

	m.Set(c, "abc", now.Add(time.Hour))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, 3600, cookies[0].MaxAge)
}
