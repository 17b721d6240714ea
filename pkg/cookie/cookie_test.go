package cookie_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havoptic/havoptic/pkg/cookie"
)

func TestManager_Set(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		m := cookie.New()
		w := httptest.NewRecorder()

		m.Set(w, "name", "value")

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		c := cookies[0]
		assert.Equal(t, "name", c.Name)
		assert.Equal(t, "value", c.Value)
		assert.Equal(t, "/", c.Path)
		assert.True(t, c.HttpOnly)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		assert.False(t, c.Secure)
	})

	t.Run("per-call options override defaults", func(t *testing.T) {
		m := cookie.New()
		w := httptest.NewRecorder()
		expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

		m.Set(w, "name", "value",
			cookie.WithMaxAge(600),
			cookie.WithSecure(true),
			cookie.WithExpires(expires),
		)

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, 600, cookies[0].MaxAge)
		assert.True(t, cookies[0].Secure)
		assert.WithinDuration(t, expires, cookies[0].Expires, time.Second)
	})

	t.Run("manager defaults from construction", func(t *testing.T) {
		m := cookie.New(cookie.WithSecure(true), cookie.WithDomain("havoptic.com"))
		w := httptest.NewRecorder()

		m.Set(w, "name", "value")

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.True(t, cookies[0].Secure)
		assert.Equal(t, "havoptic.com", cookies[0].Domain)
	})
}

func TestManager_Get(t *testing.T) {
	m := cookie.New()

	t.Run("returns value", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.AddCookie(&http.Cookie{Name: "name", Value: "value"})

		got, err := m.Get(r, "name")
		require.NoError(t, err)
		assert.Equal(t, "value", got)
	})

	t.Run("missing cookie", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)

		_, err := m.Get(r, "name")
		assert.ErrorIs(t, err, cookie.ErrCookieNotFound)
	})
}

func TestManager_GetDecoded(t *testing.T) {
	m := cookie.New()

	t.Run("decodes percent-encoded value", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.AddCookie(&http.Cookie{Name: "redirect", Value: "%2Ftools%2Fcursor"})

		got, err := m.GetDecoded(r, "redirect")
		require.NoError(t, err)
		assert.Equal(t, "/tools/cursor", got)
	})

	t.Run("invalid escape sequence", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.AddCookie(&http.Cookie{Name: "redirect", Value: "%zz"})

		_, err := m.GetDecoded(r, "redirect")
		assert.ErrorIs(t, err, cookie.ErrInvalidFormat)
	})
}

func TestManager_Delete(t *testing.T) {
	m := cookie.New()
	w := httptest.NewRecorder()

	m.Delete(w, "name")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.True(t, cookies[0].Expires.Before(time.Now()))
}
