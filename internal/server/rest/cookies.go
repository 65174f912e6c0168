package rest

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/ulpt/internal/common"
	"github.com/dmitrijs2005/ulpt/internal/server/config"
	"github.com/gin-gonic/gin"
)

// cookieJar writes the two session cookies with the configured flags.
type cookieJar struct {
	secure     bool
	sameSite   http.SameSite
	refreshTTL time.Duration
}

func newCookieJar(cfg *config.Config) cookieJar {
	return cookieJar{
		secure:     cfg.CookieSecure,
		sameSite:   cfg.SameSite(),
		refreshTTL: cfg.RefreshTokenValidityDuration,
	}
}

// setAccess stores the access token in a session cookie.
func (j cookieJar) setAccess(c *gin.Context, token string) {
	http.SetCookie(c.Writer, j.cookie(common.AccessTokenCookieName, token, 0))
}

func (j cookieJar) setRefresh(c *gin.Context, token string) {
	http.SetCookie(c.Writer, j.cookie(common.RefreshTokenCookieName, token, int(j.refreshTTL.Seconds())))
}

func (j cookieJar) clear(c *gin.Context) {
	http.SetCookie(c.Writer, j.cookie(common.AccessTokenCookieName, "", -1))
	http.SetCookie(c.Writer, j.cookie(common.RefreshTokenCookieName, "", -1))
}

func (j cookieJar) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: j.sameSite,
	}
}

// cookieValue returns the named cookie or "" when it is absent.
func cookieValue(c *gin.Context, name string) string {
	v, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return v
}
