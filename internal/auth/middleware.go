package auth

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quesgenie/internal/errors"
)

const CookieName = "quesgenie_token"

type Authenticator interface {
	Authenticate(token string) (Identity, error)
}

// Middleware requires a valid access token from the Authorization header or
// the session cookie. Browsers asking for a page are redirected to loginPath
// with the original path in redirect_uri; everyone else gets a 401.
func Middleware(a Authenticator, loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFrom(c)
		if token == "" {
			deny(c, loginPath, errors.Unauthenticated(errNoIdentity))
			return
		}

		id, err := a.Authenticate(token)
		if err != nil {
			deny(c, loginPath, errors.Convert(err))
			return
		}

		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

func tokenFrom(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	token, err := c.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return token
}

func deny(c *gin.Context, loginPath string, e *errors.Error) {
	if c.Request.Method == http.MethodGet && strings.Contains(c.GetHeader("Accept"), "text/html") {
		c.Redirect(http.StatusFound, loginPath+"?redirect_uri="+url.QueryEscape(c.Request.URL.RequestURI()))
		c.Abort()
		return
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}

// SetCookie stores the access token in an HTTP-only cookie.
func SetCookie(c *gin.Context, token string, expires time.Time, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, int(time.Until(expires).Seconds()), "/", "", secure, true)
}

func ClearCookie(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", secure, true)
}
