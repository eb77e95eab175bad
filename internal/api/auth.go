package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quesgenie/internal/auth"
	"github.com/victornm/quesgenie/internal/domain"
)

type (
	CredentialsRequest struct {
		Email       string `json:"email" binding:"required"`
		Password    string `json:"password" binding:"required"`
		RedirectURI string `json:"redirectUri"`
	}

	AuthResponse struct {
		User        *domain.User `json:"user"`
		Token       string       `json:"token"`
		ExpiresAt   time.Time    `json:"expiresAt"`
		RedirectURI string       `json:"redirectUri"`
	}
)

// LoginPage sends logged in browsers on to redirect_uri and tells everyone
// else where they will land after logging in.
func (a *API) LoginPage(c *gin.Context) {
	redirect := safeRedirect(c.Query("redirect_uri"))

	if token, err := c.Cookie(auth.CookieName); err == nil {
		if _, err := a.as.Authenticate(token); err == nil {
			c.Redirect(http.StatusFound, redirect)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"redirectUri": redirect})
}

func (a *API) Login(c *gin.Context) {
	var req CredentialsRequest
	if !bind(c, &req) {
		return
	}

	s, err := a.as.Login(c.Request.Context(), auth.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		abort(c, err)
		return
	}

	a.respondSession(c, http.StatusOK, s, req.RedirectURI)
}

func (a *API) Register(c *gin.Context) {
	var req CredentialsRequest
	if !bind(c, &req) {
		return
	}

	s, err := a.as.Register(c.Request.Context(), auth.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		abort(c, err)
		return
	}

	a.respondSession(c, http.StatusCreated, s, req.RedirectURI)
}

func (a *API) Logout(c *gin.Context) {
	auth.ClearCookie(c, a.secureCookie)
	c.Status(http.StatusNoContent)
}

func (a *API) Me(c *gin.Context) {
	u, err := a.as.Me(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, u)
}

func (a *API) respondSession(c *gin.Context, status int, s *auth.Session, redirect string) {
	auth.SetCookie(c, s.Token, s.ExpiresAt, a.secureCookie)
	c.JSON(status, AuthResponse{
		User:        s.User,
		Token:       s.Token,
		ExpiresAt:   s.ExpiresAt,
		RedirectURI: safeRedirect(redirect),
	})
}

// safeRedirect only lets local paths through.
func safeRedirect(uri string) string {
	if !strings.HasPrefix(uri, "/") || strings.HasPrefix(uri, "//") || strings.HasPrefix(uri, "/\\") {
		return "/"
	}
	return uri
}
