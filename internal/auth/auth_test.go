package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/victornm/quesgenie/internal/auth"
	"github.com/victornm/quesgenie/internal/errors"
	"github.com/victornm/quesgenie/internal/store"
)

func makeService(t *testing.T) *auth.Service {
	t.Helper()

	return auth.NewService(auth.Config{
		Users:      store.NewMemory(),
		Secret:     "test-secret",
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
	})
}

func TestService_RegisterLogin(t *testing.T) {
	s := makeService(t)
	ctx := context.Background()

	reg, err := s.Register(ctx, auth.Credentials{Email: " Ada@Example.com ", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", reg.User.Email)
	assert.NotEqual(t, "correct horse", reg.User.PasswordHash)

	_, err = s.Register(ctx, auth.Credentials{Email: "ada@example.com", Password: "another one"})
	require.True(t, errors.Is(err, errors.CodeAlreadyExists), "got %v", err)

	login, err := s.Login(ctx, auth.Credentials{Email: "ADA@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)

	id, err := s.Authenticate(login.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, id.UserID)

	me, err := s.Me(auth.WithIdentity(ctx, id))
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", me.Email)
}

func TestService_Login_Errors(t *testing.T) {
	s := makeService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, auth.Credentials{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)

	tests := map[string]auth.Credentials{
		"wrong password": {Email: "ada@example.com", Password: "wrong horse"},
		"unknown email":  {Email: "bob@example.com", Password: "correct horse"},
		"not an email":   {Email: "ada", Password: "correct horse"},
	}

	for name, creds := range tests {
		creds := creds
		t.Run(name, func(t *testing.T) {
			_, err := s.Login(ctx, creds)
			require.True(t, errors.Is(err, errors.CodeUnauthenticated), "got %v", err)
			assert.Equal(t, "invalid email or password", errors.Convert(err).Message)
		})
	}
}

func TestService_Register_Validation(t *testing.T) {
	s := makeService(t)

	tests := map[string]auth.Credentials{
		"short password":   {Email: "ada@example.com", Password: "short"},
		"invalid email":    {Email: "not-an-email", Password: "long enough"},
		"display name set": {Email: "Ada <ada@example.com>", Password: "long enough"},
	}

	for name, creds := range tests {
		creds := creds
		t.Run(name, func(t *testing.T) {
			_, err := s.Register(context.Background(), creds)
			require.True(t, errors.Is(err, errors.CodeInvalidArgument), "got %v", err)
		})
	}
}

func TestUserID(t *testing.T) {
	_, err := auth.UserID(context.Background())
	require.True(t, errors.Is(err, errors.CodeUnauthenticated), "got %v", err)
	assert.Equal(t, http.StatusUnauthorized, errors.Convert(err).HTTPStatusCode())

	id, err := auth.UserID(auth.WithIdentity(context.Background(), auth.Identity{UserID: "u1"}))
	require.NoError(t, err)
	assert.Equal(t, "u1", id)
}

func TestTokens(t *testing.T) {
	tokens := auth.NewTokens("secret", time.Minute)
	now := time.Now()
	tokens.SetClock(func() time.Time { return now })

	token, exp, err := tokens.Issue("u1", "ada@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(time.Minute), exp, time.Second)

	claims, err := tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)

	_, err = auth.NewTokens("other secret", time.Minute).Parse(token)
	require.Error(t, err, "signed with another secret")

	now = now.Add(2 * time.Minute)
	_, err = tokens.Parse(token)
	require.Error(t, err, "expired")
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	s := makeService(t)
	reg, err := s.Register(context.Background(), auth.Credentials{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/api/me", auth.Middleware(s, "/auth/login"), func(c *gin.Context) {
		id, err := auth.UserID(c.Request.Context())
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, id)
	})

	tests := map[string]struct {
		arrange func(r *http.Request)
		assert  func(t *testing.T, w *httptest.ResponseRecorder)
	}{
		"bearer token": {
			arrange: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+reg.Token)
			},
			assert: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, http.StatusOK, w.Code)
				assert.Equal(t, reg.User.ID, w.Body.String())
			},
		},
		"session cookie": {
			arrange: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: reg.Token})
			},
			assert: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, http.StatusOK, w.Code)
			},
		},
		"api client without token": {
			arrange: func(r *http.Request) {
				r.Header.Set("Accept", "application/json")
			},
			assert: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, http.StatusUnauthorized, w.Code)
				assert.JSONEq(t, `{"code": 16, "message": "authentication required"}`, w.Body.String())
			},
		},
		"browser without token": {
			arrange: func(r *http.Request) {
				r.Header.Set("Accept", "text/html,application/xhtml+xml")
			},
			assert: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, http.StatusFound, w.Code)
				assert.Equal(t, "/auth/login?redirect_uri=%2Fapi%2Fme%3Ftab%3D1", w.Header().Get("Location"))
			},
		},
		"garbage token": {
			arrange: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer not-a-jwt")
			},
			assert: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, http.StatusUnauthorized, w.Code)
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/api/me?tab=1", nil)
			tt.arrange(req)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			tt.assert(t, w)
		})
	}
}
