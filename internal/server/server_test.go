package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/victornm/quesgenie/internal/server"
)

func TestConfig_Validate(t *testing.T) {
	tests := map[string]struct {
		arrange func(c *server.Config)
		wantErr bool
	}{
		"defaults with secret": {
			arrange: func(c *server.Config) {},
		},
		"missing secret": {
			arrange: func(c *server.Config) { c.Auth.JWTSecret = "" },
			wantErr: true,
		},
		"postgres without addr": {
			arrange: func(c *server.Config) { c.Store.Driver = server.StorePostgres },
			wantErr: true,
		},
		"unknown store driver": {
			arrange: func(c *server.Config) { c.Store.Driver = "sqlite" },
			wantErr: true,
		},
		"http generator without url": {
			arrange: func(c *server.Config) { c.Generator.Mode = server.GeneratorHTTP },
			wantErr: true,
		},
		"http generator": {
			arrange: func(c *server.Config) {
				c.Generator.Mode = server.GeneratorHTTP
				c.Generator.BaseURL = "http://localhost:8000"
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c := server.DefaultConfig()
			c.Auth.JWTSecret = "secret"
			tt.arrange(&c)

			err := c.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestServer_Handler(t *testing.T) {
	c := server.DefaultConfig()
	c.Auth.JWTSecret = "secret"
	c.Auth.BcryptCost = bcrypt.MinCost
	c.Log.Level = "error"

	s, err := server.Init(c)
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)

	h := s.Handler()

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	assert.Equal(t, http.StatusOK, get("/metrics").Code)
	assert.Equal(t, http.StatusOK, get("/debug/pprof/").Code)
	assert.Equal(t, http.StatusUnauthorized, get("/api/sessions").Code)
	assert.Equal(t, http.StatusNotFound, get("/nowhere").Code)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(`{"email": "ada@example.com", "password": "correct horse"}`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestServer_ShutdownClosesWebSockets(t *testing.T) {
	c := server.DefaultConfig()
	c.Auth.JWTSecret = "secret"
	c.Auth.BcryptCost = bcrypt.MinCost
	c.Log.Level = "error"

	s, err := server.Init(c)
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/auth/register", "application/json",
		bytes.NewBufferString(`{"email": "ada@example.com", "password": "correct horse"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var auth struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&auth))

	h := http.Header{}
	h.Set("Authorization", "Bearer "+auth.Token)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/changes", h)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	s.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "timeout"), "the server closed the connection, got %v", err)
}
