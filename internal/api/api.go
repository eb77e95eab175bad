// Package api exposes the session, flow and auth services over HTTP and fans
// session changes out over Redis pub/sub and WebSocket.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/quesgenie/internal/auth"
	"github.com/victornm/quesgenie/internal/domain"
	"github.com/victornm/quesgenie/internal/errors"
	"github.com/victornm/quesgenie/internal/event"
	"github.com/victornm/quesgenie/internal/flow"
	"github.com/victornm/quesgenie/internal/notify"
	"github.com/victornm/quesgenie/internal/session"
)

const LoginPath = "/auth/login"

type Config struct {
	Router   *gin.Engine
	GRPC     *grpc.Server
	EventBus *event.Bus
	Session  *session.Service
	Flow     *flow.Controller
	Auth     *auth.Service
	Notify   *notify.Hub

	// Redis is optional, change notifications are not published without it.
	Redis        Redis
	PubsubPrefix string

	SecureCookie bool
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	ss   *session.Service
	flow *flow.Controller
	as   *auth.Service
	hub  *notify.Hub

	redis  Redis
	prefix string

	secureCookie bool
}

func New(c Config) *API {
	a := &API{
		ss:           c.Session,
		flow:         c.Flow,
		as:           c.Auth,
		hub:          c.Notify,
		redis:        c.Redis,
		prefix:       c.PubsubPrefix,
		secureCookie: c.SecureCookie,
	}

	a.routes(c.Router)

	if c.GRPC != nil {
		healthpb.RegisterHealthServer(c.GRPC, health.NewServer())
	}

	if a.redis != nil {
		c.EventBus.Subscribe(domain.EventNameSessionChanged, func(ctx context.Context, e event.Event) error {
			return a.PublishSessionChanged(ctx, e.(domain.EventSessionChanged))
		})
	}

	return a
}

func (a *API) routes(r *gin.Engine) {
	r.GET(LoginPath, a.LoginPage)
	r.POST(LoginPath, a.Login)
	r.POST("/auth/register", a.Register)
	r.POST("/auth/logout", a.Logout)

	guarded := r.Group("", auth.Middleware(a.as, LoginPath))
	guarded.GET("/", a.Home)
	guarded.GET("/auth/me", a.Me)

	api := guarded.Group("/api")
	api.GET("/sessions", a.ListSessions)
	api.POST("/sessions", a.CreateSession)
	api.GET("/sessions/:sessionId", a.GetFullSession)
	api.PUT("/sessions/:sessionId/source-text", a.UpdateSourceText)
	api.POST("/sessions/:sessionId/generate-topics", a.GenerateTopics)
	api.POST("/sessions/:sessionId/topics", a.AddTopics)
	api.DELETE("/sessions/:sessionId/topics", a.DeleteTopics)
	api.POST("/sessions/:sessionId/topics/:topicId/configs", a.AddQuestionConfig)
	api.DELETE("/sessions/:sessionId/topics/:topicId/configs", a.DeleteAllQuestionConfigs)
	api.PATCH("/sessions/:sessionId/topics/:topicId/configs/:configId", a.UpdateQuestionConfig)
	api.DELETE("/sessions/:sessionId/topics/:topicId/configs/:configId", a.DeleteQuestionConfig)
	api.POST("/sessions/:sessionId/generate-questions", a.GenerateQuestions)
	api.PUT("/sessions/:sessionId/questions", a.UpsertQuestions)
	api.POST("/sessions/:sessionId/labels", a.AttachLabel)
	api.POST("/labels", a.CreateLabel)

	api.GET("/changes", a.Changes)

	api.POST("/pages", a.OpenPage)
	api.GET("/pages/:pageId", a.View)
	api.DELETE("/pages/:pageId", a.ClosePage)
	api.POST("/pages/:pageId/topics/:topicId/toggle", a.ToggleTopic)
	api.POST("/pages/:pageId/topics/:topicId/activate", a.ActivateTopic)
	api.DELETE("/pages/:pageId/topics/:topicId/configs/:configId", a.DeleteConfig)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errors.New(errors.CodeNotFound, errors.WithMessage("page not found")))
	})
}

// abort renders err as {code, message}. Causes of server errors are logged and
// never sent to the client.
func abort(c *gin.Context, err error) {
	e := errors.Convert(err)
	if status := e.HTTPStatusCode(); status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		abort(c, errors.InvalidArgument("invalid request body: %v", err))
		return false
	}
	return true
}

// userID reads the identity set by the auth middleware.
func userID(c *gin.Context) (string, bool) {
	id, err := auth.UserID(c.Request.Context())
	if err != nil {
		abort(c, err)
		return "", false
	}
	return id, true
}
