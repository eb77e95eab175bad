package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quesgenie/internal/flow"
)

type OpenPageRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
}

func (a *API) OpenPage(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req OpenPageRequest
	if !bind(c, &req) {
		return
	}

	v, err := a.flow.OpenPage(c.Request.Context(), flow.OpenPageRequest{UserID: uid, SessionID: req.SessionID})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, v)
}

func (a *API) View(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	v, err := a.flow.View(c.Request.Context(), flow.PageRequest{UserID: uid, PageID: c.Param("pageId")})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, v)
}

func (a *API) ClosePage(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	if err := a.flow.ClosePage(c.Request.Context(), flow.PageRequest{UserID: uid, PageID: c.Param("pageId")}); err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) ToggleTopic(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	v, err := a.flow.ToggleTopic(c.Request.Context(), flow.ToggleTopicRequest{
		UserID:  uid,
		PageID:  c.Param("pageId"),
		TopicID: c.Param("topicId"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, v)
}

func (a *API) ActivateTopic(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	v, err := a.flow.ActivateTopic(c.Request.Context(), flow.ActivateTopicRequest{
		UserID:  uid,
		PageID:  c.Param("pageId"),
		TopicID: c.Param("topicId"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, v)
}

func (a *API) DeleteConfig(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	v, err := a.flow.DeleteConfig(c.Request.Context(), flow.DeleteConfigRequest{
		UserID:   uid,
		PageID:   c.Param("pageId"),
		TopicID:  c.Param("topicId"),
		ConfigID: c.Param("configId"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, v)
}

// Changes streams the user's session change notifications over WebSocket.
func (a *API) Changes(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	if err := a.hub.Serve(c.Writer, c.Request, uid); err != nil {
		slog.DebugContext(c.Request.Context(), "api: websocket upgrade failed", "error", err)
	}
}
