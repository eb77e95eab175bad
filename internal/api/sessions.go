package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quesgenie/internal/domain"
	"github.com/victornm/quesgenie/internal/session"
)

type (
	CreateSessionRequest struct {
		Title       string  `json:"title" binding:"required"`
		Description *string `json:"description"`
	}

	UpdateSourceTextRequest struct {
		Text string `json:"text"`
	}

	AddTopicsRequest struct {
		Texts []string `json:"texts" binding:"required,min=1"`
	}

	AddQuestionConfigRequest struct {
		Count int                 `json:"count"`
		Level domain.Level        `json:"level"`
		Type  domain.QuestionType `json:"type"`
	}

	UpdateQuestionConfigRequest struct {
		Count *int                 `json:"count"`
		Level *domain.Level        `json:"level"`
		Type  *domain.QuestionType `json:"type"`
	}

	UpsertQuestionsRequest struct {
		Questions []domain.Question `json:"questions" binding:"required"`
	}

	CreateLabelRequest struct {
		Text string `json:"text" binding:"required"`
	}

	AttachLabelRequest struct {
		LabelID string `json:"labelId" binding:"required"`
	}

	HomeResponse struct {
		User     *domain.User            `json:"user"`
		Sessions []domain.SessionPayload `json:"sessions"`
	}
)

// Home is the landing view of a logged in user.
func (a *API) Home(c *gin.Context) {
	u, err := a.as.Me(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}

	ss, err := a.ss.ListSessions(c.Request.Context(), session.ListSessionsRequest{UserID: u.ID})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, HomeResponse{User: u, Sessions: ss})
}

func (a *API) ListSessions(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	ss, err := a.ss.ListSessions(c.Request.Context(), session.ListSessionsRequest{UserID: uid})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": ss})
}

func (a *API) CreateSession(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req CreateSessionRequest
	if !bind(c, &req) {
		return
	}

	s, err := a.ss.CreateSession(c.Request.Context(), session.CreateSessionRequest{
		UserID:      uid,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, s)
}

func (a *API) GetFullSession(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	fs, err := a.ss.GetFullSession(c.Request.Context(), session.GetFullSessionRequest{
		UserID:    uid,
		SessionID: c.Param("sessionId"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, fs)
}

func (a *API) UpdateSourceText(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req UpdateSourceTextRequest
	if !bind(c, &req) {
		return
	}

	err := a.ss.UpdateSourceText(c.Request.Context(), session.UpdateSourceTextRequest{
		UserID:    uid,
		SessionID: c.Param("sessionId"),
		Text:      req.Text,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) GenerateTopics(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	ts, err := a.ss.GenerateTopics(c.Request.Context(), session.GenerateTopicsRequest{
		UserID:    uid,
		SessionID: c.Param("sessionId"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"topics": ts})
}

func (a *API) AddTopics(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req AddTopicsRequest
	if !bind(c, &req) {
		return
	}

	ts, err := a.ss.AddTopics(c.Request.Context(), session.AddTopicsRequest{
		UserID:    uid,
		SessionID: c.Param("sessionId"),
		Texts:     req.Texts,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"topics": ts})
}

// DeleteTopics takes the topic ids as repeated id query parameters.
func (a *API) DeleteTopics(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	err := a.ss.DeleteTopics(c.Request.Context(), session.DeleteTopicsRequest{
		UserID:    uid,
		SessionID: c.Param("sessionId"),
		TopicIDs:  c.QueryArray("id"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) AddQuestionConfig(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req AddQuestionConfigRequest
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}

	qc, err := a.ss.AddQuestionConfig(c.Request.Context(), session.AddQuestionConfigRequest{
		UserID:    uid,
		SessionID: c.Param("sessionId"),
		TopicID:   c.Param("topicId"),
		Count:     req.Count,
		Level:     req.Level,
		Type:      req.Type,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, qc)
}

func (a *API) UpdateQuestionConfig(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req UpdateQuestionConfigRequest
	if !bind(c, &req) {
		return
	}

	err := a.ss.UpdateQuestionConfig(c.Request.Context(), session.UpdateQuestionConfigRequest{
		UserID:    uid,
		SessionID: c.Param("sessionId"),
		TopicID:   c.Param("topicId"),
		ID:        c.Param("configId"),
		Count:     req.Count,
		Level:     req.Level,
		Type:      req.Type,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) DeleteQuestionConfig(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	err := a.ss.DeleteQuestionConfig(c.Request.Context(), session.DeleteQuestionConfigRequest{
		UserID:    uid,
		SessionID: c.Param("sessionId"),
		TopicID:   c.Param("topicId"),
		ID:        c.Param("configId"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) DeleteAllQuestionConfigs(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	err := a.ss.DeleteAllQuestionConfigsForTopic(c.Request.Context(), session.DeleteAllQuestionConfigsRequest{
		UserID:    uid,
		SessionID: c.Param("sessionId"),
		TopicID:   c.Param("topicId"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) GenerateQuestions(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	qs, err := a.ss.GenerateQuestions(c.Request.Context(), session.GenerateQuestionsRequest{
		UserID:    uid,
		SessionID: c.Param("sessionId"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"questions": qs})
}

func (a *API) UpsertQuestions(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req UpsertQuestionsRequest
	if !bind(c, &req) {
		return
	}

	err := a.ss.UpsertQuestions(c.Request.Context(), session.UpsertQuestionsRequest{
		UserID:    uid,
		SessionID: c.Param("sessionId"),
		Questions: req.Questions,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) CreateLabel(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req CreateLabelRequest
	if !bind(c, &req) {
		return
	}

	l, err := a.ss.CreateLabel(c.Request.Context(), session.CreateLabelRequest{UserID: uid, Text: req.Text})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, l)
}

func (a *API) AttachLabel(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req AttachLabelRequest
	if !bind(c, &req) {
		return
	}

	sl, err := a.ss.AttachLabel(c.Request.Context(), session.AttachLabelRequest{
		UserID:    uid,
		SessionID: c.Param("sessionId"),
		LabelID:   req.LabelID,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, sl)
}
