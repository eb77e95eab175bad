package session

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/victornm/quesgenie/internal/cache"
	"github.com/victornm/quesgenie/internal/domain"
	"github.com/victornm/quesgenie/internal/errors"
	"github.com/victornm/quesgenie/internal/event"
	"github.com/victornm/quesgenie/internal/generator"
	"github.com/victornm/quesgenie/internal/store"
)

// Defaults of a config added from the configuration step.
const (
	DefaultConfigCount = 1
	DefaultConfigLevel = domain.LevelMedium
	DefaultConfigType  = domain.QuestionTypeRadio
)

type Config struct {
	Store     store.Gateway
	Cache     *cache.Cache
	Generator generator.Generator
	EventBus  *event.Bus
}

type Service struct {
	store store.Gateway
	cache *cache.Cache
	gen   generator.Generator
	eb    *event.Bus
}

func NewService(c Config) *Service {
	return &Service{
		store: c.Store,
		cache: c.Cache,
		gen:   c.Generator,
		eb:    c.EventBus,
	}
}

type CreateSessionRequest struct {
	UserID      string
	Title       string
	Description *string
}

func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*domain.Session, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, errors.InvalidArgument("title is required")
	}

	ss, err := s.store.CreateSession(ctx, store.CreateSessionParams{
		Title:       title,
		Description: req.Description,
		CreatedBy:   req.UserID,
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, req.UserID, ss.ID, domain.ChangeSessionCreated)
	return ss, nil
}

type ListSessionsRequest struct {
	UserID string
}

// ListSessions returns the user's sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, req ListSessionsRequest) ([]domain.SessionPayload, error) {
	return s.store.FetchSessionList(ctx, req.UserID)
}

type GetFullSessionRequest struct {
	UserID    string
	SessionID string
}

func (s *Service) GetFullSession(ctx context.Context, req GetFullSessionRequest) (*domain.FullSession, error) {
	return s.fullSession(ctx, req.UserID, req.SessionID)
}

// fullSession reads the aggregate through the cache. Sessions of other users
// are reported as missing.
func (s *Service) fullSession(ctx context.Context, userID, sessionID string) (*domain.FullSession, error) {
	if err := uuid.Validate(sessionID); err != nil {
		return nil, errors.NotFound("session", sessionID)
	}

	fs, err := s.cache.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if fs.CreatedBy != userID {
		return nil, errors.NotFound("session", sessionID)
	}

	return fs, nil
}

type UpdateSourceTextRequest struct {
	UserID    string
	SessionID string
	Text      string
}

// UpdateSourceText saves the source text. It is locked once topics exist.
func (s *Service) UpdateSourceText(ctx context.Context, req UpdateSourceTextRequest) error {
	fs, err := s.fullSession(ctx, req.UserID, req.SessionID)
	if err != nil {
		return err
	}

	if len(fs.Topics) > 0 {
		return errors.FailedPrecondition("source text can not change once topics exist")
	}
	if !domain.SourceTextReady(req.Text) {
		return errors.InvalidArgument("source text must be at least %d characters", domain.MinSourceTextLength)
	}

	if err := s.store.UpdateSessionSourceText(ctx, req.SessionID, req.Text); err != nil {
		return err
	}

	s.invalidate(ctx, req.UserID, req.SessionID, domain.ChangeSourceText)
	return nil
}

type GenerateTopicsRequest struct {
	UserID    string
	SessionID string
}

func (s *Service) GenerateTopics(ctx context.Context, req GenerateTopicsRequest) ([]domain.Topic, error) {
	fs, err := s.fullSession(ctx, req.UserID, req.SessionID)
	if err != nil {
		return nil, err
	}

	if fs.SourceText == nil || !domain.SourceTextReady(*fs.SourceText) {
		return nil, errors.FailedPrecondition("source text must be at least %d characters to generate topics", domain.MinSourceTextLength)
	}
	if len(fs.Topics) > 0 {
		return nil, errors.FailedPrecondition("topics were already generated for session %s", req.SessionID)
	}

	texts, err := s.gen.GenerateTopics(ctx, *fs.SourceText)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, errors.WithMessage("failed to generate topics"), errors.WithCause(err))
	}

	topics, err := s.store.InsertTopics(ctx, store.InsertTopicsParams{
		SessionID: req.SessionID,
		Texts:     texts,
		CreatedBy: req.UserID,
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "topics generated", "session_id", req.SessionID, "count", len(topics))

	s.invalidate(ctx, req.UserID, req.SessionID, domain.ChangeTopicsAdded)
	return topics, nil
}

type AddTopicsRequest struct {
	UserID    string
	SessionID string
	Texts     []string
}

// AddTopics adds topics typed by the user.
func (s *Service) AddTopics(ctx context.Context, req AddTopicsRequest) ([]domain.Topic, error) {
	if _, err := s.fullSession(ctx, req.UserID, req.SessionID); err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(req.Texts))
	for _, t := range req.Texts {
		if t = strings.TrimSpace(t); t != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		return nil, errors.InvalidArgument("at least one non-empty topic is required")
	}

	topics, err := s.store.InsertTopics(ctx, store.InsertTopicsParams{
		SessionID: req.SessionID,
		Texts:     texts,
		CreatedBy: req.UserID,
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, req.UserID, req.SessionID, domain.ChangeTopicsAdded)
	return topics, nil
}

type DeleteTopicsRequest struct {
	UserID    string
	SessionID string
	TopicIDs  []string
}

// DeleteTopics deletes topics together with their configs and questions.
func (s *Service) DeleteTopics(ctx context.Context, req DeleteTopicsRequest) error {
	if _, err := s.fullSession(ctx, req.UserID, req.SessionID); err != nil {
		return err
	}

	ids, err := validIDs("topic", req.TopicIDs)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	if err := s.store.DeleteTopics(ctx, req.SessionID, ids); err != nil {
		return err
	}

	s.invalidate(ctx, req.UserID, req.SessionID, domain.ChangeTopicsDeleted)
	return nil
}

type AddQuestionConfigRequest struct {
	UserID    string
	SessionID string
	TopicID   string
	// Zero values fall back to DefaultConfigCount, DefaultConfigLevel and
	// DefaultConfigType.
	Count int
	Level domain.Level
	Type  domain.QuestionType
}

func (s *Service) AddQuestionConfig(ctx context.Context, req AddQuestionConfigRequest) (*domain.QuestionConfig, error) {
	fs, err := s.fullSession(ctx, req.UserID, req.SessionID)
	if err != nil {
		return nil, err
	}
	if !fs.HasTopic(req.TopicID) {
		return nil, errors.NotFound("topic", req.TopicID)
	}

	p := store.AddQuestionConfigParams{
		SessionID: req.SessionID,
		TopicID:   req.TopicID,
		Level:     req.Level,
		Type:      req.Type,
		Count:     req.Count,
		CreatedBy: req.UserID,
	}
	if p.Count == 0 {
		p.Count = DefaultConfigCount
	}
	if p.Level == "" {
		p.Level = DefaultConfigLevel
	}
	if p.Type == "" {
		p.Type = DefaultConfigType
	}
	p.Count = domain.ClampCount(p.Count)

	if !p.Level.Valid() {
		return nil, errors.InvalidArgument("unknown level %q", p.Level)
	}
	if !p.Type.Valid() {
		return nil, errors.InvalidArgument("unknown question type %q", p.Type)
	}

	c, err := s.store.AddQuestionConfig(ctx, p)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, req.UserID, req.SessionID, domain.ChangeConfigAdded)
	return c, nil
}

type UpdateQuestionConfigRequest struct {
	UserID    string
	SessionID string
	TopicID   string
	ID        string
	// Nil fields are left unchanged. Count is clamped to [1, 10].
	Count *int
	Level *domain.Level
	Type  *domain.QuestionType
}

// UpdateQuestionConfig patches the cached aggregate before writing, and rolls
// the patch back when the write fails.
func (s *Service) UpdateQuestionConfig(ctx context.Context, req UpdateQuestionConfigRequest) error {
	fs, err := s.fullSession(ctx, req.UserID, req.SessionID)
	if err != nil {
		return err
	}
	if !hasConfig(fs, req.TopicID, req.ID) {
		return errors.NotFound("question config", req.ID)
	}

	p := store.UpdateQuestionConfigParams{ID: req.ID, Level: req.Level, Type: req.Type}
	if req.Count != nil {
		n := domain.ClampCount(*req.Count)
		p.Count = &n
	}
	if p.Level != nil && !p.Level.Valid() {
		return errors.InvalidArgument("unknown level %q", *p.Level)
	}
	if p.Type != nil && !p.Type.Valid() {
		return errors.InvalidArgument("unknown question type %q", *p.Type)
	}

	patch := s.cache.Patch(req.SessionID, func(fs *domain.FullSession) {
		cs := fs.Configs[req.TopicID]
		for i := range cs {
			if cs[i].ID != req.ID {
				continue
			}
			if p.Count != nil {
				cs[i].Count = *p.Count
			}
			if p.Level != nil {
				cs[i].Level = *p.Level
			}
			if p.Type != nil {
				cs[i].Type = *p.Type
			}
		}
	})

	if err := s.store.UpdateQuestionConfig(ctx, p); err != nil {
		patch.Rollback()
		return err
	}
	patch.Commit()

	s.changed(ctx, req.UserID, req.SessionID, domain.ChangeConfigUpdated)
	return nil
}

type DeleteQuestionConfigRequest struct {
	UserID    string
	SessionID string
	TopicID   string
	ID        string
}

// DeleteQuestionConfig removes the config from the cached aggregate before
// deleting it, and restores it when the delete fails.
func (s *Service) DeleteQuestionConfig(ctx context.Context, req DeleteQuestionConfigRequest) error {
	fs, err := s.fullSession(ctx, req.UserID, req.SessionID)
	if err != nil {
		return err
	}
	if !hasConfig(fs, req.TopicID, req.ID) {
		return nil
	}

	patch := s.cache.Patch(req.SessionID, func(fs *domain.FullSession) {
		cs := fs.Configs[req.TopicID]
		kept := cs[:0]
		for _, c := range cs {
			if c.ID != req.ID {
				kept = append(kept, c)
			}
		}
		fs.Configs[req.TopicID] = kept
	})

	if err := s.store.DeleteQuestionConfig(ctx, req.ID); err != nil {
		patch.Rollback()
		return err
	}
	patch.Commit()

	s.changed(ctx, req.UserID, req.SessionID, domain.ChangeConfigDeleted)
	return nil
}

type DeleteAllQuestionConfigsRequest struct {
	UserID    string
	SessionID string
	TopicID   string
}

// DeleteAllQuestionConfigsForTopic empties the topic's config list. The list is
// cleared in the cache right away and refetched once the store agreed.
func (s *Service) DeleteAllQuestionConfigsForTopic(ctx context.Context, req DeleteAllQuestionConfigsRequest) error {
	if _, err := s.fullSession(ctx, req.UserID, req.SessionID); err != nil {
		return err
	}
	if err := uuid.Validate(req.TopicID); err != nil {
		return errors.NotFound("topic", req.TopicID)
	}

	patch := s.cache.Patch(req.SessionID, func(fs *domain.FullSession) {
		delete(fs.Configs, req.TopicID)
	})

	if err := s.store.DeleteAllQuestionConfigsForTopic(ctx, req.SessionID, req.TopicID); err != nil {
		patch.Rollback()
		return err
	}
	patch.Commit()

	s.invalidate(ctx, req.UserID, req.SessionID, domain.ChangeConfigsCleared)
	return nil
}

type GenerateQuestionsRequest struct {
	UserID    string
	SessionID string
}

// GenerateQuestions asks the backend for questions matching every config of the
// session and stores them.
func (s *Service) GenerateQuestions(ctx context.Context, req GenerateQuestionsRequest) ([]domain.Question, error) {
	fs, err := s.fullSession(ctx, req.UserID, req.SessionID)
	if err != nil {
		return nil, err
	}

	gr := generator.GenerateQuestionsRequest{}
	if fs.SourceText != nil {
		gr.Text = *fs.SourceText
	}

	levels := make(map[string]domain.Level)
	for _, t := range fs.Topics {
		for _, c := range fs.Configs[t.ID] {
			gr.Topics = append(gr.Topics, generator.TopicRequest{
				ID:            t.ID,
				Text:          t.Text,
				QuestionCount: c.Count,
				Level:         c.Level,
				Type:          c.Type,
			})
			if _, ok := levels[t.ID]; !ok {
				levels[t.ID] = c.Level
			}
		}
	}
	if len(gr.Topics) == 0 {
		return nil, errors.FailedPrecondition("add at least one question config before generating questions")
	}

	generated, err := s.gen.GenerateQuestions(ctx, gr)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, errors.WithMessage("failed to generate questions"), errors.WithCause(err))
	}

	qs := make([]domain.Question, 0, len(generated))
	for _, g := range generated {
		fallback, ok := levels[g.Topic.ID]
		if !ok {
			slog.WarnContext(ctx, "drop generated question of unknown topic", "session_id", req.SessionID, "topic_id", g.Topic.ID)
			continue
		}

		q, err := g.Question(req.SessionID, req.UserID, fallback)
		if err != nil {
			return nil, errors.Validation("generated question", err)
		}
		if err := domain.ValidateQuestion(q); err != nil {
			return nil, errors.Validation("generated question", err)
		}
		qs = append(qs, q)
	}

	if err := s.store.InsertQuestions(ctx, qs); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "questions generated", "session_id", req.SessionID, "requested", gr.Count(), "stored", len(qs))

	s.invalidate(ctx, req.UserID, req.SessionID, domain.ChangeQuestionsAdded)
	return qs, nil
}

type UpsertQuestionsRequest struct {
	UserID    string
	SessionID string
	Questions []domain.Question
}

// UpsertQuestions saves edited questions. A question without an id is created,
// any other id must already belong to the session.
func (s *Service) UpsertQuestions(ctx context.Context, req UpsertQuestionsRequest) error {
	fs, err := s.fullSession(ctx, req.UserID, req.SessionID)
	if err != nil {
		return err
	}

	qs := make([]domain.Question, 0, len(req.Questions))
	for _, q := range req.Questions {
		switch {
		case q.ID == "":
			q.ID = uuid.NewString()
		case !fs.HasQuestion(q.ID):
			return errors.NotFound("question", q.ID)
		}
		q.SessionID = req.SessionID
		q.CreatedBy = req.UserID

		if !fs.HasTopic(q.TopicID) {
			return errors.NotFound("topic", q.TopicID)
		}
		if err := domain.ValidateQuestion(q); err != nil {
			return errors.InvalidArgument("invalid question: %v", err)
		}
		qs = append(qs, q)
	}

	if err := s.store.UpsertQuestions(ctx, qs); err != nil {
		return err
	}

	s.invalidate(ctx, req.UserID, req.SessionID, domain.ChangeQuestionsEdited)
	return nil
}

type CreateLabelRequest struct {
	UserID string
	Text   string
}

func (s *Service) CreateLabel(ctx context.Context, req CreateLabelRequest) (*domain.Label, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, errors.InvalidArgument("label text is required")
	}

	return s.store.CreateLabel(ctx, text, req.UserID)
}

type AttachLabelRequest struct {
	UserID    string
	SessionID string
	LabelID   string
}

func (s *Service) AttachLabel(ctx context.Context, req AttachLabelRequest) (*domain.SessionLabel, error) {
	if _, err := s.fullSession(ctx, req.UserID, req.SessionID); err != nil {
		return nil, err
	}
	if err := uuid.Validate(req.LabelID); err != nil {
		return nil, errors.NotFound("label", req.LabelID)
	}

	sl, err := s.store.AttachLabel(ctx, req.SessionID, req.LabelID, req.UserID)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, req.UserID, req.SessionID, domain.ChangeLabelsUpdated)
	return sl, nil
}

func (s *Service) invalidate(ctx context.Context, userID, sessionID string, reason domain.ChangeReason) {
	s.cache.Invalidate(sessionID)
	s.changed(ctx, userID, sessionID, reason)
}

func (s *Service) changed(ctx context.Context, userID, sessionID string, reason domain.ChangeReason) {
	s.eb.Publish(ctx, domain.EventSessionChanged{
		SessionID: sessionID,
		UserID:    userID,
		Reason:    reason,
	})
}

func hasConfig(fs *domain.FullSession, topicID, id string) bool {
	for _, c := range fs.Configs[topicID] {
		if c.ID == id {
			return true
		}
	}
	return false
}

func validIDs(entity string, ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := uuid.Validate(id); err != nil {
			return nil, errors.InvalidArgument("invalid %s id %q", entity, id)
		}
		out = append(out, id)
	}
	return out, nil
}

// Invalidate drops the cached aggregate, so the next read refetches it.
func (s *Service) Invalidate(sessionID string) {
	s.cache.Invalidate(sessionID)
}
