package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/quesgenie/internal/domain"
	"github.com/victornm/quesgenie/internal/errors"
)

// Memory keeps every table in process. It mirrors the Postgres driver:
// cascading deletes, parent checks and the snake_case question payload. User
// references are not checked.
type Memory struct {
	mu sync.RWMutex

	seq       int64
	sessions  map[string]*memRow[domain.Session]
	topics    map[string]*memRow[domain.Topic]
	configs   map[string]*memRow[domain.QuestionConfig]
	questions map[string]*memRow[questionRow]
	labels    map[string]*memRow[domain.Label]
	attached  map[string]*memRow[domain.SessionLabel]
	users     map[string]*memRow[domain.User]

	now func() time.Time
}

// memRow keeps the insertion sequence next to the value, so listings come back
// in a stable order even when timestamps tie.
type memRow[T any] struct {
	seq int64
	v   T
}

var _ Gateway = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		sessions:  make(map[string]*memRow[domain.Session]),
		topics:    make(map[string]*memRow[domain.Topic]),
		configs:   make(map[string]*memRow[domain.QuestionConfig]),
		questions: make(map[string]*memRow[questionRow]),
		labels:    make(map[string]*memRow[domain.Label]),
		attached:  make(map[string]*memRow[domain.SessionLabel]),
		users:     make(map[string]*memRow[domain.User]),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) next() int64 {
	m.seq++
	return m.seq
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate ID: %w", err)
	}
	return id.String(), nil
}

// sorted returns the rows matching keep in insertion order.
func sorted[T any](rows map[string]*memRow[T], keep func(T) bool) []T {
	rs := make([]*memRow[T], 0, len(rows))
	for _, r := range rows {
		if keep(r.v) {
			rs = append(rs, r)
		}
	}
	slices.SortFunc(rs, func(a, b *memRow[T]) int { return cmp.Compare(a.seq, b.seq) })

	vs := make([]T, len(rs))
	for i, r := range rs {
		vs[i] = r.v
	}
	return vs
}

func (m *Memory) CreateSession(_ context.Context, p CreateSessionParams) (*domain.Session, error) {
	id, err := newID()
	if err != nil {
		return nil, errors.Persistence("create", entitySession, "", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ss := domain.Session{
		ID:          id,
		Title:       p.Title,
		Description: p.Description,
		CreatedBy:   p.CreatedBy,
		CreatedAt:   m.now(),
	}
	m.sessions[id] = &memRow[domain.Session]{seq: m.next(), v: ss}

	return &ss, nil
}

func (m *Memory) FetchSession(_ context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.sessions[id]
	if !ok {
		return nil, errors.NotFound(entitySession, id)
	}

	ss := r.v
	return &ss, nil
}

func (m *Memory) FetchSessionList(_ context.Context, createdBy string) ([]domain.SessionPayload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := sorted(m.sessions, func(s domain.Session) bool { return s.CreatedBy == createdBy })
	slices.Reverse(sessions)

	list := make([]domain.SessionPayload, 0, len(sessions))
	for _, s := range sessions {
		sp := domain.SessionPayload{
			ID:          s.ID,
			Title:       s.Title,
			Description: s.Description,
			CreatedAt:   s.CreatedAt,
			UpdatedAt:   s.UpdatedAt,
			Topics:      []domain.TopicRef{},
			Labels:      []domain.LabelRef{},
		}

		for _, t := range sorted(m.topics, func(t domain.Topic) bool { return t.SessionID == s.ID }) {
			sp.Topics = append(sp.Topics, domain.TopicRef{ID: t.ID})
		}
		for _, c := range m.configs {
			if c.v.SessionID == s.ID {
				sp.QuestionCount += c.v.Count
			}
		}
		for _, sl := range sorted(m.attached, func(sl domain.SessionLabel) bool { return sl.SessionID == s.ID }) {
			if l, ok := m.labels[sl.LabelID]; ok {
				sp.Labels = append(sp.Labels, domain.LabelRef{ID: l.v.ID, Text: l.v.Text})
			}
		}

		list = append(list, sp)
	}

	if err := domain.ValidateSessionList(list); err != nil {
		return nil, errors.Validation(entitySession, err)
	}

	return list, nil
}

func (m *Memory) FetchFullSession(_ context.Context, id string) (*domain.FullSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.sessions[id]
	if !ok {
		return nil, errors.NotFound(entitySession, id)
	}

	fs := &domain.FullSession{
		ID:         r.v.ID,
		Title:      r.v.Title,
		SourceText: r.v.SourceText,
		CreatedBy:  r.v.CreatedBy,
		Topics:     []domain.TopicRef{},
		Questions:  []domain.Question{},
	}

	for _, t := range sorted(m.topics, func(t domain.Topic) bool { return t.SessionID == id }) {
		fs.Topics = append(fs.Topics, domain.TopicRef{ID: t.ID, Text: t.Text})
	}

	var configs []domain.ConfigRef
	for _, c := range sorted(m.configs, func(c domain.QuestionConfig) bool { return c.SessionID == id }) {
		configs = append(configs, domain.ConfigRef{ID: c.ID, TopicID: c.TopicID, Level: c.Level, Type: c.Type, Count: c.Count})
	}
	fs.Configs = domain.GroupConfigs(configs)

	for _, qr := range sorted(m.questions, func(q questionRow) bool { return q.SessionID == id }) {
		q, err := qr.question()
		if err != nil {
			return nil, errors.Validation("question", err)
		}
		fs.Questions = append(fs.Questions, q)
	}

	if err := domain.ValidateFullSession(fs); err != nil {
		return nil, errors.Validation(entitySession, err)
	}

	return fs.Clone(), nil
}

func (m *Memory) UpdateSessionSourceText(_ context.Context, id, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.sessions[id]
	if !ok {
		return errors.NotFound(entitySession, id)
	}

	now := m.now()
	r.v.SourceText = &text
	r.v.UpdatedAt = &now

	return nil
}

func (m *Memory) InsertTopics(_ context.Context, p InsertTopicsParams) ([]domain.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[p.SessionID]; !ok {
		return nil, errors.NotFound(entitySession, p.SessionID)
	}

	now := m.now()
	topics := make([]domain.Topic, 0, len(p.Texts))
	for _, text := range p.Texts {
		id, err := newID()
		if err != nil {
			return nil, errors.Persistence("create", entityTopics, p.SessionID, err)
		}
		topics = append(topics, domain.Topic{ID: id, SessionID: p.SessionID, Text: text, CreatedBy: p.CreatedBy, CreatedAt: now})
	}

	for _, t := range topics {
		m.topics[t.ID] = &memRow[domain.Topic]{seq: m.next(), v: t}
	}

	return topics, nil
}

func (m *Memory) DeleteTopics(_ context.Context, sessionID string, topicIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range topicIDs {
		t, ok := m.topics[id]
		if !ok || t.v.SessionID != sessionID {
			continue
		}

		delete(m.topics, id)
		for cid, c := range m.configs {
			if c.v.TopicID == id {
				delete(m.configs, cid)
			}
		}
		for qid, q := range m.questions {
			if q.v.TopicID == id {
				delete(m.questions, qid)
			}
		}
	}

	return nil
}

func (m *Memory) AddQuestionConfig(_ context.Context, p AddQuestionConfigParams) (*domain.QuestionConfig, error) {
	id, err := newID()
	if err != nil {
		return nil, errors.Persistence("add", entityQuestionConfig, "", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.topics[p.TopicID]
	if !ok || t.v.SessionID != p.SessionID {
		return nil, errors.NotFound("topic", p.TopicID)
	}

	c := domain.QuestionConfig{
		ID:        id,
		SessionID: p.SessionID,
		TopicID:   p.TopicID,
		Level:     p.Level,
		Type:      p.Type,
		Count:     p.Count,
		CreatedBy: p.CreatedBy,
		CreatedAt: m.now(),
	}
	if err := domain.ValidateQuestionConfig(c); err != nil {
		return nil, errors.Persistence("add", entityQuestionConfig, "", err)
	}

	m.configs[id] = &memRow[domain.QuestionConfig]{seq: m.next(), v: c}

	return &c, nil
}

func (m *Memory) UpdateQuestionConfig(_ context.Context, p UpdateQuestionConfigParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.configs[p.ID]
	if !ok {
		return errors.NotFound(entityQuestionConfig, p.ID)
	}

	c := r.v
	if p.Count != nil {
		c.Count = *p.Count
	}
	if p.Level != nil {
		c.Level = *p.Level
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	now := m.now()
	c.UpdatedAt = &now

	if err := domain.ValidateQuestionConfig(c); err != nil {
		return errors.Persistence("update", entityQuestionConfig, p.ID, err)
	}

	r.v = c
	return nil
}

func (m *Memory) DeleteQuestionConfig(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.configs, id)
	return nil
}

func (m *Memory) DeleteAllQuestionConfigsForTopic(_ context.Context, sessionID, topicID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, c := range m.configs {
		if c.v.SessionID == sessionID && c.v.TopicID == topicID {
			delete(m.configs, id)
		}
	}
	return nil
}

func (m *Memory) InsertQuestions(_ context.Context, qs []domain.Question) error {
	return m.writeQuestions("insert", qs, false)
}

func (m *Memory) UpsertQuestions(_ context.Context, qs []domain.Question) error {
	return m.writeQuestions("upsert", qs, true)
}

// writeQuestions checks every question before storing any of them, so a batch is
// written entirely or not at all.
func (m *Memory) writeQuestions(action string, qs []domain.Question, overwrite bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	rows := make([]questionRow, 0, len(qs))
	for _, q := range qs {
		t, ok := m.topics[q.TopicID]
		if !ok || t.v.SessionID != q.SessionID {
			return errors.NotFound("topic", q.TopicID)
		}

		if old, ok := m.questions[q.ID]; ok {
			if !overwrite {
				return errors.New(errors.CodeAlreadyExists, errors.WithMessagef("question already exists: %s", q.ID))
			}
			if old.v.SessionID != q.SessionID {
				return errors.NotFound(entityQuestion, q.ID)
			}
			q.CreatedAt = old.v.CreatedAt
			q.UpdatedAt = &now
		} else {
			q.CreatedAt = now
		}

		r, err := toQuestionRow(q)
		if err != nil {
			return errors.Persistence(action, entityQuestions, q.ID, err)
		}
		rows = append(rows, r)
	}

	for _, r := range rows {
		if old, ok := m.questions[r.ID]; ok {
			old.v = r
			continue
		}
		m.questions[r.ID] = &memRow[questionRow]{seq: m.next(), v: r}
	}

	return nil
}

func (m *Memory) CreateLabel(_ context.Context, text, createdBy string) (*domain.Label, error) {
	id, err := newID()
	if err != nil {
		return nil, errors.Persistence("create", entityLabel, "", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	l := domain.Label{ID: id, Text: text, CreatedBy: createdBy, CreatedAt: m.now()}
	m.labels[id] = &memRow[domain.Label]{seq: m.next(), v: l}

	return &l, nil
}

func (m *Memory) AttachLabel(_ context.Context, sessionID, labelID, createdBy string) (*domain.SessionLabel, error) {
	id, err := newID()
	if err != nil {
		return nil, errors.Persistence("attach", entityLabel, labelID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return nil, errors.NotFound(entitySession, sessionID)
	}
	if _, ok := m.labels[labelID]; !ok {
		return nil, errors.NotFound(entityLabel, labelID)
	}
	for _, sl := range m.attached {
		if sl.v.SessionID == sessionID && sl.v.LabelID == labelID {
			return nil, errors.New(errors.CodeAlreadyExists,
				errors.WithMessagef("label %s is already attached to session %s", labelID, sessionID))
		}
	}

	sl := domain.SessionLabel{ID: id, LabelID: labelID, SessionID: sessionID, CreatedBy: createdBy, CreatedAt: m.now()}
	m.attached[id] = &memRow[domain.SessionLabel]{seq: m.next(), v: sl}

	return &sl, nil
}

func (m *Memory) CreateUser(_ context.Context, email, passwordHash string) (*domain.User, error) {
	id, err := newID()
	if err != nil {
		return nil, errors.Persistence("create", entityUser, "", err)
	}

	email = strings.ToLower(email)

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.v.Email == email {
			return nil, errors.New(errors.CodeAlreadyExists, errors.WithMessagef("email is already registered: %s", email))
		}
	}

	u := domain.User{ID: id, Email: email, PasswordHash: passwordHash, IsActive: true, CreatedAt: m.now()}
	m.users[id] = &memRow[domain.User]{seq: m.next(), v: u}

	return &u, nil
}

func (m *Memory) FetchUser(_ context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.users[id]
	if !ok {
		return nil, errors.NotFound(entityUser, id)
	}

	u := r.v
	return &u, nil
}

func (m *Memory) FetchUserByEmail(_ context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(email)

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.users {
		if r.v.Email == email {
			u := r.v
			return &u, nil
		}
	}

	return nil, errors.NotFound(entityUser, email)
}
