package domain

import (
	"time"
	"unicode/utf8"
)

const (
	// MinSourceTextLength is the number of characters a session's source text
	// needs before topics can be generated from it.
	MinSourceTextLength = 1200

	MinQuestionCount = 1
	MaxQuestionCount = 10
)

type Level string

const (
	LevelEasy   Level = "EASY"
	LevelMedium Level = "MEDIUM"
	LevelHard   Level = "HARD"
)

// Levels lists every difficulty level in ascending order.
var Levels = []Level{LevelEasy, LevelMedium, LevelHard}

func (l Level) Valid() bool {
	switch l {
	case LevelEasy, LevelMedium, LevelHard:
		return true
	}
	return false
}

type QuestionType string

const (
	QuestionTypeRadio    QuestionType = "RADIO"
	QuestionTypeCheckbox QuestionType = "CHECKBOX"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeRadio, QuestionTypeCheckbox:
		return true
	}
	return false
}

// Session is one question-generation project owned by a user.
type Session struct {
	ID          string     `json:"id" validate:"required,uuid"`
	Title       string     `json:"title" validate:"required"`
	Description *string    `json:"description"`
	SourceText  *string    `json:"sourceText" validate:"omitempty,min=1200"`
	CreatedBy   string     `json:"createdBy" validate:"required,uuid"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt"`
}

type Topic struct {
	ID        string    `json:"id" validate:"required,uuid"`
	SessionID string    `json:"sessionId" validate:"required,uuid"`
	Text      string    `json:"text" validate:"required"`
	CreatedBy string    `json:"createdBy" validate:"required,uuid"`
	CreatedAt time.Time `json:"createdAt"`
}

// QuestionConfig asks for Count questions of one level and type on one topic.
type QuestionConfig struct {
	ID        string       `json:"id" validate:"required,uuid"`
	SessionID string       `json:"sessionId" validate:"required,uuid"`
	TopicID   string       `json:"topicId" validate:"required,uuid"`
	Level     Level        `json:"level" validate:"required,oneof=EASY MEDIUM HARD"`
	Type      QuestionType `json:"type" validate:"required,oneof=RADIO CHECKBOX"`
	Count     int          `json:"count" validate:"min=1,max=10"`
	CreatedBy string       `json:"createdBy" validate:"required,uuid"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt *time.Time   `json:"updatedAt"`
}

type Label struct {
	ID        string    `json:"id" validate:"required,uuid"`
	Text      string    `json:"text" validate:"required"`
	CreatedBy string    `json:"createdBy" validate:"required,uuid"`
	CreatedAt time.Time `json:"createdAt"`
}

type SessionLabel struct {
	ID        string    `json:"id"`
	LabelID   string    `json:"labelId"`
	SessionID string    `json:"sessionId"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	IsActive     bool       `json:"isActive"`
	AvatarURL    *string    `json:"avatarUrl"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt"`
}

// SessionPayload is a row of the session list.
type SessionPayload struct {
	ID            string     `json:"id" validate:"required,uuid"`
	Title         string     `json:"title" validate:"required"`
	Description   *string    `json:"description"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     *time.Time `json:"updatedAt"`
	Topics        []TopicRef `json:"topics" validate:"dive"`
	Labels        []LabelRef `json:"labels" validate:"dive"`
	QuestionCount int        `json:"questionCount" validate:"min=0"`
}

type TopicRef struct {
	ID   string `json:"id" validate:"required,uuid"`
	Text string `json:"text,omitempty"`
}

type LabelRef struct {
	ID   string `json:"id" validate:"required,uuid"`
	Text string `json:"text"`
}

// ConfigRef is the part of a QuestionConfig carried by the full session view.
type ConfigRef struct {
	ID      string       `json:"id" validate:"required,uuid"`
	TopicID string       `json:"topicId" validate:"required,uuid"`
	Level   Level        `json:"level" validate:"required,oneof=EASY MEDIUM HARD"`
	Type    QuestionType `json:"type" validate:"required,oneof=RADIO CHECKBOX"`
	Count   int          `json:"count" validate:"min=1,max=10"`
}

// FullSession is a session joined with its topics, configs and questions.
// Configs is grouped by topic id and is never stored in that shape.
type FullSession struct {
	ID         string                 `json:"id" validate:"required,uuid"`
	Title      string                 `json:"title"`
	SourceText *string                `json:"sourceText" validate:"omitempty,min=1200"`
	CreatedBy  string                 `json:"-"`
	Topics     []TopicRef             `json:"topics" validate:"dive"`
	Configs    map[string][]ConfigRef `json:"configs" validate:"dive,dive"`
	Questions  []Question             `json:"questions" validate:"-"`
}

// GroupConfigs groups configs by topic id, keeping their order within a topic.
func GroupConfigs(configs []ConfigRef) map[string][]ConfigRef {
	m := make(map[string][]ConfigRef)
	for _, c := range configs {
		m[c.TopicID] = append(m[c.TopicID], c)
	}
	return m
}

// HasTopic reports whether the session has a topic with the given id.
func (s *FullSession) HasTopic(id string) bool {
	for _, t := range s.Topics {
		if t.ID == id {
			return true
		}
	}
	return false
}

// HasQuestion reports whether the session has a question with the given id.
func (s *FullSession) HasQuestion(id string) bool {
	for _, q := range s.Questions {
		if q.ID == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy, so callers can mutate it without touching the
// cached aggregate.
func (s *FullSession) Clone() *FullSession {
	if s == nil {
		return nil
	}

	c := *s
	if s.SourceText != nil {
		t := *s.SourceText
		c.SourceText = &t
	}

	c.Topics = append([]TopicRef(nil), s.Topics...)

	c.Configs = make(map[string][]ConfigRef, len(s.Configs))
	for k, v := range s.Configs {
		c.Configs[k] = append([]ConfigRef(nil), v...)
	}

	c.Questions = make([]Question, len(s.Questions))
	for i, q := range s.Questions {
		c.Questions[i] = q.Clone()
	}

	return &c
}

// ClampCount keeps a user-edited question count within [1, 10].
func ClampCount(n int) int {
	return min(max(n, MinQuestionCount), MaxQuestionCount)
}

// SourceTextReady reports whether text is long enough to generate topics from.
func SourceTextReady(text string) bool {
	return utf8.RuneCountInString(text) >= MinSourceTextLength
}
