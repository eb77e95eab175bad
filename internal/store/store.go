// Package store persists sessions, topics, question configs, questions, labels
// and users. Every failure is returned as an *errors.Error naming the entity.
package store

import (
	"context"

	"github.com/victornm/quesgenie/internal/domain"
)

// Gateway is a single round trip per call. Nothing is retried.
type Gateway interface {
	CreateSession(ctx context.Context, p CreateSessionParams) (*domain.Session, error)
	FetchSession(ctx context.Context, id string) (*domain.Session, error)
	// FetchSessionList returns the sessions created by a user, newest first.
	FetchSessionList(ctx context.Context, createdBy string) ([]domain.SessionPayload, error)
	FetchFullSession(ctx context.Context, id string) (*domain.FullSession, error)
	UpdateSessionSourceText(ctx context.Context, id, text string) error

	InsertTopics(ctx context.Context, p InsertTopicsParams) ([]domain.Topic, error)
	DeleteTopics(ctx context.Context, sessionID string, topicIDs []string) error

	AddQuestionConfig(ctx context.Context, p AddQuestionConfigParams) (*domain.QuestionConfig, error)
	UpdateQuestionConfig(ctx context.Context, p UpdateQuestionConfigParams) error
	DeleteQuestionConfig(ctx context.Context, id string) error
	DeleteAllQuestionConfigsForTopic(ctx context.Context, sessionID, topicID string) error

	InsertQuestions(ctx context.Context, qs []domain.Question) error
	// UpsertQuestions inserts new questions and overwrites existing ones by id.
	UpsertQuestions(ctx context.Context, qs []domain.Question) error

	CreateLabel(ctx context.Context, text, createdBy string) (*domain.Label, error)
	AttachLabel(ctx context.Context, sessionID, labelID, createdBy string) (*domain.SessionLabel, error)

	CreateUser(ctx context.Context, email, passwordHash string) (*domain.User, error)
	FetchUser(ctx context.Context, id string) (*domain.User, error)
	FetchUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

type CreateSessionParams struct {
	Title       string
	Description *string
	CreatedBy   string
}

type InsertTopicsParams struct {
	SessionID string
	Texts     []string
	CreatedBy string
}

type AddQuestionConfigParams struct {
	SessionID string
	TopicID   string
	Level     domain.Level
	Type      domain.QuestionType
	Count     int
	CreatedBy string
}

// UpdateQuestionConfigParams updates the non-nil fields only.
type UpdateQuestionConfigParams struct {
	ID    string
	Count *int
	Level *domain.Level
	Type  *domain.QuestionType
}

const (
	entitySession        = "session"
	entitySessions       = "sessions"
	entityTopics         = "topics"
	entityQuestionConfig = "question config"
	entityQuestion       = "question"
	entityQuestions      = "questions"
	entityLabel          = "label"
	entityUser           = "user"
)
