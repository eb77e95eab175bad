// Package generator talks to the topic and question generation backend.
package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/victornm/quesgenie/internal/domain"
)

type Generator interface {
	// GenerateTopics proposes topics for the given source text.
	GenerateTopics(ctx context.Context, text string) ([]string, error)
	// GenerateQuestions generates questions for the requested topics.
	GenerateQuestions(ctx context.Context, req GenerateQuestionsRequest) ([]GeneratedQuestion, error)
}

type GenerateQuestionsRequest struct {
	Text   string
	Topics []TopicRequest
}

// Count is the total number of questions asked for.
func (r GenerateQuestionsRequest) Count() int {
	n := 0
	for _, t := range r.Topics {
		n += t.QuestionCount
	}
	return n
}

// TopicRequest asks for QuestionCount questions of one level and type on a topic.
type TopicRequest struct {
	ID            string              `json:"id"`
	Text          string              `json:"text"`
	QuestionCount int                 `json:"question_count"`
	Level         domain.Level        `json:"level"`
	Type          domain.QuestionType `json:"type"`
}

type GeneratedTopic struct {
	ID   string `mapstructure:"id"`
	Text string `mapstructure:"text"`
}

type GeneratedOption struct {
	ID   string `mapstructure:"id"`
	Text string `mapstructure:"text"`
}

// GeneratedQuestion is a question as the backend returns it. Option ids are
// local to the question and get replaced when it is converted.
type GeneratedQuestion struct {
	Topic            GeneratedTopic    `mapstructure:"topic"`
	Type             string            `mapstructure:"type"`
	Level            string            `mapstructure:"level"`
	Text             string            `mapstructure:"text"`
	Options          []GeneratedOption `mapstructure:"options"`
	CorrectOptionID  string            `mapstructure:"correctOptionId"`
	CorrectOptionIDs []string          `mapstructure:"correctOptionIds"`
}

// Question converts a generated question into a domain question with fresh
// option ids. fallback is used when the backend returns no level.
func (g GeneratedQuestion) Question(sessionID, createdBy string, fallback domain.Level) (domain.Question, error) {
	ids := make(map[string]string, len(g.Options))
	options := make([]domain.Option, 0, len(g.Options))
	for _, o := range g.Options {
		id := uuid.NewString()
		ids[o.ID] = id
		options = append(options, domain.Option{ID: id, Text: o.Text})
	}

	lookup := func(local string) (string, error) {
		id, ok := ids[local]
		if !ok {
			return "", fmt.Errorf("correct option %q is not one of the options", local)
		}
		return id, nil
	}

	var payload domain.Payload
	switch t := questionType(g.Type); t {
	case domain.QuestionTypeRadio:
		id, err := lookup(g.CorrectOptionID)
		if err != nil {
			return domain.Question{}, err
		}
		payload = domain.RadioPayload{Options: options, CorrectOptionID: id}
	case domain.QuestionTypeCheckbox:
		correct := make([]string, 0, len(g.CorrectOptionIDs))
		for _, local := range g.CorrectOptionIDs {
			id, err := lookup(local)
			if err != nil {
				return domain.Question{}, err
			}
			correct = append(correct, id)
		}
		payload = domain.CheckboxPayload{Options: options, CorrectOptionIDs: correct}
	default:
		return domain.Question{}, fmt.Errorf("unsupported question type %q", g.Type)
	}

	level := domain.Level(strings.ToUpper(g.Level))
	if !level.Valid() {
		level = fallback
	}

	return domain.Question{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		TopicID:   g.Topic.ID,
		Text:      g.Text,
		Level:     level,
		Payload:   payload,
		CreatedBy: createdBy,
	}, nil
}

func questionType(s string) domain.QuestionType {
	switch strings.ToLower(s) {
	case "mcq", "radio":
		return domain.QuestionTypeRadio
	case "checkbox":
		return domain.QuestionTypeCheckbox
	}
	return ""
}
