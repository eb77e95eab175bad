package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

type Option struct {
	ID   string `json:"id" validate:"required,uuid"`
	Text string `json:"text"`
}

// Payload is the shape-dependent part of a question. It is implemented only by
// RadioPayload and CheckboxPayload; the question type follows from the variant.
type Payload interface {
	Type() QuestionType
	OptionList() []Option
	isPayload()
}

// RadioPayload has exactly one correct option.
type RadioPayload struct {
	Options         []Option `json:"options" validate:"min=1,dive"`
	CorrectOptionID string   `json:"correctOptionId" validate:"required,uuid"`
}

func (RadioPayload) Type() QuestionType     { return QuestionTypeRadio }
func (p RadioPayload) OptionList() []Option { return p.Options }
func (RadioPayload) isPayload()             {}

// CheckboxPayload has a non-empty set of correct options.
type CheckboxPayload struct {
	Options          []Option `json:"options" validate:"min=1,dive"`
	CorrectOptionIDs []string `json:"correctOptionIds" validate:"min=1,dive,uuid"`
}

func (CheckboxPayload) Type() QuestionType     { return QuestionTypeCheckbox }
func (p CheckboxPayload) OptionList() []Option { return p.Options }
func (CheckboxPayload) isPayload()             {}

type Question struct {
	ID        string     `validate:"required,uuid"`
	SessionID string     `validate:"required,uuid"`
	TopicID   string     `validate:"required,uuid"`
	Text      string     `validate:"required"`
	Level     Level      `validate:"required,oneof=EASY MEDIUM HARD"`
	Payload   Payload    `validate:"-"`
	CreatedBy string     `validate:"required,uuid"`
	CreatedAt time.Time  `validate:"-"`
	UpdatedAt *time.Time `validate:"-"`
}

// Type is derived from the payload variant.
func (q Question) Type() QuestionType {
	switch p := q.Payload.(type) {
	case RadioPayload:
		return p.Type()
	case CheckboxPayload:
		return p.Type()
	default:
		return ""
	}
}

func (q Question) Clone() Question {
	c := q
	switch p := q.Payload.(type) {
	case RadioPayload:
		p.Options = slices.Clone(p.Options)
		c.Payload = p
	case CheckboxPayload:
		p.Options = slices.Clone(p.Options)
		p.CorrectOptionIDs = slices.Clone(p.CorrectOptionIDs)
		c.Payload = p
	}
	return c
}

type questionJSON struct {
	ID        string          `json:"id"`
	SessionID string          `json:"sessionId"`
	TopicID   string          `json:"topicId"`
	Text      string          `json:"text"`
	Level     Level           `json:"level"`
	Type      QuestionType    `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedBy string          `json:"createdBy"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt *time.Time      `json:"updatedAt"`
}

func (q Question) MarshalJSON() ([]byte, error) {
	if q.Payload == nil {
		return nil, fmt.Errorf("question %s: missing payload", q.ID)
	}

	p, err := json.Marshal(q.Payload)
	if err != nil {
		return nil, err
	}

	return json.Marshal(questionJSON{
		ID:        q.ID,
		SessionID: q.SessionID,
		TopicID:   q.TopicID,
		Text:      q.Text,
		Level:     q.Level,
		Type:      q.Type(),
		Payload:   p,
		CreatedBy: q.CreatedBy,
		CreatedAt: q.CreatedAt,
		UpdatedAt: q.UpdatedAt,
	})
}

func (q *Question) UnmarshalJSON(b []byte) error {
	var v questionJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	p, err := DecodePayload(v.Type, v.Payload)
	if err != nil {
		return err
	}

	*q = Question{
		ID:        v.ID,
		SessionID: v.SessionID,
		TopicID:   v.TopicID,
		Text:      v.Text,
		Level:     v.Level,
		Payload:   p,
		CreatedBy: v.CreatedBy,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
	return nil
}

// DecodePayload decodes a camelCase payload for the given question type.
func DecodePayload(t QuestionType, b []byte) (Payload, error) {
	switch t {
	case QuestionTypeRadio:
		var p RadioPayload
		if err := json.Unmarshal(b, &p); err != nil {
			return nil, fmt.Errorf("decode radio payload: %w", err)
		}
		return p, nil
	case QuestionTypeCheckbox:
		var p CheckboxPayload
		if err := json.Unmarshal(b, &p); err != nil {
			return nil, fmt.Errorf("decode checkbox payload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown question type %q", t)
	}
}
