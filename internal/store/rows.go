package store

import (
	"encoding/json"
	"fmt"

	"github.com/victornm/quesgenie/internal/casing"
	"github.com/victornm/quesgenie/internal/domain"
)

// Question payloads are stored as snake_case jsonb, the same way the rest of
// the row is named.

func encodePayload(p domain.Payload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	return json.Marshal(casing.ToSnake(m))
}

func decodePayload(t domain.QuestionType, raw []byte) (domain.Payload, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	b, err := json.Marshal(casing.ToCamel(m))
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	return domain.DecodePayload(t, b)
}

// questionRow is a session_questions row.
type questionRow struct {
	domain.Question
	Type    domain.QuestionType
	Payload []byte
}

func toQuestionRow(q domain.Question) (questionRow, error) {
	p, err := encodePayload(q.Payload)
	if err != nil {
		return questionRow{}, err
	}

	r := questionRow{Question: q, Type: q.Type(), Payload: p}
	r.Question.Payload = nil
	return r, nil
}

func (r questionRow) question() (domain.Question, error) {
	p, err := decodePayload(r.Type, r.Payload)
	if err != nil {
		return domain.Question{}, fmt.Errorf("question %s: %w", r.ID, err)
	}

	q := r.Question
	q.Payload = p
	return q, nil
}
