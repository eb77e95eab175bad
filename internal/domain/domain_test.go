package domain_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quesgenie/internal/domain"
)

func TestClampCount(t *testing.T) {
	tests := map[int]int{
		-3: 1,
		0:  1,
		1:  1,
		5:  5,
		10: 10,
		15: 10,
	}

	for in, want := range tests {
		assert.Equal(t, want, domain.ClampCount(in), "ClampCount(%d)", in)
	}
}

func TestSourceTextReady(t *testing.T) {
	assert.False(t, domain.SourceTextReady(strings.Repeat("a", 1199)))
	assert.True(t, domain.SourceTextReady(strings.Repeat("a", 1200)))
	// characters, not bytes
	assert.False(t, domain.SourceTextReady(strings.Repeat("é", 1199)))
}

func TestValidateQuestion(t *testing.T) {
	var (
		o1, o2, o3 = uuid.NewString(), uuid.NewString(), uuid.NewString()
		options    = []domain.Option{{ID: o1, Text: "King Cobra"}, {ID: o2, Text: "Krait"}, {ID: o3, Text: "Python"}}
	)

	tests := map[string]struct {
		payload domain.Payload
		wantErr string
	}{
		"radio with a correct option from its list is valid": {
			payload: domain.RadioPayload{Options: options, CorrectOptionID: o3},
		},
		"radio whose correct option is not listed is invalid": {
			payload: domain.RadioPayload{Options: options, CorrectOptionID: uuid.NewString()},
			wantErr: "is not one of its options",
		},
		"checkbox with listed correct options is valid": {
			payload: domain.CheckboxPayload{Options: options, CorrectOptionIDs: []string{o1, o2}},
		},
		"checkbox with an empty correct set is invalid": {
			payload: domain.CheckboxPayload{Options: options, CorrectOptionIDs: []string{}},
			wantErr: "CorrectOptionIDs",
		},
		"checkbox with an unknown correct option is invalid": {
			payload: domain.CheckboxPayload{Options: options, CorrectOptionIDs: []string{o1, uuid.NewString()}},
			wantErr: "is not one of its options",
		},
		"duplicate option ids are invalid": {
			payload: domain.RadioPayload{Options: []domain.Option{{ID: o1}, {ID: o1}}, CorrectOptionID: o1},
			wantErr: "duplicate option id",
		},
		"missing payload is invalid": {
			payload: nil,
			wantErr: "missing payload",
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			q := newQuestion(tt.payload)
			err := domain.ValidateQuestion(q)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestQuestion_JSON(t *testing.T) {
	o1, o2 := uuid.NewString(), uuid.NewString()
	q := newQuestion(domain.CheckboxPayload{
		Options:          []domain.Option{{ID: o1, Text: "a"}, {ID: o2, Text: "b"}},
		CorrectOptionIDs: []string{o2},
	})

	b, err := json.Marshal(q)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "CHECKBOX", raw["type"], "type is derived from the payload")
	assert.Contains(t, raw["payload"], "correctOptionIds")

	var got domain.Question
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, domain.QuestionTypeCheckbox, got.Type())
	assert.Equal(t, q.Payload, got.Payload)

	err = json.Unmarshal([]byte(`{"type":"ESSAY","payload":{}}`), &got)
	require.ErrorContains(t, err, "unknown question type")
}

func TestFullSession_Clone(t *testing.T) {
	o1 := uuid.NewString()
	s := &domain.FullSession{
		ID:     uuid.NewString(),
		Topics: []domain.TopicRef{{ID: "t1", Text: "snakes"}},
		Configs: map[string][]domain.ConfigRef{
			"t1": {{ID: "c1", TopicID: "t1", Count: 3}},
		},
		Questions: []domain.Question{newQuestion(domain.RadioPayload{
			Options:         []domain.Option{{ID: o1, Text: "a"}},
			CorrectOptionID: o1,
		})},
	}

	c := s.Clone()
	c.Configs["t1"][0].Count = 9
	c.Topics[0].Text = "lizards"
	c.Questions[0].Payload.(domain.RadioPayload).Options[0].Text = "changed"

	assert.Equal(t, 3, s.Configs["t1"][0].Count)
	assert.Equal(t, "snakes", s.Topics[0].Text)
	assert.Equal(t, "a", s.Questions[0].Payload.OptionList()[0].Text)
}

func TestGroupConfigs(t *testing.T) {
	got := domain.GroupConfigs([]domain.ConfigRef{
		{ID: "c1", TopicID: "t1"},
		{ID: "c2", TopicID: "t2"},
		{ID: "c3", TopicID: "t1"},
	})

	require.Len(t, got, 2)
	assert.Equal(t, []domain.ConfigRef{{ID: "c1", TopicID: "t1"}, {ID: "c3", TopicID: "t1"}}, got["t1"])
}

func newQuestion(p domain.Payload) domain.Question {
	return domain.Question{
		ID:        uuid.NewString(),
		SessionID: uuid.NewString(),
		TopicID:   uuid.NewString(),
		Text:      "Which of the following is not a poisonous snake?",
		Level:     domain.LevelEasy,
		Payload:   p,
		CreatedBy: uuid.NewString(),
	}
}
