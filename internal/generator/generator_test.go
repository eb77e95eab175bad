package generator_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quesgenie/internal/domain"
	"github.com/victornm/quesgenie/internal/generator"
)

func TestTopicCount(t *testing.T) {
	tests := map[int]int{
		0:     5,
		500:   5,
		1000:  5,
		1001:  10,
		5000:  10,
		12000: 10,
		24001: 10,
		50000: 10,
	}

	for words, want := range tests {
		assert.Equal(t, want, generator.TopicCount(words), "TopicCount(%d)", words)
	}

	prev := 0
	for w := 0; w <= 60000; w += 250 {
		got := generator.TopicCount(w)
		require.GreaterOrEqual(t, got, prev, "TopicCount must not decrease at %d words", w)
		prev = got
	}
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 0, generator.WordCount("   "))
	assert.Equal(t, 4, generator.WordCount(" snakes are\nnot\tlizards "))
}

func TestClient_GenerateTopics(t *testing.T) {
	text := strings.Repeat("word ", 1500)

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/generate_topics", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte("```json\n{\"topics\": [\"RESTful API Design\", \" \", \"API Versioning\"]}\n```"))
	}))
	defer srv.Close()

	c := generator.NewClient(generator.Config{BaseURL: srv.URL + "/"})
	topics, err := c.GenerateTopics(context.Background(), text)
	require.NoError(t, err)

	assert.Equal(t, []string{"RESTful API Design", "API Versioning"}, topics)
	assert.Equal(t, float64(10), got["count"])
	assert.Equal(t, "text/plain", got["content_type"])

	decoded, err := base64.StdEncoding.DecodeString(got["content_base64"].(string))
	require.NoError(t, err)
	assert.Equal(t, text, string(decoded))
}

func TestClient_GenerateTopics_Errors(t *testing.T) {
	tests := map[string]struct {
		status   int
		body     string
		maxBytes int64
		want     string
	}{
		"oversized body": {
			status:   http.StatusOK,
			body:     `{"topics": ["` + strings.Repeat("a", 64) + `"]}`,
			maxBytes: 32,
			want:     "response exceeds 32 bytes",
		},
		"non 200 status": {
			status: http.StatusInternalServerError,
			body:   `{"detail":"Topic generation failed"}`,
			want:   "backend returned status 500",
		},
		"empty topic list": {
			status: http.StatusOK,
			body:   `{"topics": []}`,
			want:   "no topics",
		},
		"malformed body": {
			status: http.StatusOK,
			body:   `not json`,
			want:   "decode response",
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := generator.NewClient(generator.Config{BaseURL: srv.URL, MaxResponseBytes: tt.maxBytes})
			_, err := c.GenerateTopics(context.Background(), "some text")
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestClient_GenerateQuestions(t *testing.T) {
	topicID := uuid.NewString()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/generate_mcq_questions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{"questions": [{
			"id": 1,
			"topic": {"id": "` + topicID + `", "text": "RESTful API Design"},
			"type": "mcq",
			"level": "medium",
			"text": "Which is NOT a recommended practice?",
			"options": [{"id": 1, "text": "Use SSL"}, {"id": 2, "text": "Use an envelope"}],
			"correct_option_id": 2
		}]}`))
	}))
	defer srv.Close()

	c := generator.NewClient(generator.Config{BaseURL: srv.URL})
	qs, err := c.GenerateQuestions(context.Background(), generator.GenerateQuestionsRequest{
		Text: "source",
		Topics: []generator.TopicRequest{
			{ID: topicID, Text: "RESTful API Design", QuestionCount: 2, Level: domain.LevelMedium, Type: domain.QuestionTypeRadio},
			{ID: uuid.NewString(), Text: "Caching", QuestionCount: 3, Level: domain.LevelHard, Type: domain.QuestionTypeRadio},
		},
	})
	require.NoError(t, err)
	require.Len(t, qs, 1)

	assert.Equal(t, float64(5), got["count"])
	assert.Len(t, got["topics"], 2)

	g := qs[0]
	assert.Equal(t, topicID, g.Topic.ID)
	assert.Equal(t, "2", g.CorrectOptionID)
	require.Len(t, g.Options, 2)
	assert.Equal(t, "1", g.Options[0].ID)

	sessionID, userID := uuid.NewString(), uuid.NewString()
	q, err := g.Question(sessionID, userID, domain.LevelEasy)
	require.NoError(t, err)
	require.NoError(t, domain.ValidateQuestion(q))

	p, ok := q.Payload.(domain.RadioPayload)
	require.True(t, ok)
	assert.Equal(t, p.Options[1].ID, p.CorrectOptionID)
	assert.Equal(t, domain.LevelMedium, q.Level)
	assert.Equal(t, topicID, q.TopicID)
}

func TestGeneratedQuestion_Question(t *testing.T) {
	base := generator.GeneratedQuestion{
		Topic:   generator.GeneratedTopic{ID: uuid.NewString()},
		Text:    "Pick the venomous snakes",
		Options: []generator.GeneratedOption{{ID: "1", Text: "Cobra"}, {ID: "2", Text: "Python"}, {ID: "3", Text: "Krait"}},
	}

	t.Run("checkbox keeps every correct option", func(t *testing.T) {
		g := base
		g.Type = "checkbox"
		g.CorrectOptionIDs = []string{"1", "3"}

		q, err := g.Question(uuid.NewString(), uuid.NewString(), domain.LevelHard)
		require.NoError(t, err)
		require.NoError(t, domain.ValidateQuestion(q))

		p := q.Payload.(domain.CheckboxPayload)
		assert.Equal(t, []string{p.Options[0].ID, p.Options[2].ID}, p.CorrectOptionIDs)
		assert.Equal(t, domain.LevelHard, q.Level, "missing level falls back")
	})

	t.Run("unknown correct option is rejected", func(t *testing.T) {
		g := base
		g.Type = "mcq"
		g.CorrectOptionID = "9"

		_, err := g.Question(uuid.NewString(), uuid.NewString(), domain.LevelEasy)
		require.ErrorContains(t, err, "not one of the options")
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		g := base
		g.Type = "essay"

		_, err := g.Question(uuid.NewString(), uuid.NewString(), domain.LevelEasy)
		require.ErrorContains(t, err, "unsupported question type")
	})
}

func TestStatic(t *testing.T) {
	s := generator.Static{}

	topics, err := s.GenerateTopics(context.Background(), "a short text")
	require.NoError(t, err)
	assert.Len(t, topics, 5)

	qs, err := s.GenerateQuestions(context.Background(), generator.GenerateQuestionsRequest{
		Topics: []generator.TopicRequest{
			{ID: uuid.NewString(), Text: "snakes", QuestionCount: 2, Level: domain.LevelEasy, Type: domain.QuestionTypeCheckbox},
		},
	})
	require.NoError(t, err)
	require.Len(t, qs, 2)

	for _, g := range qs {
		q, err := g.Question(uuid.NewString(), uuid.NewString(), domain.LevelEasy)
		require.NoError(t, err)
		require.NoError(t, domain.ValidateQuestion(q))
		assert.Equal(t, domain.QuestionTypeCheckbox, q.Type())
	}
}
