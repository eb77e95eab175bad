package generator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/victornm/quesgenie/internal/domain"
)

var placeholderTopics = []string{
	"snake-related",
	"reptiles",
	"mammals",
	"insects",
	"birds-stuff",
	"amphibians",
	"marine life",
	"habitats",
	"food chains",
	"conservation",
}

// Static generates placeholder topics and questions without a backend. It is
// used for local runs and tests.
type Static struct {
	// Delay simulates the backend's latency.
	Delay time.Duration
}

func (s Static) GenerateTopics(ctx context.Context, text string) ([]string, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	n := TopicCount(WordCount(text))
	return append([]string(nil), placeholderTopics[:min(n, len(placeholderTopics))]...), nil
}

func (s Static) GenerateQuestions(ctx context.Context, req GenerateQuestionsRequest) ([]GeneratedQuestion, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	var qs []GeneratedQuestion
	for _, t := range req.Topics {
		for i := range t.QuestionCount {
			q := GeneratedQuestion{
				Topic: GeneratedTopic{ID: t.ID, Text: t.Text},
				Type:  string(t.Type),
				Level: strings.ToLower(string(t.Level)),
				Text:  fmt.Sprintf("Question %d about %s?", i+1, t.Text),
			}
			for j := 1; j <= 4; j++ {
				q.Options = append(q.Options, GeneratedOption{
					ID:   strconv.Itoa(j),
					Text: fmt.Sprintf("Option %d", j),
				})
			}

			switch t.Type {
			case domain.QuestionTypeCheckbox:
				q.CorrectOptionIDs = []string{"1", "4"}
			default:
				q.CorrectOptionID = "1"
			}
			qs = append(qs, q)
		}
	}

	return qs, nil
}

func (s Static) wait(ctx context.Context) error {
	if s.Delay <= 0 {
		return nil
	}

	t := time.NewTimer(s.Delay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
