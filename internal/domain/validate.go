package domain

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateQuestion checks the question fields and its payload. Every correct
// option id must name an option of the same question.
func ValidateQuestion(q Question) error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("question %s: %w", q.ID, err)
	}

	var correct []string
	switch p := q.Payload.(type) {
	case RadioPayload:
		if err := validate.Struct(p); err != nil {
			return fmt.Errorf("question %s: %w", q.ID, err)
		}
		correct = []string{p.CorrectOptionID}
	case CheckboxPayload:
		if err := validate.Struct(p); err != nil {
			return fmt.Errorf("question %s: %w", q.ID, err)
		}
		correct = p.CorrectOptionIDs
	case nil:
		return fmt.Errorf("question %s: missing payload", q.ID)
	default:
		return fmt.Errorf("question %s: unsupported payload %T", q.ID, p)
	}

	ids := make(map[string]struct{}, len(q.Payload.OptionList()))
	for _, o := range q.Payload.OptionList() {
		if _, ok := ids[o.ID]; ok {
			return fmt.Errorf("question %s: duplicate option id %s", q.ID, o.ID)
		}
		ids[o.ID] = struct{}{}
	}

	for _, id := range correct {
		if _, ok := ids[id]; !ok {
			return fmt.Errorf("question %s: correct option %s is not one of its options", q.ID, id)
		}
	}

	return nil
}

// ValidateFullSession checks the aggregate after it was assembled from the store.
func ValidateFullSession(s *FullSession) error {
	if s == nil {
		return errors.New("nil session")
	}

	if err := validate.Struct(s); err != nil {
		return err
	}

	for topicID, cs := range s.Configs {
		for _, c := range cs {
			if c.TopicID != topicID {
				return fmt.Errorf("config %s grouped under topic %s but belongs to %s", c.ID, topicID, c.TopicID)
			}
		}
	}

	for _, q := range s.Questions {
		if err := ValidateQuestion(q); err != nil {
			return err
		}
	}

	return nil
}

func ValidateSessionList(ss []SessionPayload) error {
	for i := range ss {
		if err := validate.Struct(ss[i]); err != nil {
			return fmt.Errorf("session %s: %w", ss[i].ID, err)
		}
	}
	return nil
}

func ValidateSession(s Session) error {
	return validate.Struct(s)
}

func ValidateQuestionConfig(c QuestionConfig) error {
	return validate.Struct(c)
}
