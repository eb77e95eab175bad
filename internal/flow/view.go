package flow

import (
	"unicode/utf8"

	"github.com/victornm/quesgenie/internal/domain"
	"github.com/victornm/quesgenie/internal/errors"
)

type View struct {
	PageID     string         `json:"pageId"`
	SessionID  string         `json:"sessionId"`
	Title      string         `json:"title"`
	SourceText SourceTextStep `json:"sourceText"`
	Topics     TopicStep      `json:"topics"`
	Configs    ConfigStep     `json:"configs"`
	Discovery  DiscoveryStep  `json:"discovery"`
}

// SourceTextStep is step 1. It is always visible and locked once topics exist.
type SourceTextStep struct {
	Visible   bool          `json:"visible"`
	Text      string        `json:"text"`
	Length    int           `json:"length"`
	MinLength int           `json:"minLength"`
	Locked    bool          `json:"locked"`
	CanSubmit bool          `json:"canSubmit"`
	Error     *errors.Error `json:"error,omitempty"`
}

// NewSourceTextStep describes step 1 for a text, saved or being typed.
func NewSourceTextStep(text string, locked bool) SourceTextStep {
	return SourceTextStep{
		Visible:   true,
		Text:      text,
		Length:    utf8.RuneCountInString(text),
		MinLength: domain.MinSourceTextLength,
		Locked:    locked,
		CanSubmit: !locked && domain.SourceTextReady(text),
	}
}

// TopicStep is step 2, visible once topics exist.
type TopicStep struct {
	Visible bool          `json:"visible"`
	Topics  []TopicItem   `json:"topics"`
	Error   *errors.Error `json:"error,omitempty"`
}

type TopicItem struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Selected bool   `json:"selected"`
}

// ConfigStep is step 3, visible while at least one topic is selected. It
// lists the selected topics only.
type ConfigStep struct {
	Visible     bool          `json:"visible"`
	Topics      []ConfigTopic `json:"topics"`
	CanGenerate bool          `json:"canGenerate"`
	Error       *errors.Error `json:"error,omitempty"`
}

type ConfigTopic struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Active  bool         `json:"active"`
	Configs []ConfigItem `json:"configs"`
}

type ConfigItem struct {
	domain.ConfigRef
	// CanDelete is false for the last config of a topic.
	CanDelete bool `json:"canDelete"`
}

// DiscoveryStep is step 4. It is always visible.
type DiscoveryStep struct {
	Visible   bool              `json:"visible"`
	Populated bool              `json:"populated"`
	Questions []domain.Question `json:"questions"`
	Error     *errors.Error     `json:"error,omitempty"`
}

func buildView(p *Page, fs *domain.FullSession, fetchErr *errors.Error) *View {
	v := &View{PageID: p.ID, SessionID: p.SessionID}

	if fetchErr != nil {
		v.SourceText = SourceTextStep{Visible: true, MinLength: domain.MinSourceTextLength, Error: fetchErr}
		v.Topics = TopicStep{Visible: true, Topics: []TopicItem{}, Error: fetchErr}
		v.Configs = ConfigStep{Visible: len(p.Selected) > 0, Topics: []ConfigTopic{}, Error: fetchErr}
		v.Discovery = DiscoveryStep{Visible: true, Questions: []domain.Question{}, Error: fetchErr}
		return v
	}

	v.Title = fs.Title

	var text string
	if fs.SourceText != nil {
		text = *fs.SourceText
	}
	v.SourceText = NewSourceTextStep(text, len(fs.Topics) > 0)

	v.Topics = TopicStep{Visible: len(fs.Topics) > 0, Topics: make([]TopicItem, 0, len(fs.Topics))}
	texts := make(map[string]string, len(fs.Topics))
	for _, t := range fs.Topics {
		texts[t.ID] = t.Text
		v.Topics.Topics = append(v.Topics.Topics, TopicItem{ID: t.ID, Text: t.Text, Selected: p.selected(t.ID)})
	}

	// Topics deleted since they were picked drop out of the selection.
	v.Configs = ConfigStep{Topics: []ConfigTopic{}}
	for _, id := range p.Selected {
		text, ok := texts[id]
		if !ok {
			continue
		}

		cs := fs.Configs[id]
		ct := ConfigTopic{ID: id, Text: text, Active: id == p.ActiveTopicID, Configs: make([]ConfigItem, 0, len(cs))}
		for _, c := range cs {
			ct.Configs = append(ct.Configs, ConfigItem{ConfigRef: c, CanDelete: len(cs) > 1})
		}
		v.Configs.Topics = append(v.Configs.Topics, ct)
	}
	v.Configs.Visible = len(v.Configs.Topics) > 0

	for _, cs := range fs.Configs {
		if len(cs) > 0 {
			v.Configs.CanGenerate = true
			break
		}
	}

	v.Discovery = DiscoveryStep{
		Visible:   true,
		Populated: len(fs.Questions) > 0,
		Questions: fs.Questions,
	}
	if v.Discovery.Questions == nil {
		v.Discovery.Questions = []domain.Question{}
	}

	return v
}
