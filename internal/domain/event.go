package domain

const (
	EventNameSessionChanged = "session.changed"
)

// ChangeReason names the mutation that changed a session aggregate.
type ChangeReason string

const (
	ChangeSessionCreated  ChangeReason = "session_created"
	ChangeSourceText      ChangeReason = "source_text_updated"
	ChangeTopicsAdded     ChangeReason = "topics_added"
	ChangeTopicsDeleted   ChangeReason = "topics_deleted"
	ChangeConfigAdded     ChangeReason = "config_added"
	ChangeConfigUpdated   ChangeReason = "config_updated"
	ChangeConfigDeleted   ChangeReason = "config_deleted"
	ChangeConfigsCleared  ChangeReason = "configs_cleared"
	ChangeQuestionsAdded  ChangeReason = "questions_added"
	ChangeQuestionsEdited ChangeReason = "questions_edited"
	ChangeLabelsUpdated   ChangeReason = "labels_updated"
)

// EventSessionChanged is published after a mutation of a session's aggregate
// succeeded, so other viewers of the session can refetch.
type EventSessionChanged struct {
	SessionID string       `json:"sessionId"`
	UserID    string       `json:"userId"`
	Reason    ChangeReason `json:"reason"`
}

func (EventSessionChanged) Name() string { return EventNameSessionChanged }
