package audit

import "time"

// Action describes what was done.
type Action string

const (
	ActionStepCreated     Action = "step_created"
	ActionStepUpdated     Action = "step_updated"
	ActionStepDeleted     Action = "step_deleted"
	ActionTopicCreated    Action = "topic_created"
	ActionTopicDeleted    Action = "topic_deleted"
	ActionQuestionCreated Action = "question_created"
	ActionQuestionUpdated Action = "question_updated"
	ActionQuestionDeleted Action = "question_deleted"
)

// Scope names the kind of record an action touched.
type Scope string

const (
	ScopeStep     Scope = "step"
	ScopeTopic    Scope = "topic"
	ScopeQuestion Scope = "question"
)

// Entry is a single audit trail record. PreviousValue and NewValue hold
// JSON snapshots of the record before and after the change.
type Entry struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	ActorID       string    `json:"actor_id"`
	ActorRole     string    `json:"actor_role"`
	Action        Action    `json:"action"`
	Scope         Scope     `json:"scope"`
	ScopeID       string    `json:"scope_id"`
	Summary       string    `json:"summary"`
	PreviousValue string    `json:"previous_value,omitempty"`
	NewValue      string    `json:"new_value,omitempty"`
}
