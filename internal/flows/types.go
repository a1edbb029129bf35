package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meganet/portal/internal/audit"
)

// Step is one node of a question's guided yes/no flow. A nil pointer means
// the branch ends the flow.
type Step struct {
	StepID      int64     `json:"step_id"`
	QuestionID  int64     `json:"question_id"`
	StepText    string    `json:"step_text"`
	YesNextStep *int64    `json:"yes_next_step"`
	NoNextStep  *int64    `json:"no_next_step"`
	IsFinal     bool      `json:"is_final"`
	CreatedAt   time.Time `json:"created_at"`
}

// Target returns the pointer followed for the given branch.
func (s *Step) Target(c Choice) *int64 {
	if c == ChoiceYes {
		return s.YesNextStep
	}
	return s.NoNextStep
}

// StepInput carries the author-supplied fields of a create or update.
type StepInput struct {
	QuestionID  int64
	StepText    string
	YesNextStep *int64
	NoNextStep  *int64
	IsFinal     bool
}

// Choice is the answer given at a step.
type Choice string

const (
	ChoiceYes Choice = "yes"
	ChoiceNo  Choice = "no"
)

// ParseChoice accepts "yes" or "no" in any case, ignoring surrounding space.
func ParseChoice(s string) (Choice, error) {
	switch c := Choice(strings.ToLower(strings.TrimSpace(s))); c {
	case ChoiceYes, ChoiceNo:
		return c, nil
	}
	return "", fmt.Errorf("%w: choice must be \"yes\" or \"no\", got %q", ErrValidation, s)
}

// NextResult is the outcome of advancing from a step. When End is true the
// chosen branch had no successor and Step is the step the caller was on.
type NextResult struct {
	Step *Step `json:"step"`
	End  bool  `json:"end"`
}

// DeleteResult acknowledges a step deletion.
type DeleteResult struct {
	Message           string  `json:"message"`
	StepID            int64   `json:"step_id"`
	ClearedReferences []int64 `json:"cleared_references"`
}

// Error classes. Callers wrap them with detail and the HTTP boundary maps
// them to status codes via errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

// QuestionRegistry reports whether a question exists.
type QuestionRegistry interface {
	QuestionExists(ctx context.Context, questionID int64) (bool, error)
}

// StepCache is a read-through cache of steps keyed by step id. Each key has
// a version that Delete advances. A fill reads the version before loading
// the step and SetIfVersion stores it only if no Delete happened since, so a
// step read before an authoring write is never cached after it.
type StepCache interface {
	Get(ctx context.Context, key string) (*Step, bool, error)
	Version(ctx context.Context, key string) (int64, error)
	SetIfVersion(ctx context.Context, key string, s *Step, version int64) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// Auditor records authoring changes.
type Auditor interface {
	Record(ctx context.Context, actorID, actorRole string, action audit.Action, scope audit.Scope, scopeID, summary string, before, after any) error
}

// Observer receives traversal, authoring and cache outcomes for metrics.
type Observer interface {
	ObserveTraversal(outcome string)
	ObserveAuthoring(op, result string)
	ObserveCache(result string)
}

type nopObserver struct{}

func (nopObserver) ObserveTraversal(string)         {}
func (nopObserver) ObserveAuthoring(string, string) {}
func (nopObserver) ObserveCache(string)             {}
