package flows

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/meganet/portal/internal/audit"
	"github.com/meganet/portal/internal/authz"
)

// Service is the admin-gated authoring side of guided flows.
type Service struct {
	store     *Store
	policy    authz.Policy
	questions QuestionRegistry
	options
}

// NewService creates an authoring service. questions may be nil, in which
// case question existence is not checked.
func NewService(store *Store, policy authz.Policy, questions QuestionRegistry, opts ...Option) *Service {
	return &Service{
		store:     store,
		policy:    policy,
		questions: questions,
		options:   buildOptions(opts),
	}
}

// List returns the steps of a question in ascending id order.
func (s *Service) List(ctx context.Context, questionID int64) ([]Step, error) {
	return s.store.List(ctx, questionID)
}

// Report analyzes the flow graph of a question.
func (s *Service) Report(ctx context.Context, questionID int64) (*Report, error) {
	steps, err := s.store.List(ctx, questionID)
	if err != nil {
		return nil, err
	}
	return Analyze(questionID, steps), nil
}

// Create adds a step to a question's flow. The returned warning is
// non-empty when the question's flow now contains a cycle.
func (s *Service) Create(ctx context.Context, caller authz.Caller, in StepInput) (_ *Step, warning string, err error) {
	defer func() { s.observer.ObserveAuthoring("create", resultLabel(err)) }()

	if err := s.requireAdmin(caller); err != nil {
		return nil, "", err
	}
	in.StepText = strings.TrimSpace(in.StepText)
	if in.QuestionID <= 0 {
		return nil, "", fmt.Errorf("%w: question_id is required", ErrValidation)
	}
	if in.StepText == "" {
		return nil, "", fmt.Errorf("%w: step_text is required", ErrValidation)
	}
	if err := s.requireQuestion(ctx, in.QuestionID); err != nil {
		return nil, "", err
	}
	if err := s.checkPointers(ctx, in.QuestionID, 0, in); err != nil {
		return nil, "", err
	}

	id, err := s.store.Insert(ctx, in)
	if err != nil {
		return nil, "", err
	}
	created, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	s.record(ctx, caller, audit.ActionStepCreated, created.StepID,
		fmt.Sprintf("created step %d for question %d", created.StepID, created.QuestionID), nil, created)
	return created, s.cycleWarning(ctx, created.QuestionID), nil
}

// Update replaces the text, pointers and final flag of a step. The step
// stays attached to its question.
func (s *Service) Update(ctx context.Context, caller authz.Caller, stepID int64, in StepInput) (_ *Step, warning string, err error) {
	defer func() { s.observer.ObserveAuthoring("update", resultLabel(err)) }()

	if err := s.requireAdmin(caller); err != nil {
		return nil, "", err
	}
	in.StepText = strings.TrimSpace(in.StepText)
	if in.StepText == "" {
		return nil, "", fmt.Errorf("%w: step_text is required", ErrValidation)
	}

	before, err := s.store.Get(ctx, stepID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("%w: step %d not found", ErrNotFound, stepID)
	}
	if err != nil {
		return nil, "", err
	}
	in.QuestionID = before.QuestionID
	if err := s.checkPointers(ctx, before.QuestionID, stepID, in); err != nil {
		return nil, "", err
	}

	if err := s.store.Update(ctx, stepID, in); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", fmt.Errorf("%w: step %d not found", ErrNotFound, stepID)
		}
		return nil, "", err
	}
	s.invalidate(ctx, stepID)

	updated, err := s.store.Get(ctx, stepID)
	if err != nil {
		return nil, "", err
	}

	s.record(ctx, caller, audit.ActionStepUpdated, stepID,
		fmt.Sprintf("updated step %d", stepID), before, updated)
	return updated, s.cycleWarning(ctx, updated.QuestionID), nil
}

// Delete removes a step. Pointers in other steps that referenced it are
// cleared so traversal never reaches a missing step through them.
func (s *Service) Delete(ctx context.Context, caller authz.Caller, stepID int64) (_ *DeleteResult, err error) {
	defer func() { s.observer.ObserveAuthoring("delete", resultLabel(err)) }()

	if err := s.requireAdmin(caller); err != nil {
		return nil, err
	}

	removed, cleared, err := s.store.Delete(ctx, stepID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: step %d not found", ErrNotFound, stepID)
	}
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, append([]int64{stepID}, cleared...)...)

	if len(cleared) > 0 {
		s.log.Info("cleared references to deleted step", "step_id", stepID, "steps", cleared)
	}
	s.record(ctx, caller, audit.ActionStepDeleted, stepID,
		fmt.Sprintf("deleted step %d, cleared %d references", stepID, len(cleared)), removed, nil)

	return &DeleteResult{
		Message:           "flow step deleted",
		StepID:            stepID,
		ClearedReferences: cleared,
	}, nil
}

func (s *Service) requireAdmin(caller authz.Caller) error {
	if !s.policy.IsAdmin(caller.RoleID) {
		return fmt.Errorf("%w: admin only", ErrForbidden)
	}
	return nil
}

func (s *Service) requireQuestion(ctx context.Context, questionID int64) error {
	if s.questions == nil {
		return nil
	}
	ok, err := s.questions.QuestionExists(ctx, questionID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: question %d not found", ErrNotFound, questionID)
	}
	return nil
}

// checkPointers verifies that both branch targets exist and belong to
// questionID. selfID is the step being updated, which may point at itself.
func (s *Service) checkPointers(ctx context.Context, questionID, selfID int64, in StepInput) error {
	for _, p := range []struct {
		field  string
		target *int64
	}{
		{"yes_next_step", in.YesNextStep},
		{"no_next_step", in.NoNextStep},
	} {
		if p.target == nil {
			continue
		}
		t := *p.target
		if t <= 0 {
			return fmt.Errorf("%w: %s must be a positive step id", ErrValidation, p.field)
		}
		if t == selfID {
			continue
		}
		target, err := s.store.Get(ctx, t)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s %d does not exist", ErrValidation, p.field, t)
		}
		if err != nil {
			return err
		}
		if target.QuestionID != questionID {
			return fmt.Errorf("%w: %s %d belongs to question %d", ErrValidation, p.field, t, target.QuestionID)
		}
	}
	return nil
}

// cycleWarning describes the first cycle in a question's flow, or returns
// "" when there is none. Cycles are allowed; the warning is advisory.
func (s *Service) cycleWarning(ctx context.Context, questionID int64) string {
	steps, err := s.store.List(ctx, questionID)
	if err != nil {
		s.log.Warn("cycle check skipped", "question_id", questionID, "err", err)
		return ""
	}
	rep := Analyze(questionID, steps)
	if len(rep.Cycles) == 0 {
		return ""
	}
	warning := fmt.Sprintf("flow for question %d contains a cycle: %s", questionID, formatCycle(rep.Cycles[0]))
	s.log.Warn("flow contains a cycle", "question_id", questionID, "cycles", len(rep.Cycles))
	return warning
}

func (s *Service) invalidate(ctx context.Context, ids ...int64) {
	if s.cache == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.log.Warn("step cache invalidation failed", "keys", keys, "err", err)
	}
}

func (s *Service) record(ctx context.Context, caller authz.Caller, action audit.Action, stepID int64, summary string, before, after *Step) {
	if s.auditor == nil {
		return
	}
	var prev, next any
	if before != nil {
		prev = before
	}
	if after != nil {
		next = after
	}
	err := s.auditor.Record(ctx, caller.UserID, caller.RoleID, action, audit.ScopeStep,
		strconv.FormatInt(stepID, 10), summary, prev, next)
	if err != nil {
		s.log.Error("recording audit entry failed", "action", action, "step_id", stepID, "err", err)
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

func cacheKey(stepID int64) string {
	return strconv.FormatInt(stepID, 10)
}
