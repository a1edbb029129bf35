package chatbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/meganet/portal/internal/audit"
	"github.com/meganet/portal/internal/authz"
	"github.com/meganet/portal/internal/flows"
	"github.com/meganet/portal/internal/logging"
)

// Registry manages chatbox topics and questions. Reads are open; every
// write requires the admin role.
type Registry struct {
	store   *Store
	policy  authz.Policy
	auditor flows.Auditor
	log     *logging.Logger
}

// NewRegistry creates a registry. auditor may be nil.
func NewRegistry(store *Store, policy authz.Policy, auditor flows.Auditor, log *logging.Logger) *Registry {
	if log == nil {
		log = logging.NewNop()
	}
	return &Registry{store: store, policy: policy, auditor: auditor, log: log}
}

// QuestionExists reports whether a question exists.
func (g *Registry) QuestionExists(ctx context.Context, questionID int64) (bool, error) {
	return g.store.QuestionExists(ctx, questionID)
}

// ListTopics returns all topics, newest first.
func (g *Registry) ListTopics(ctx context.Context) ([]Topic, error) {
	return g.store.ListTopics(ctx)
}

// CreateTopic adds a topic with a unique name.
func (g *Registry) CreateTopic(ctx context.Context, caller authz.Caller, name string) (*Topic, error) {
	if err := g.requireAdmin(caller); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	userID, err := parseUserID(caller.UserID)
	if name == "" || err != nil {
		return nil, fmt.Errorf("%w: topic_name and user_id are required", flows.ErrValidation)
	}

	t, err := g.store.CreateTopic(ctx, name, userID)
	if errors.Is(err, errDuplicate) {
		return nil, fmt.Errorf("%w: topic %q already exists", flows.ErrConflict, name)
	}
	if err != nil {
		return nil, err
	}
	g.record(ctx, caller, audit.ActionTopicCreated, audit.ScopeTopic, t.TopicID, "created topic "+t.TopicName, nil, t)
	return t, nil
}

// DeleteTopic removes a topic that owns no questions.
func (g *Registry) DeleteTopic(ctx context.Context, caller authz.Caller, topicID int64) error {
	if err := g.requireAdmin(caller); err != nil {
		return err
	}
	t, err := g.store.GetTopic(ctx, topicID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: topic %d not found", flows.ErrNotFound, topicID)
	}
	if err != nil {
		return err
	}
	n, err := g.store.CountQuestions(ctx, topicID)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: topic %d still has %d questions", flows.ErrConflict, topicID, n)
	}
	if err := g.store.DeleteTopic(ctx, topicID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: topic %d not found", flows.ErrNotFound, topicID)
		}
		return err
	}
	g.record(ctx, caller, audit.ActionTopicDeleted, audit.ScopeTopic, topicID, "deleted topic "+t.TopicName, t, nil)
	return nil
}

// ListQuestions returns the questions of a topic with rendered answers.
func (g *Registry) ListQuestions(ctx context.Context, topicID int64) ([]Question, error) {
	questions, err := g.store.ListQuestions(ctx, topicID)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		if err := g.render(&questions[i]); err != nil {
			return nil, err
		}
	}
	return questions, nil
}

// CreateQuestion adds a question to an existing topic.
func (g *Registry) CreateQuestion(ctx context.Context, caller authz.Caller, in QuestionInput) (*Question, error) {
	if err := g.requireAdmin(caller); err != nil {
		return nil, err
	}
	in.Question = strings.TrimSpace(in.Question)
	in.Answer = strings.TrimSpace(in.Answer)
	userID, err := parseUserID(caller.UserID)
	if in.TopicID <= 0 || in.Question == "" || in.Answer == "" || err != nil {
		return nil, fmt.Errorf("%w: topic_id, question, answer and user_id are required", flows.ErrValidation)
	}
	if _, err := g.store.GetTopic(ctx, in.TopicID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: topic %d not found", flows.ErrNotFound, in.TopicID)
		}
		return nil, err
	}

	q, err := g.store.CreateQuestion(ctx, in, userID)
	if err != nil {
		return nil, err
	}
	if err := g.render(q); err != nil {
		return nil, err
	}
	g.record(ctx, caller, audit.ActionQuestionCreated, audit.ScopeQuestion, q.QuestionID, "created question "+strconv.FormatInt(q.QuestionID, 10), nil, q)
	return q, nil
}

// UpdateQuestion replaces the text and answer of a question.
func (g *Registry) UpdateQuestion(ctx context.Context, caller authz.Caller, questionID int64, question, answer string) (*Question, error) {
	if err := g.requireAdmin(caller); err != nil {
		return nil, err
	}
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return nil, fmt.Errorf("%w: question and answer are required", flows.ErrValidation)
	}

	before, err := g.store.GetQuestion(ctx, questionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: question %d not found", flows.ErrNotFound, questionID)
	}
	if err != nil {
		return nil, err
	}
	if err := g.store.UpdateQuestion(ctx, questionID, question, answer); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: question %d not found", flows.ErrNotFound, questionID)
		}
		return nil, err
	}
	q, err := g.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if err := g.render(q); err != nil {
		return nil, err
	}
	g.record(ctx, caller, audit.ActionQuestionUpdated, audit.ScopeQuestion, questionID, "updated question "+strconv.FormatInt(questionID, 10), before, q)
	return q, nil
}

// DeleteQuestion removes a question that owns no flow steps.
func (g *Registry) DeleteQuestion(ctx context.Context, caller authz.Caller, questionID int64) error {
	if err := g.requireAdmin(caller); err != nil {
		return err
	}
	before, err := g.store.GetQuestion(ctx, questionID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: question %d not found", flows.ErrNotFound, questionID)
	}
	if err != nil {
		return err
	}
	if err := g.store.DeleteQuestion(ctx, questionID); err != nil {
		switch {
		case errors.Is(err, errHasSteps):
			return fmt.Errorf("%w: question %d still has flow steps", flows.ErrConflict, questionID)
		case errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("%w: question %d not found", flows.ErrNotFound, questionID)
		}
		return err
	}
	g.record(ctx, caller, audit.ActionQuestionDeleted, audit.ScopeQuestion, questionID, "deleted question "+strconv.FormatInt(questionID, 10), before, nil)
	return nil
}

func (g *Registry) requireAdmin(caller authz.Caller) error {
	if !g.policy.IsAdmin(caller.RoleID) {
		return fmt.Errorf("%w: admin only", flows.ErrForbidden)
	}
	return nil
}

func (g *Registry) render(q *Question) error {
	html, err := RenderAnswer(q.Answer)
	if err != nil {
		return err
	}
	q.AnswerHTML = html
	return nil
}

func (g *Registry) record(ctx context.Context, caller authz.Caller, action audit.Action, scope audit.Scope, id int64, summary string, before, after any) {
	if g.auditor == nil {
		return
	}
	if err := g.auditor.Record(ctx, caller.UserID, caller.RoleID, action, scope, strconv.FormatInt(id, 10), summary, before, after); err != nil {
		g.log.Error("recording audit entry failed", "action", action, "id", id, "err", err)
	}
}

func parseUserID(raw string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
}
