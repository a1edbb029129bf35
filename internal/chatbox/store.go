package chatbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meganet/portal/internal/db"
)

// Store persists topics and questions.
type Store struct {
	db *db.DB
}

// NewStore creates a new chatbox store.
func NewStore(d *db.DB) *Store {
	return &Store{db: d}
}

var (
	// errDuplicate is returned when a unique column already holds the value.
	errDuplicate = errors.New("duplicate value")
	// errHasSteps is returned when a question still owns flow steps.
	errHasSteps = errors.New("question has flow steps")
)

// ListTopics returns all topics, newest first.
func (s *Store) ListTopics(ctx context.Context) ([]Topic, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT topic_id, topic_name, created_by_user_id, created_at
		 FROM chatbox_topics ORDER BY created_at DESC, topic_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing topics: %w", err)
	}
	defer rows.Close()

	topics := []Topic{}
	for rows.Next() {
		var (
			t    Topic
			user sql.NullInt64
		)
		if err := rows.Scan(&t.TopicID, &t.TopicName, &user, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning topic: %w", err)
		}
		t.CreatedByUserID = idPtr(user)
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// GetTopic retrieves a topic by id.
func (s *Store) GetTopic(ctx context.Context, topicID int64) (*Topic, error) {
	var (
		t    Topic
		user sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT topic_id, topic_name, created_by_user_id, created_at FROM chatbox_topics WHERE topic_id = ?`, topicID,
	).Scan(&t.TopicID, &t.TopicName, &user, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("getting topic %d: %w", topicID, err)
	}
	t.CreatedByUserID = idPtr(user)
	return &t, nil
}

// CreateTopic inserts a topic. Returns errDuplicate when the name is taken.
func (s *Store) CreateTopic(ctx context.Context, name string, userID int64) (*Topic, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chatbox_topics (topic_name, created_by_user_id, created_at) VALUES (?, ?, ?)`,
		name, userID, time.Now().UTC(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, errDuplicate
		}
		return nil, fmt.Errorf("creating topic: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading topic id: %w", err)
	}
	return s.GetTopic(ctx, id)
}

// DeleteTopic removes a topic. Returns sql.ErrNoRows when it does not exist.
func (s *Store) DeleteTopic(ctx context.Context, topicID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chatbox_topics WHERE topic_id = ?`, topicID)
	if err != nil {
		return fmt.Errorf("deleting topic: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountQuestions returns how many questions a topic owns.
func (s *Store) CountQuestions(ctx context.Context, topicID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chatbox_questions WHERE topic_id = ?`, topicID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting questions: %w", err)
	}
	return n, nil
}

const questionColumns = `question_id, topic_id, question_text, answer_text, created_by_user_id, created_at, updated_at`

// ListQuestions returns the questions of a topic, newest first.
func (s *Store) ListQuestions(ctx context.Context, topicID int64) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM chatbox_questions WHERE topic_id = ? ORDER BY created_at DESC, question_id DESC`, topicID)
	if err != nil {
		return nil, fmt.Errorf("listing questions: %w", err)
	}
	defer rows.Close()

	questions := []Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning question: %w", err)
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

// GetQuestion retrieves a question by id.
func (s *Store) GetQuestion(ctx context.Context, questionID int64) (*Question, error) {
	q, err := scanQuestion(s.db.QueryRowContext(ctx,
		`SELECT `+questionColumns+` FROM chatbox_questions WHERE question_id = ?`, questionID))
	if err != nil {
		return nil, fmt.Errorf("getting question %d: %w", questionID, err)
	}
	return q, nil
}

// QuestionExists reports whether a question with the given id exists.
func (s *Store) QuestionExists(ctx context.Context, questionID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chatbox_questions WHERE question_id = ?`, questionID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking question: %w", err)
	}
	return n > 0, nil
}

// CreateQuestion inserts a question.
func (s *Store) CreateQuestion(ctx context.Context, in QuestionInput, userID int64) (*Question, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chatbox_questions (topic_id, question_text, answer_text, created_by_user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		in.TopicID, in.Question, in.Answer, userID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating question: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading question id: %w", err)
	}
	return s.GetQuestion(ctx, id)
}

// UpdateQuestion replaces the text and answer of a question. Returns
// sql.ErrNoRows when it does not exist.
func (s *Store) UpdateQuestion(ctx context.Context, questionID int64, question, answer string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chatbox_questions SET question_text = ?, answer_text = ?, updated_at = ? WHERE question_id = ?`,
		question, answer, time.Now().UTC(), questionID,
	)
	if err != nil {
		return fmt.Errorf("updating question: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteQuestion removes a question that owns no flow steps. The step
// check and the delete are one statement, so a step inserted concurrently
// either blocks the delete or is never orphaned by it. Returns errHasSteps
// when steps remain and sql.ErrNoRows when the question does not exist.
func (s *Store) DeleteQuestion(ctx context.Context, questionID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM chatbox_questions
		 WHERE question_id = ?
		   AND NOT EXISTS (SELECT 1 FROM chatbox_flow_steps WHERE question_id = ?)`,
		questionID, questionID)
	if err != nil {
		return fmt.Errorf("deleting question: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	exists, err := s.QuestionExists(ctx, questionID)
	if err != nil {
		return err
	}
	if exists {
		return errHasSteps
	}
	return sql.ErrNoRows
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuestion(sc scanner) (*Question, error) {
	var (
		q    Question
		user sql.NullInt64
	)
	if err := sc.Scan(&q.QuestionID, &q.TopicID, &q.Question, &q.Answer, &user, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return nil, err
	}
	q.CreatedByUserID = idPtr(user)
	return &q, nil
}

func idPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}
