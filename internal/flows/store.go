package flows

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/meganet/portal/internal/db"
)

// Store persists flow steps.
type Store struct {
	db *db.DB
}

// NewStore creates a new flow step store.
func NewStore(d *db.DB) *Store {
	return &Store{db: d}
}

const stepColumns = `step_id, question_id, step_text, yes_next_step, no_next_step, is_final, created_at`

// Insert stores a new step and returns its id.
func (s *Store) Insert(ctx context.Context, in StepInput) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chatbox_flow_steps (question_id, step_text, yes_next_step, no_next_step, is_final, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		in.QuestionID, in.StepText, nullID(in.YesNextStep), nullID(in.NoNextStep), boolInt(in.IsFinal), time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting flow step: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading flow step id: %w", err)
	}
	return id, nil
}

// Get retrieves a step by id. The error wraps sql.ErrNoRows when it does
// not exist.
func (s *Store) Get(ctx context.Context, stepID int64) (*Step, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+stepColumns+` FROM chatbox_flow_steps WHERE step_id = ?`, stepID)
	st, err := scanStep(row)
	if err != nil {
		return nil, fmt.Errorf("getting flow step %d: %w", stepID, err)
	}
	return st, nil
}

// First returns the lowest-id step of a question.
func (s *Store) First(ctx context.Context, questionID int64) (*Step, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+stepColumns+` FROM chatbox_flow_steps WHERE question_id = ? ORDER BY step_id ASC LIMIT 1`, questionID)
	st, err := scanStep(row)
	if err != nil {
		return nil, fmt.Errorf("getting first step of question %d: %w", questionID, err)
	}
	return st, nil
}

// List returns all steps of a question in ascending id order.
func (s *Store) List(ctx context.Context, questionID int64) ([]Step, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM chatbox_flow_steps WHERE question_id = ? ORDER BY step_id ASC`, questionID)
	if err != nil {
		return nil, fmt.Errorf("listing flow steps: %w", err)
	}
	defer rows.Close()

	steps := []Step{}
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning flow step: %w", err)
		}
		steps = append(steps, *st)
	}
	return steps, rows.Err()
}

// CountForQuestion returns how many steps a question owns.
func (s *Store) CountForQuestion(ctx context.Context, questionID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chatbox_flow_steps WHERE question_id = ?`, questionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting flow steps: %w", err)
	}
	return n, nil
}

// Update replaces the text, both pointers and the final flag of a step.
// The question and creation time are immutable. Returns sql.ErrNoRows when
// the step does not exist.
func (s *Store) Update(ctx context.Context, stepID int64, in StepInput) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chatbox_flow_steps SET step_text = ?, yes_next_step = ?, no_next_step = ?, is_final = ? WHERE step_id = ?`,
		in.StepText, nullID(in.YesNextStep), nullID(in.NoNextStep), boolInt(in.IsFinal), stepID,
	)
	if err != nil {
		return fmt.Errorf("updating flow step: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating flow step: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a step and clears every yes/no pointer that referenced it
// in one transaction. It returns the removed step and the ids of the steps
// whose pointers were cleared. Returns sql.ErrNoRows when the step does not
// exist.
func (s *Store) Delete(ctx context.Context, stepID int64) (*Step, []int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	removed, err := scanStep(tx.QueryRowContext(ctx,
		`SELECT `+stepColumns+` FROM chatbox_flow_steps WHERE step_id = ?`, stepID))
	if err != nil {
		return nil, nil, err
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT step_id FROM chatbox_flow_steps
		 WHERE (yes_next_step = ? OR no_next_step = ?) AND step_id != ?
		 ORDER BY step_id`, stepID, stepID, stepID)
	if err != nil {
		return nil, nil, fmt.Errorf("finding referencing steps: %w", err)
	}
	cleared := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("scanning referencing step: %w", err)
		}
		cleared = append(cleared, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("finding referencing steps: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE chatbox_flow_steps SET yes_next_step = NULL WHERE yes_next_step = ?`, stepID); err != nil {
		return nil, nil, fmt.Errorf("clearing yes pointers: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE chatbox_flow_steps SET no_next_step = NULL WHERE no_next_step = ?`, stepID); err != nil {
		return nil, nil, fmt.Errorf("clearing no pointers: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chatbox_flow_steps WHERE step_id = ?`, stepID); err != nil {
		return nil, nil, fmt.Errorf("deleting flow step: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing delete: %w", err)
	}
	return removed, cleared, nil
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanStep(sc scanner) (*Step, error) {
	var (
		st      Step
		yes, no sql.NullInt64
		final   int64
	)
	if err := sc.Scan(&st.StepID, &st.QuestionID, &st.StepText, &yes, &no, &final, &st.CreatedAt); err != nil {
		return nil, err
	}
	if yes.Valid {
		st.YesNextStep = &yes.Int64
	}
	if no.Valid {
		st.NoNextStep = &no.Int64
	}
	st.IsFinal = final != 0
	return &st, nil
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
