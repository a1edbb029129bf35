package flows

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Engine walks guided flows. It keeps no session state: callers hold the
// id of the step they are on and pass it back with their answer.
type Engine struct {
	store *Store
	options
}

// NewEngine creates a traversal engine over store.
func NewEngine(store *Store, opts ...Option) *Engine {
	return &Engine{store: store, options: buildOptions(opts)}
}

// Start returns the entry step of a question's flow, the step with the
// lowest id.
func (e *Engine) Start(ctx context.Context, questionID int64) (*Step, error) {
	st, err := e.store.First(ctx, questionID)
	if errors.Is(err, sql.ErrNoRows) {
		e.observer.ObserveTraversal("not_found")
		return nil, fmt.Errorf("%w: no guided flow defined for this question", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	e.observer.ObserveTraversal("start")
	return st, nil
}

// Next follows the branch of stepID selected by choice. A branch without a
// successor ends the flow and returns the current step with End set. The
// is_final flag is informational and never ends traversal on its own.
func (e *Engine) Next(ctx context.Context, stepID int64, choice string) (*NextResult, error) {
	c, err := ParseChoice(choice)
	if err != nil {
		e.observer.ObserveTraversal("invalid_choice")
		return nil, err
	}

	current, err := e.step(ctx, stepID)
	if errors.Is(err, sql.ErrNoRows) {
		e.observer.ObserveTraversal("not_found")
		return nil, fmt.Errorf("%w: step %d not found", ErrNotFound, stepID)
	}
	if err != nil {
		return nil, err
	}

	target := current.Target(c)
	if target == nil {
		e.observer.ObserveTraversal("end")
		return &NextResult{Step: current, End: true}, nil
	}

	next, err := e.step(ctx, *target)
	if errors.Is(err, sql.ErrNoRows) {
		e.observer.ObserveTraversal("dangling")
		e.log.Warn("dangling flow pointer", "step_id", stepID, "branch", c, "target", *target)
		return nil, fmt.Errorf("%w: next step %d not found", ErrNotFound, *target)
	}
	if err != nil {
		return nil, err
	}
	e.observer.ObserveTraversal("advance")
	return &NextResult{Step: next, End: false}, nil
}

// step loads a step through the cache when one is configured. Cache
// failures are logged and the store answers instead.
func (e *Engine) step(ctx context.Context, id int64) (*Step, error) {
	if e.cache == nil {
		return e.store.Get(ctx, id)
	}

	key := cacheKey(id)
	st, ok, err := e.cache.Get(ctx, key)
	switch {
	case err != nil:
		e.observer.ObserveCache("error")
		e.log.Warn("step cache read failed", "key", key, "err", err)
	case ok:
		e.observer.ObserveCache("hit")
		return st, nil
	default:
		e.observer.ObserveCache("miss")
	}

	// The version must be read before the store.
	version, verr := e.cache.Version(ctx, key)
	st, err = e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if verr != nil {
		e.log.Warn("step cache fill skipped", "key", key, "err", verr)
		return st, nil
	}
	stored, err := e.cache.SetIfVersion(ctx, key, st, version)
	switch {
	case err != nil:
		e.log.Warn("step cache write failed", "key", key, "err", err)
	case !stored:
		e.log.Debug("step changed during cache fill", "key", key)
	}
	return st, nil
}
