package accounts

import (
	"context"

	"github.com/DoyleJ11/trivia-backend/pkg/types"
)

// call enqueues msg and waits for its reply. A cancelled ctx abandons the wait, but a
// message already enqueued is still applied; replies are buffered so the loop never
// blocks on an abandoned caller.
func call[T any](ctx context.Context, t *Table, msg tableMsg, reply chan T) (T, error) {
	var zero T
	select {
	case t.inbox <- msg:
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-t.done:
		return zero, ErrClosed
	}

	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-t.done:
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrClosed
		}
	}
}

func unwrap[T any](r result[T], err error) (T, error) {
	if err != nil {
		return r.val, err
	}
	return r.val, r.err
}

func (t *Table) FindByCredentials(ctx context.Context, username, password string) (Account, error) {
	reply := make(chan result[Account], 1)
	return unwrap(call(ctx, t, findByCredentials{Username: username, Password: password, Reply: reply}, reply))
}

// BindSession marks the account as logged in on connectionID.
func (t *Table) BindSession(ctx context.Context, accountID int, connectionID string) error {
	reply := make(chan error, 1)
	err, callErr := call(ctx, t, bindSession{AccountID: accountID, ConnectionID: connectionID, Reply: reply}, reply)
	if callErr != nil {
		return callErr
	}
	return err
}

// UnbindSession clears the binding held by connectionID, if any. It is idempotent.
func (t *Table) UnbindSession(ctx context.Context, connectionID string) error {
	reply := make(chan struct{}, 1)
	_, err := call(ctx, t, unbindSession{ConnectionID: connectionID, Reply: reply}, reply)
	return err
}

// Login checks credentials, the existing binding and the role, then binds, as one
// step. Failures are reported in that order: ErrBadCredentials, ErrAlreadyLoggedIn,
// ErrRoleMismatch.
func (t *Table) Login(ctx context.Context, username, password string, role types.Role, connectionID string) (Account, error) {
	reply := make(chan result[Account], 1)
	return unwrap(call(ctx, t, login{
		Username:     username,
		Password:     password,
		Role:         role,
		ConnectionID: connectionID,
		Reply:        reply,
	}, reply))
}

// Register creates a Player account.
func (t *Table) Register(ctx context.Context, username, password string) (int, error) {
	reply := make(chan result[int], 1)
	return unwrap(call(ctx, t, register{Username: username, Password: password, Reply: reply}, reply))
}

func (t *Table) RecordAnswer(ctx context.Context, accountID int, correct bool) (AnswerResult, error) {
	reply := make(chan result[AnswerResult], 1)
	return unwrap(call(ctx, t, recordAnswer{AccountID: accountID, Correct: correct, Reply: reply}, reply))
}

// TopScores returns at most n accounts by descending score, ties by ascending id.
func (t *Table) TopScores(ctx context.Context, n int) ([]Account, error) {
	reply := make(chan []Account, 1)
	return call(ctx, t, topScores{N: n, Reply: reply}, reply)
}

func (t *Table) Get(ctx context.Context, id int) (Account, error) {
	reply := make(chan result[Account], 1)
	return unwrap(call(ctx, t, getAccount{ID: id, Reply: reply}, reply))
}

// LoggedIn returns the usernames with a bound session, sorted.
func (t *Table) LoggedIn(ctx context.Context) ([]string, error) {
	reply := make(chan []string, 1)
	return call(ctx, t, loggedIn{Reply: reply}, reply)
}

// Snapshot returns a copy of every account ordered by id.
func (t *Table) Snapshot(ctx context.Context) ([]Account, error) {
	reply := make(chan []Account, 1)
	return call(ctx, t, snapshot{Reply: reply}, reply)
}
