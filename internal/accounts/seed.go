package accounts

import (
	"context"

	"github.com/DoyleJ11/trivia-backend/pkg/types"
)

// Store persists accounts between runs. It is used at startup and shutdown only.
type Store interface {
	LoadAccounts(ctx context.Context) ([]Account, error)
	SaveAccounts(ctx context.Context, accts []Account) error
}

// Save writes a snapshot of every account in t to st.
func Save(ctx context.Context, t *Table, st Store) (int, error) {
	snap, err := t.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return len(snap), st.SaveAccounts(ctx, snap)
}

// EnsureManager returns seed with a manager account named username. An existing
// account of that name is promoted and its password replaced; otherwise a new one
// is appended with the next free id.
func EnsureManager(seed []Account, username, password string) []Account {
	out := append([]Account(nil), seed...)
	nextID := 1
	for i := range out {
		if out[i].Username == username {
			out[i].Role = types.RoleManager
			out[i].Password = password
			return out
		}
		nextID = max(nextID, out[i].ID+1)
	}
	return append(out, Account{ID: nextID, Username: username, Password: password, Role: types.RoleManager})
}
