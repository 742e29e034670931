package accounts

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/trivia-backend/pkg/types"
)

func newTestTable(t *testing.T, seed ...Account) *Table {
	t.Helper()
	tbl, err := NewTable(context.Background(), seed)
	require.NoError(t, err)
	t.Cleanup(tbl.Close)
	return tbl
}

func seedAccounts() []Account {
	return []Account{
		{ID: 1, Username: "alice", Password: "pw1", Role: types.RolePlayer},
		{ID: 2, Username: "bob", Password: "pw2", Role: types.RolePlayer},
		{ID: 3, Username: "boss", Password: "pw3", Role: types.RoleManager},
	}
}

func TestNewTable_RejectsDuplicates(t *testing.T) {
	_, err := NewTable(context.Background(), []Account{{ID: 1, Username: "a"}, {ID: 1, Username: "b"}})
	require.ErrorIs(t, err, ErrInvalidAccount)

	_, err = NewTable(context.Background(), []Account{{ID: 1, Username: "a"}, {ID: 2, Username: "a"}})
	require.ErrorIs(t, err, ErrInvalidAccount)
}

func TestNewTable_ClearsSeededSessions(t *testing.T) {
	tbl := newTestTable(t, Account{ID: 1, Username: "alice", Password: "pw", SessionID: "stale"})
	ctx := context.Background()

	users, err := tbl.LoggedIn(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	require.NoError(t, tbl.BindSession(ctx, 1, "conn-1"))
}

func TestFindByCredentials(t *testing.T) {
	tbl := newTestTable(t, seedAccounts()...)
	ctx := context.Background()

	a, err := tbl.FindByCredentials(ctx, "bob", "pw2")
	require.NoError(t, err)
	assert.Equal(t, 2, a.ID)

	_, err = tbl.FindByCredentials(ctx, "bob", "nope")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = tbl.FindByCredentials(ctx, "carol", "pw2")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBindAndUnbindSession(t *testing.T) {
	tbl := newTestTable(t, seedAccounts()...)
	ctx := context.Background()

	require.NoError(t, tbl.BindSession(ctx, 1, "c1"))
	require.ErrorIs(t, tbl.BindSession(ctx, 1, "c2"), ErrAlreadyLoggedIn)

	require.NoError(t, tbl.UnbindSession(ctx, "c1"))
	require.NoError(t, tbl.UnbindSession(ctx, "c1"))
	require.NoError(t, tbl.UnbindSession(ctx, "never-bound"))

	require.NoError(t, tbl.BindSession(ctx, 1, "c2"))
	a, err := tbl.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "c2", a.SessionID)
}

func TestLogin_FailurePrecedence(t *testing.T) {
	tbl := newTestTable(t, seedAccounts()...)
	ctx := context.Background()

	_, err := tbl.Login(ctx, "boss", "pw3", types.RoleManager, "manager-conn")
	require.NoError(t, err)

	cases := []struct {
		name     string
		username string
		password string
		role     types.Role
		want     error
	}{
		{name: "unknown user", username: "zed", password: "x", role: types.RolePlayer, want: ErrBadCredentials},
		{name: "wrong password beats everything", username: "boss", password: "bad", role: types.RolePlayer, want: ErrBadCredentials},
		{name: "already logged in beats role mismatch", username: "boss", password: "pw3", role: types.RolePlayer, want: ErrAlreadyLoggedIn},
		{name: "role mismatch", username: "alice", password: "pw1", role: types.RoleManager, want: ErrRoleMismatch},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tbl.Login(ctx, tc.username, tc.password, tc.role, "other-conn")
			require.ErrorIs(t, err, tc.want)
		})
	}

	users, err := tbl.LoggedIn(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"boss"}, users)
}

func TestLogin_ConcurrentSameAccount_ExactlyOneWins(t *testing.T) {
	tbl := newTestTable(t, seedAccounts()...)
	ctx := context.Background()

	const attempts = 16
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := tbl.Login(ctx, "alice", "pw1", types.RolePlayer, fmt.Sprintf("conn-%d", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, ErrAlreadyLoggedIn)
	}
	assert.Equal(t, 1, wins)
}

func TestRegister(t *testing.T) {
	tbl := newTestTable(t, seedAccounts()...)
	ctx := context.Background()

	id, err := tbl.Register(ctx, "carol", "pw")
	require.NoError(t, err)
	assert.Equal(t, 4, id)

	a, err := tbl.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.RolePlayer, a.Role)
	assert.Equal(t, 0, a.Score)

	_, err = tbl.Register(ctx, "carol", "other")
	require.ErrorIs(t, err, ErrUsernameTaken)

	_, err = tbl.Register(ctx, "", "pw")
	require.ErrorIs(t, err, ErrInvalidAccount)

	_, err = tbl.Register(ctx, "da#ve", "pw")
	require.ErrorIs(t, err, ErrInvalidAccount)
}

func TestRegister_UsernameLength(t *testing.T) {
	cases := []struct {
		name    string
		length  int
		wantErr bool
	}{
		{name: "at limit", length: MaxUsernameLength},
		{name: "one over", length: MaxUsernameLength + 1, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tbl := newTestTable(t)
			_, err := tbl.Register(context.Background(), strings.Repeat("u", tc.length), "pw")
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidAccount)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNewTable_RejectsOverlongUsername(t *testing.T) {
	_, err := NewTable(context.Background(), []Account{{ID: 1, Username: strings.Repeat("u", MaxUsernameLength+1), Password: "pw"}})
	require.ErrorIs(t, err, ErrInvalidAccount)
}

func TestRecordAnswer(t *testing.T) {
	tbl := newTestTable(t, seedAccounts()...)
	ctx := context.Background()

	res, err := tbl.RecordAnswer(ctx, 1, true)
	require.NoError(t, err)
	assert.Equal(t, AnswerResult{Score: 5, WinStreak: 1}, res)

	res, err = tbl.RecordAnswer(ctx, 1, true)
	require.NoError(t, err)
	assert.Equal(t, AnswerResult{Score: 10, WinStreak: 2}, res)

	res, err = tbl.RecordAnswer(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, AnswerResult{Score: 10, WinStreak: 0}, res)

	a, err := tbl.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, a.GamesPlayed)

	_, err = tbl.RecordAnswer(ctx, 99, true)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRecordAnswer_ConcurrentUpdatesAreSerialized(t *testing.T) {
	tbl := newTestTable(t, seedAccounts()...)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tbl.RecordAnswer(ctx, 2, true)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	a, err := tbl.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 500, a.Score)
	assert.Equal(t, 100, a.GamesPlayed)
	assert.Equal(t, 100, a.WinStreak)
}

func TestTopScores_TiesByAscendingID(t *testing.T) {
	tbl := newTestTable(t,
		Account{ID: 1, Username: "one", Score: 10},
		Account{ID: 2, Username: "two", Score: 30},
		Account{ID: 3, Username: "three", Score: 30},
		Account{ID: 4, Username: "four", Score: 5},
	)

	top, err := tbl.TopScores(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, top, 3)

	got := [][2]int{}
	for _, a := range top {
		got = append(got, [2]int{a.ID, a.Score})
	}
	assert.Equal(t, [][2]int{{2, 30}, {3, 30}, {1, 10}}, got)
}

func TestSnapshot_OrderedByID(t *testing.T) {
	tbl := newTestTable(t, seedAccounts()...)
	ctx := context.Background()
	_, err := tbl.Register(ctx, "carol", "pw")
	require.NoError(t, err)

	all, err := tbl.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, a := range all {
		assert.Equal(t, i+1, a.ID)
	}
}

func TestClosedTable(t *testing.T) {
	tbl, err := NewTable(context.Background(), seedAccounts())
	require.NoError(t, err)
	tbl.Close()

	_, err = tbl.Get(context.Background(), 1)
	require.ErrorIs(t, err, ErrClosed)
}

func TestCancelledContext(t *testing.T) {
	tbl := newTestTable(t, seedAccounts()...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Either the send wins the race against ctx.Done or it doesn't; both are fine,
	// but a cancelled caller must never block.
	_, _ = tbl.Get(ctx, 1)
}

func TestEnsureManager(t *testing.T) {
	seed := seedAccounts()

	out := EnsureManager(seed, "root", "toor")
	require.Len(t, out, 4)
	assert.Equal(t, Account{ID: 4, Username: "root", Password: "toor", Role: types.RoleManager}, out[3])
	assert.Len(t, seed, 3, "input is not modified")

	out = EnsureManager(seed, "bob", "new")
	require.Len(t, out, 3)
	assert.Equal(t, types.RoleManager, out[1].Role)
	assert.Equal(t, "new", out[1].Password)
	assert.Equal(t, types.RolePlayer, seed[1].Role)

	out = EnsureManager(nil, "root", "toor")
	assert.Equal(t, []Account{{ID: 1, Username: "root", Password: "toor", Role: types.RoleManager}}, out)
}

type memStore struct {
	saved []Account
}

func (m *memStore) LoadAccounts(context.Context) ([]Account, error) { return m.saved, nil }

func (m *memStore) SaveAccounts(_ context.Context, accts []Account) error {
	m.saved = accts
	return nil
}

func TestSave_WritesSnapshotWithoutSessions(t *testing.T) {
	tbl := newTestTable(t, seedAccounts()...)
	ctx := context.Background()
	_, err := tbl.Login(ctx, "alice", "pw1", types.RolePlayer, "c1")
	require.NoError(t, err)

	st := &memStore{}
	n, err := Save(ctx, tbl, st)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, st.saved, 3)
	assert.Equal(t, "alice", st.saved[0].Username)

	reloaded, err := st.LoadAccounts(ctx)
	require.NoError(t, err)
	again := newTestTable(t, reloaded...)
	_, err = again.Login(ctx, "alice", "pw1", types.RolePlayer, "c2")
	require.NoError(t, err, "sessions are not restored")
}
