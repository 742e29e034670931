package accounts

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/DoyleJ11/trivia-backend/pkg/types"
)

var ErrNotFound = errors.New("account not found")
var ErrBadCredentials = errors.New("incorrect username or password")
var ErrAlreadyLoggedIn = errors.New("account already logged in")
var ErrRoleMismatch = errors.New("access denied for this role")
var ErrUsernameTaken = errors.New("username already registered")
var ErrInvalidAccount = errors.New("invalid account")
var ErrClosed = errors.New("account table closed")

const PointsPerCorrectAnswer = 5

// MaxUsernameLength keeps a full highscore or login listing well inside one frame.
const MaxUsernameLength = 64

type Account struct {
	ID          int
	Username    string
	Password    string
	Score       int
	Role        types.Role
	SessionID   string // empty when not logged in
	GamesPlayed int
	WinStreak   int
}

type AnswerResult struct {
	Score     int
	WinStreak int
}

type result[T any] struct {
	val T
	err error
}

type tableMsg interface{ isTableMsg() }

type findByCredentials struct {
	Username, Password string
	Reply              chan result[Account]
}

type bindSession struct {
	AccountID    int
	ConnectionID string
	Reply        chan error
}

type unbindSession struct {
	ConnectionID string
	Reply        chan struct{}
}

type login struct {
	Username, Password string
	Role               types.Role
	ConnectionID       string
	Reply              chan result[Account]
}

type register struct {
	Username, Password string
	Reply              chan result[int]
}

type recordAnswer struct {
	AccountID int
	Correct   bool
	Reply     chan result[AnswerResult]
}

type topScores struct {
	N     int
	Reply chan []Account
}

type getAccount struct {
	ID    int
	Reply chan result[Account]
}

type loggedIn struct {
	Reply chan []string
}

type snapshot struct {
	Reply chan []Account
}

func (findByCredentials) isTableMsg() {}
func (bindSession) isTableMsg()       {}
func (unbindSession) isTableMsg()     {}
func (login) isTableMsg()             {}
func (register) isTableMsg()          {}
func (recordAnswer) isTableMsg()      {}
func (topScores) isTableMsg()         {}
func (getAccount) isTableMsg()        {}
func (loggedIn) isTableMsg()          {}
func (snapshot) isTableMsg()          {}

// Table owns every account record. All reads and writes go through one goroutine,
// so each exported operation is atomic with respect to every other.
type Table struct {
	inbox     chan tableMsg
	accounts  map[int]*Account
	byName    map[string]int
	bySession map[string]int
	nextID    int
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewTable starts the table loop with the given accounts. Session bindings in seed
// are discarded.
func NewTable(parent context.Context, seed []Account) (*Table, error) {
	ctx, cancel := context.WithCancel(parent)
	t := &Table{
		inbox:     make(chan tableMsg, 64),
		accounts:  make(map[int]*Account, len(seed)),
		byName:    make(map[string]int, len(seed)),
		bySession: make(map[string]int),
		nextID:    1,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	for _, a := range seed {
		if _, dup := t.accounts[a.ID]; dup || a.ID <= 0 {
			cancel()
			return nil, fmt.Errorf("%w: duplicate or invalid id %d", ErrInvalidAccount, a.ID)
		}
		if _, dup := t.byName[a.Username]; dup {
			cancel()
			return nil, fmt.Errorf("%w: duplicate username %q", ErrInvalidAccount, a.Username)
		}
		if len(a.Username) > MaxUsernameLength {
			cancel()
			return nil, fmt.Errorf("%w: username of account %d is longer than %d bytes", ErrInvalidAccount, a.ID, MaxUsernameLength)
		}
		if a.Role != types.RoleManager {
			a.Role = types.RolePlayer
		}
		a.SessionID = ""
		t.accounts[a.ID] = &a
		t.byName[a.Username] = a.ID
		t.nextID = max(t.nextID, a.ID+1)
	}

	go t.loop()
	return t, nil
}

// Close stops the loop. Pending and later calls fail with ErrClosed.
func (t *Table) Close() {
	t.cancel()
	<-t.done
}

func (t *Table) loop() {
	defer close(t.done)
	for {
		select {
		case <-t.ctx.Done():
			return

		case m := <-t.inbox:
			switch msg := m.(type) {
			case findByCredentials:
				a, err := t.find(msg.Username, msg.Password)
				if err != nil {
					msg.Reply <- result[Account]{err: err}
					break
				}
				msg.Reply <- result[Account]{val: *a}

			case bindSession:
				msg.Reply <- t.bind(msg.AccountID, msg.ConnectionID)

			case unbindSession:
				t.unbind(msg.ConnectionID)
				msg.Reply <- struct{}{}

			case login:
				msg.Reply <- t.login(msg)

			case register:
				id, err := t.register(msg.Username, msg.Password)
				msg.Reply <- result[int]{val: id, err: err}

			case recordAnswer:
				a := t.accounts[msg.AccountID]
				if a == nil {
					msg.Reply <- result[AnswerResult]{err: fmt.Errorf("%w: id %d", ErrNotFound, msg.AccountID)}
					break
				}
				if msg.Correct {
					a.Score += PointsPerCorrectAnswer
					a.WinStreak++
				} else {
					a.WinStreak = 0
				}
				a.GamesPlayed++
				msg.Reply <- result[AnswerResult]{val: AnswerResult{Score: a.Score, WinStreak: a.WinStreak}}

			case topScores:
				msg.Reply <- t.top(msg.N)

			case getAccount:
				a := t.accounts[msg.ID]
				if a == nil {
					msg.Reply <- result[Account]{err: fmt.Errorf("%w: id %d", ErrNotFound, msg.ID)}
					break
				}
				msg.Reply <- result[Account]{val: *a}

			case loggedIn:
				names := make([]string, 0, len(t.bySession))
				for _, id := range t.bySession {
					names = append(names, t.accounts[id].Username)
				}
				slices.Sort(names)
				msg.Reply <- names

			case snapshot:
				msg.Reply <- t.sorted(func(a, b *Account) int { return cmp.Compare(a.ID, b.ID) })
			}
		}
	}
}

func (t *Table) find(username, password string) (*Account, error) {
	id, ok := t.byName[username]
	if !ok || t.accounts[id].Password != password {
		return nil, ErrNotFound
	}
	return t.accounts[id], nil
}

func (t *Table) bind(accountID int, connID string) error {
	a := t.accounts[accountID]
	if a == nil {
		return fmt.Errorf("%w: id %d", ErrNotFound, accountID)
	}
	if a.SessionID != "" {
		return ErrAlreadyLoggedIn
	}
	if prev, ok := t.bySession[connID]; ok && prev != accountID {
		return fmt.Errorf("%w: connection already bound", ErrAlreadyLoggedIn)
	}
	a.SessionID = connID
	t.bySession[connID] = accountID
	return nil
}

func (t *Table) unbind(connID string) {
	id, ok := t.bySession[connID]
	if !ok {
		return
	}
	delete(t.bySession, connID)
	if a := t.accounts[id]; a != nil && a.SessionID == connID {
		a.SessionID = ""
	}
}

func (t *Table) login(msg login) result[Account] {
	a, err := t.find(msg.Username, msg.Password)
	if err != nil {
		return result[Account]{err: ErrBadCredentials}
	}
	if a.SessionID != "" {
		return result[Account]{err: ErrAlreadyLoggedIn}
	}
	if a.Role != msg.Role {
		return result[Account]{err: ErrRoleMismatch}
	}
	if err := t.bind(a.ID, msg.ConnectionID); err != nil {
		return result[Account]{err: err}
	}
	return result[Account]{val: *a}
}

func (t *Table) register(username, password string) (int, error) {
	if err := ValidateCredentials(username, password); err != nil {
		return 0, err
	}
	if _, taken := t.byName[username]; taken {
		return 0, fmt.Errorf("%w: %q", ErrUsernameTaken, username)
	}
	id := t.nextID
	t.nextID++
	t.accounts[id] = &Account{ID: id, Username: username, Password: password, Role: types.RolePlayer}
	t.byName[username] = id
	return id, nil
}

// ValidateCredentials rejects values that cannot be carried by the login and
// listing payloads.
func ValidateCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return fmt.Errorf("%w: empty username or password", ErrInvalidAccount)
	}
	if len(username) > MaxUsernameLength {
		return fmt.Errorf("%w: username longer than %d bytes", ErrInvalidAccount, MaxUsernameLength)
	}
	if strings.ContainsAny(username, "#|,\n") || strings.ContainsAny(password, "#|") {
		return fmt.Errorf("%w: reserved character", ErrInvalidAccount)
	}
	return nil
}

func (t *Table) top(n int) []Account {
	all := t.sorted(func(a, b *Account) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

func (t *Table) sorted(order func(a, b *Account) int) []Account {
	ptrs := make([]*Account, 0, len(t.accounts))
	for _, a := range t.accounts {
		ptrs = append(ptrs, a)
	}
	slices.SortFunc(ptrs, order)
	out := make([]Account, len(ptrs))
	for i, a := range ptrs {
		out[i] = *a
	}
	return out
}
