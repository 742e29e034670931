package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/DoyleJ11/trivia-backend/internal/accounts"
	"github.com/DoyleJ11/trivia-backend/internal/questions"
	"github.com/DoyleJ11/trivia-backend/pkg/protocol"
	"github.com/DoyleJ11/trivia-backend/pkg/types"
)

var ErrProtocolViolation = errors.New("command not allowed in this state")
var ErrBadPayload = errors.New("bad payload")

const DefaultHighscoreSize = 10

// Rejected wraps an error that is reported to the client as a reply frame.
// The connection stays usable after a rejection.
type Rejected struct {
	Err error
}

func (r *Rejected) Error() string { return r.Err.Error() }
func (r *Rejected) Unwrap() error { return r.Err }

func reject(err error) error { return &Rejected{Err: err} }

// IsRejection reports whether err was reported to the client rather than being a fault.
func IsRejection(err error) bool {
	var r *Rejected
	return errors.As(err, &r)
}

type Accounts interface {
	Login(ctx context.Context, username, password string, role types.Role, connectionID string) (accounts.Account, error)
	UnbindSession(ctx context.Context, connectionID string) error
	Register(ctx context.Context, username, password string) (int, error)
	RecordAnswer(ctx context.Context, accountID int, correct bool) (accounts.AnswerResult, error)
	TopScores(ctx context.Context, n int) ([]accounts.Account, error)
	Get(ctx context.Context, id int) (accounts.Account, error)
	LoggedIn(ctx context.Context) ([]string, error)
}

type Questions interface {
	RandomQuestion(excluding map[int]struct{}) (questions.Question, error)
	CheckAnswer(id int, submitted string) (bool, error)
	AddQuestion(text string, answers [4]string, correct string) (int, error)
	Get(id int) (questions.Question, error)
}

// Machine is the state of one connection. It is not safe for concurrent use; the
// connection's own goroutine drives it.
type Machine struct {
	connID        string
	accounts      Accounts
	bank          Questions
	highscoreSize int

	state     State
	accountID int
	username  string
	asked     map[int]struct{}
	released  bool
}

func New(connID string, accts Accounts, bank Questions) *Machine {
	return &Machine{
		connID:        connID,
		accounts:      accts,
		bank:          bank,
		highscoreSize: DefaultHighscoreSize,
		state:         StateAnonymous,
		asked:         make(map[int]struct{}),
	}
}

func (m *Machine) SetHighscoreSize(n int) { m.highscoreSize = n }

func (m *Machine) State() State { return m.state }
func (m *Machine) ConnID() string { return m.connID }
func (m *Machine) Username() string { return m.username }
func (m *Machine) Terminated() bool { return m.state == StateTerminated }
func (m *Machine) AskedCount() int { return len(m.asked) }

// Handle applies one inbound frame. The returned frames are sent back in order.
// A *Rejected error has already been turned into a reply; any other error is a
// fault and the connection should be dropped.
func (m *Machine) Handle(ctx context.Context, f protocol.Frame) ([]protocol.Frame, error) {
	if !accepts(m.state, f.Command) {
		err := fmt.Errorf("%w: %s while %s", ErrProtocolViolation, f.Command, m.state)
		return errorReply(err), reject(err)
	}

	switch f.Command {
	case protocol.CmdLogin:
		return m.login(ctx, f.Payload)
	case protocol.CmdLogout:
		return nil, m.Close(ctx)
	case protocol.CmdGetQuestion:
		return m.playQuestion()
	case protocol.CmdSendAnswer:
		return m.submitAnswer(ctx, f.Payload)
	case protocol.CmdMyScore:
		a, err := m.accounts.Get(ctx, m.accountID)
		if err != nil {
			return nil, err
		}
		return reply(protocol.CmdYourScore, strconv.Itoa(a.Score)), nil
	case protocol.CmdHighscore:
		return m.highscore(ctx)
	case protocol.CmdLogged, protocol.CmdLoggedInUsers:
		names, err := m.accounts.LoggedIn(ctx)
		if err != nil {
			return nil, err
		}
		return reply(protocol.CmdLoggedAnswer, fitUsers(names)), nil
	case protocol.CmdAddQuestion:
		return m.addQuestion(f.Payload)
	case protocol.CmdRegisterPlayer:
		return m.registerPlayer(ctx, f.Payload)
	default:
		err := fmt.Errorf("%w: %s", ErrProtocolViolation, f.Command)
		return errorReply(err), reject(err)
	}
}

// Close moves the machine to Terminated and releases the account binding. It is
// safe to call more than once; the binding is released exactly once. The release
// is not cancelled with ctx.
func (m *Machine) Close(ctx context.Context) error {
	m.state = StateTerminated
	if m.released {
		return nil
	}
	m.released = true
	m.accountID = 0
	return m.accounts.UnbindSession(context.WithoutCancel(ctx), m.connID)
}

func (m *Machine) login(ctx context.Context, payload string) ([]protocol.Frame, error) {
	req, err := types.ParseLogin(payload)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrBadPayload, err)
		return errorReply(err), reject(err)
	}

	m.state = StateAuthenticating
	a, err := m.accounts.Login(ctx, req.Username, req.Password, req.Role, m.connID)
	if err != nil {
		m.state = StateAnonymous
		if isLoginFailure(err) {
			return errorReply(err), reject(err)
		}
		return nil, err
	}

	m.accountID = a.ID
	m.username = a.Username
	m.state = StatePlayer
	if a.Role == types.RoleManager {
		m.state = StateManager
	}
	return reply(protocol.CmdLoginOK, ""), nil
}

func isLoginFailure(err error) bool {
	return errors.Is(err, accounts.ErrBadCredentials) ||
		errors.Is(err, accounts.ErrAlreadyLoggedIn) ||
		errors.Is(err, accounts.ErrRoleMismatch)
}

func (m *Machine) playQuestion() ([]protocol.Frame, error) {
	q, err := m.bank.RandomQuestion(m.asked)
	if errors.Is(err, questions.ErrExhausted) {
		return reply(protocol.CmdNoQuestion, ""), reject(err)
	}
	if err != nil {
		return nil, err
	}
	m.asked[q.ID] = struct{}{}
	return reply(protocol.CmdYourQuestion, q.View().Payload()), nil
}

func (m *Machine) submitAnswer(ctx context.Context, payload string) ([]protocol.Frame, error) {
	req, err := types.ParseAnswer(payload)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrBadPayload, err)
		return errorReply(err), reject(err)
	}

	correct, err := m.bank.CheckAnswer(req.QuestionID, req.Answer)
	if errors.Is(err, questions.ErrUnknownQuestion) {
		return errorReply(err), reject(err)
	}
	if err != nil {
		return nil, err
	}

	res, err := m.accounts.RecordAnswer(ctx, m.accountID, correct)
	if err != nil {
		return nil, err
	}
	if correct {
		return reply(protocol.CmdCorrectAnswer, strconv.Itoa(res.Score)), nil
	}

	q, err := m.bank.Get(req.QuestionID)
	if err != nil {
		return nil, err
	}
	return reply(protocol.CmdWrongAnswer, q.CorrectAnswer), nil
}

func (m *Machine) highscore(ctx context.Context) ([]protocol.Frame, error) {
	top, err := m.accounts.TopScores(ctx, m.highscoreSize)
	if err != nil {
		return nil, err
	}
	entries := make([]types.ScoreEntry, len(top))
	for i, a := range top {
		entries[i] = types.ScoreEntry{Username: a.Username, Score: a.Score}
	}
	return reply(protocol.CmdAllScore, fitScores(entries)), nil
}

func (m *Machine) addQuestion(payload string) ([]protocol.Frame, error) {
	req, err := types.ParseAddQuestion(payload)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrBadPayload, err)
		return errorReply(err), reject(err)
	}
	id, err := m.bank.AddQuestion(req.Text, req.Answers, req.CorrectAnswer)
	if errors.Is(err, questions.ErrInvalidQuestion) {
		return errorReply(err), reject(err)
	}
	if err != nil {
		return nil, err
	}
	return reply(protocol.CmdAddQuestionSuccessfully, strconv.Itoa(id)), nil
}

func (m *Machine) registerPlayer(ctx context.Context, payload string) ([]protocol.Frame, error) {
	req, err := types.ParseRegister(payload)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrBadPayload, err)
		return reply(protocol.CmdRegisterFailed, sanitize(err.Error())), reject(err)
	}
	_, err = m.accounts.Register(ctx, req.Username, req.Password)
	if errors.Is(err, accounts.ErrUsernameTaken) || errors.Is(err, accounts.ErrInvalidAccount) {
		return reply(protocol.CmdRegisterFailed, sanitize(err.Error())), reject(err)
	}
	if err != nil {
		return nil, err
	}
	return reply(protocol.CmdRegisterSuccessfully, "Successfully registered "+req.Username), nil
}

func reply(cmd protocol.Command, payload string) []protocol.Frame {
	return []protocol.Frame{{Command: cmd, Payload: payload}}
}

func errorReply(err error) []protocol.Frame {
	return []protocol.Frame{ErrorFrame(err)}
}

// ErrorFrame renders err as an ERROR frame that always encodes.
func ErrorFrame(err error) protocol.Frame {
	return protocol.Frame{Command: protocol.CmdError, Payload: sanitize(err.Error())}
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, string(protocol.Separator), "/")
	if len(s) > protocol.MaxPayloadSize {
		s = s[:protocol.MaxPayloadSize]
	}
	return s
}

// fitScores formats entries, dropping the lowest ones that would not fit in one
// payload.
func fitScores(entries []types.ScoreEntry) string {
	for n := len(entries); n > 0; n-- {
		if p := types.FormatScores(entries[:n]); len(p) <= protocol.MaxPayloadSize {
			return p
		}
	}
	return ""
}

// fitUsers joins names, dropping the tail that would not fit in one payload.
func fitUsers(names []string) string {
	size := 0
	for i, n := range names {
		size += len(n)
		if i > 0 {
			size++
		}
		if size > protocol.MaxPayloadSize {
			return types.FormatUsers(names[:i])
		}
	}
	return types.FormatUsers(names)
}
