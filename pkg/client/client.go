// Package client speaks the trivia protocol to a server over TCP or WebSocket.
package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/DoyleJ11/trivia-backend/pkg/protocol"
	"github.com/DoyleJ11/trivia-backend/pkg/types"
)

var ErrUnexpectedReply = errors.New("unexpected reply")
var ErrNoQuestion = errors.New("no question available")

// ServerError is an ERROR or REGISTER_FAILED reply.
type ServerError struct {
	Command protocol.Command
	Message string
}

func (e *ServerError) Error() string { return fmt.Sprintf("%s: %s", e.Command, e.Message) }

// AnswerResult is the server's verdict on a submitted answer. Score is set when
// Correct; CorrectAnswer otherwise.
type AnswerResult struct {
	Correct       bool
	Score         int
	CorrectAnswer string
}

// Client sends one request at a time and waits for its reply.
type Client struct {
	mu   sync.Mutex
	conn conn
}

func (c *Client) Close() error { return c.conn.close() }

// Do sends one frame and returns the reply. Error replies are returned as
// *ServerError.
func (c *Client) Do(ctx context.Context, cmd protocol.Command, payload string) (protocol.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.send(ctx, protocol.Frame{Command: cmd, Payload: payload}); err != nil {
		return protocol.Frame{}, err
	}
	f, err := c.conn.recv(ctx)
	if err != nil {
		return protocol.Frame{}, err
	}
	switch f.Command {
	case protocol.CmdError, protocol.CmdRegisterFailed:
		return f, &ServerError{Command: f.Command, Message: f.Payload}
	}
	return f, nil
}

func (c *Client) expect(ctx context.Context, cmd protocol.Command, payload string, want protocol.Command) (string, error) {
	f, err := c.Do(ctx, cmd, payload)
	if err != nil {
		return "", err
	}
	if f.Command != want {
		return "", fmt.Errorf("%w: %s", ErrUnexpectedReply, f)
	}
	return f.Payload, nil
}

func (c *Client) Login(ctx context.Context, username, password string, role types.Role) error {
	if role == "" {
		role = types.RolePlayer
	}
	req := types.LoginRequest{Username: username, Password: password, Role: role}
	_, err := c.expect(ctx, protocol.CmdLogin, req.Payload(), protocol.CmdLoginOK)
	return err
}

// Logout ends the session. The server sends no reply; Logout returns once the
// server has closed the connection, at which point the account is free again.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.send(ctx, protocol.Frame{Command: protocol.CmdLogout}); err != nil {
		return err
	}
	f, err := c.conn.recv(ctx)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrUnexpectedReply, f)
	}
	if isClosed(err) {
		return nil
	}
	return err
}

// Question returns the next unseen question, or ErrNoQuestion.
func (c *Client) Question(ctx context.Context) (types.QuestionView, error) {
	f, err := c.Do(ctx, protocol.CmdGetQuestion, "")
	if err != nil {
		return types.QuestionView{}, err
	}
	switch f.Command {
	case protocol.CmdYourQuestion:
		return types.ParseQuestion(f.Payload)
	case protocol.CmdNoQuestion:
		return types.QuestionView{}, ErrNoQuestion
	default:
		return types.QuestionView{}, fmt.Errorf("%w: %s", ErrUnexpectedReply, f)
	}
}

func (c *Client) Answer(ctx context.Context, questionID int, answer string) (AnswerResult, error) {
	req := types.AnswerRequest{QuestionID: questionID, Answer: answer}
	f, err := c.Do(ctx, protocol.CmdSendAnswer, req.Payload())
	if err != nil {
		return AnswerResult{}, err
	}
	switch f.Command {
	case protocol.CmdCorrectAnswer:
		score, err := strconv.Atoi(f.Payload)
		if err != nil {
			return AnswerResult{}, fmt.Errorf("%w: score %q", ErrUnexpectedReply, f.Payload)
		}
		return AnswerResult{Correct: true, Score: score}, nil
	case protocol.CmdWrongAnswer:
		return AnswerResult{CorrectAnswer: f.Payload}, nil
	default:
		return AnswerResult{}, fmt.Errorf("%w: %s", ErrUnexpectedReply, f)
	}
}

func (c *Client) MyScore(ctx context.Context) (int, error) {
	p, err := c.expect(ctx, protocol.CmdMyScore, "", protocol.CmdYourScore)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(p)
}

func (c *Client) Highscore(ctx context.Context) ([]types.ScoreEntry, error) {
	p, err := c.expect(ctx, protocol.CmdHighscore, "", protocol.CmdAllScore)
	if err != nil {
		return nil, err
	}
	return types.ParseScores(p)
}

func (c *Client) Logged(ctx context.Context) ([]string, error) {
	p, err := c.expect(ctx, protocol.CmdLogged, "", protocol.CmdLoggedAnswer)
	if err != nil {
		return nil, err
	}
	return types.ParseUsers(p), nil
}

// LoggedInUsers is the manager form of Logged.
func (c *Client) LoggedInUsers(ctx context.Context) ([]string, error) {
	p, err := c.expect(ctx, protocol.CmdLoggedInUsers, "", protocol.CmdLoggedAnswer)
	if err != nil {
		return nil, err
	}
	return types.ParseUsers(p), nil
}

// AddQuestion returns the id of the new question.
func (c *Client) AddQuestion(ctx context.Context, req types.AddQuestionRequest) (int, error) {
	p, err := c.expect(ctx, protocol.CmdAddQuestion, req.Payload(), protocol.CmdAddQuestionSuccessfully)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(p)
}

func (c *Client) RegisterPlayer(ctx context.Context, username, password string) error {
	req := types.RegisterRequest{Username: username, Password: password}
	_, err := c.expect(ctx, protocol.CmdRegisterPlayer, req.Payload(), protocol.CmdRegisterSuccessfully)
	return err
}
