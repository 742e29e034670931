// Package protocol implements the trivia wire frame:
//
//	<command: 16 bytes, space padded>|<length: 4 digits>|<payload>
//
// Multi-field payloads join their fields with '#'.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	CommandWidth   = 16
	MaxCommandSize = 32
	LengthWidth    = 4
	MaxPayloadSize = 9999
	HeaderSize     = CommandWidth + 1 + LengthWidth + 1

	Separator      = '|'
	FieldSeparator = '#'
)

var ErrPayloadTooLarge = errors.New("payload too large")
var ErrPayloadDelimiter = errors.New("payload contains frame separator")
var ErrUnknownCommand = errors.New("unknown command")
var ErrMalformed = errors.New("malformed frame")
var ErrFieldCountMismatch = errors.New("field count mismatch")

type Command string

// Client -> Server
const (
	CmdLogin          Command = "LOGIN"
	CmdLogout         Command = "LOGOUT"
	CmdLogged         Command = "LOGGED"
	CmdGetQuestion    Command = "GET_QUESTION"
	CmdSendAnswer     Command = "SEND_ANSWER"
	CmdMyScore        Command = "MY_SCORE"
	CmdHighscore      Command = "HIGHSCORE"
	CmdAddQuestion    Command = "ADD_QUESTION"
	CmdLoggedInUsers  Command = "LOGGED_IN_USERS"
	CmdRegisterPlayer Command = "REGISTER_PLAYER"
)

// Server -> Client
const (
	CmdLoginOK                 Command = "LOGIN_OK"
	CmdError                   Command = "ERROR"
	CmdLoggedAnswer            Command = "LOGGED_ANSWER"
	CmdYourQuestion            Command = "YOUR_QUESTION"
	CmdCorrectAnswer           Command = "CORRECT_ANSWER"
	CmdWrongAnswer             Command = "WRONG_ANSWER"
	CmdYourScore               Command = "YOUR_SCORE"
	CmdAllScore                Command = "ALL_SCORE"
	CmdNoQuestion              Command = "NO_QUESTION"
	CmdAddQuestionSuccessfully Command = "ADD_QUESTION_SUCCESSFULLY"
	CmdRegisterSuccessfully    Command = "REGISTER_SUCCESSFULLY"
	CmdRegisterFailed          Command = "REGISTER_FAILED"
)

var clientCommands = map[Command]bool{
	CmdLogin: true, CmdLogout: true, CmdLogged: true, CmdGetQuestion: true,
	CmdSendAnswer: true, CmdMyScore: true, CmdHighscore: true, CmdAddQuestion: true,
	CmdLoggedInUsers: true, CmdRegisterPlayer: true,
}

var serverCommands = map[Command]bool{
	CmdLoginOK: true, CmdError: true, CmdLoggedAnswer: true, CmdYourQuestion: true,
	CmdCorrectAnswer: true, CmdWrongAnswer: true, CmdYourScore: true, CmdAllScore: true,
	CmdNoQuestion: true, CmdAddQuestionSuccessfully: true, CmdRegisterSuccessfully: true,
	CmdRegisterFailed: true,
}

// IsCommand reports whether c is in the combined client and server command set.
func IsCommand(c Command) bool { return clientCommands[c] || serverCommands[c] }

func IsClientCommand(c Command) bool { return clientCommands[c] }

func IsServerCommand(c Command) bool { return serverCommands[c] }

type Frame struct {
	Command Command
	Payload string
}

func (f Frame) String() string {
	return fmt.Sprintf("%s(%q)", f.Command, f.Payload)
}

// Encode builds one wire frame.
func Encode(cmd Command, payload string) ([]byte, error) {
	if !IsCommand(cmd) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, string(cmd))
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	if strings.IndexByte(payload, Separator) >= 0 {
		return nil, ErrPayloadDelimiter
	}

	b := make([]byte, 0, HeaderSize+len(payload))
	b = append(b, string(cmd)...)
	// Tokens longer than the field width are written whole.
	for len(b) < CommandWidth {
		b = append(b, ' ')
	}
	b = append(b, Separator)
	b = append(b, fmt.Sprintf("%0*d", LengthWidth, len(payload))...)
	b = append(b, Separator)
	b = append(b, payload...)
	return b, nil
}

// Decode parses one complete wire frame. Any deviation from the layout is ErrMalformed.
func Decode(frame []byte) (Frame, error) {
	parts := strings.Split(string(frame), string(Separator))
	if len(parts) != 3 {
		return Frame{}, fmt.Errorf("%w: %d segments", ErrMalformed, len(parts))
	}

	cmd := Command(strings.TrimRight(parts[0], " "))
	if !IsCommand(cmd) {
		return Frame{}, fmt.Errorf("%w: unknown command %q", ErrMalformed, string(cmd))
	}

	n, err := parseLength(parts[1])
	if err != nil {
		return Frame{}, err
	}
	if n != len(parts[2]) {
		return Frame{}, fmt.Errorf("%w: declared length %d, got %d", ErrMalformed, n, len(parts[2]))
	}
	return Frame{Command: cmd, Payload: parts[2]}, nil
}

func parseLength(s string) (int, error) {
	if len(s) != LengthWidth {
		return 0, fmt.Errorf("%w: length field %q", ErrMalformed, s)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("%w: length field %q", ErrMalformed, s)
		}
	}
	n, _ := strconv.Atoi(s)
	return n, nil
}

// SplitFields splits a multi-field payload on '#' (or '|' for legacy payloads
// without '#') and requires exactly expected fields.
func SplitFields(payload string, expected int) ([]string, error) {
	sep := string(FieldSeparator)
	if !strings.ContainsRune(payload, FieldSeparator) && strings.ContainsRune(payload, Separator) {
		sep = string(Separator)
	}
	fields := strings.Split(payload, sep)
	if len(fields) != expected {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrFieldCountMismatch, expected, len(fields))
	}
	return fields, nil
}

func JoinFields(fields ...string) string {
	return strings.Join(fields, string(FieldSeparator))
}
