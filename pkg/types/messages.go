package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/DoyleJ11/trivia-backend/pkg/protocol"
)

// Client -> Server payloads. Fields are '#'-joined.
//
// LOGIN:           username#password[#role]   role: "player" | "manager"
// SEND_ANSWER:     question_id#answer
// ADD_QUESTION:    text#answer1#answer2#answer3#answer4#correct_answer
// REGISTER_PLAYER: username#password

type Role string

const (
	RolePlayer  Role = "player"
	RoleManager Role = "manager"
)

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "player", "1":
		return RolePlayer, nil
	case "manager", "2":
		return RoleManager, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

type LoginRequest struct {
	Username string
	Password string
	Role     Role
}

func ParseLogin(payload string) (LoginRequest, error) {
	if fields, err := protocol.SplitFields(payload, 2); err == nil {
		return LoginRequest{Username: fields[0], Password: fields[1], Role: RolePlayer}, nil
	}
	fields, err := protocol.SplitFields(payload, 3)
	if err != nil {
		return LoginRequest{}, err
	}
	role, err := ParseRole(fields[2])
	if err != nil {
		return LoginRequest{}, err
	}
	return LoginRequest{Username: fields[0], Password: fields[1], Role: role}, nil
}

func (r LoginRequest) Payload() string {
	return protocol.JoinFields(r.Username, r.Password, string(r.Role))
}

type AnswerRequest struct {
	QuestionID int
	Answer     string
}

func ParseAnswer(payload string) (AnswerRequest, error) {
	fields, err := protocol.SplitFields(payload, 2)
	if err != nil {
		return AnswerRequest{}, err
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return AnswerRequest{}, fmt.Errorf("question id %q: %w", fields[0], err)
	}
	return AnswerRequest{QuestionID: id, Answer: fields[1]}, nil
}

func (r AnswerRequest) Payload() string {
	return protocol.JoinFields(strconv.Itoa(r.QuestionID), r.Answer)
}

type AddQuestionRequest struct {
	Text          string
	Answers       [4]string
	CorrectAnswer string
}

func ParseAddQuestion(payload string) (AddQuestionRequest, error) {
	fields, err := protocol.SplitFields(payload, 6)
	if err != nil {
		return AddQuestionRequest{}, err
	}
	req := AddQuestionRequest{Text: fields[0], CorrectAnswer: fields[5]}
	copy(req.Answers[:], fields[1:5])
	return req, nil
}

func (r AddQuestionRequest) Payload() string {
	return protocol.JoinFields(r.Text, r.Answers[0], r.Answers[1], r.Answers[2], r.Answers[3], r.CorrectAnswer)
}

type RegisterRequest struct {
	Username string
	Password string
}

func ParseRegister(payload string) (RegisterRequest, error) {
	fields, err := protocol.SplitFields(payload, 2)
	if err != nil {
		return RegisterRequest{}, err
	}
	return RegisterRequest{Username: fields[0], Password: fields[1]}, nil
}

func (r RegisterRequest) Payload() string {
	return protocol.JoinFields(r.Username, r.Password)
}
