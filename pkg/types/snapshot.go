package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/DoyleJ11/trivia-backend/pkg/protocol"
)

// Server -> Client payloads.
//
// YOUR_QUESTION:  id#text#answer1#answer2#answer3#answer4
// ALL_SCORE:      "username: score" lines, '\n'-joined, best first
// LOGGED_ANSWER:  usernames, ','-joined

type QuestionView struct {
	ID      int
	Text    string
	Answers [4]string
}

func (q QuestionView) Payload() string {
	return protocol.JoinFields(strconv.Itoa(q.ID), q.Text, q.Answers[0], q.Answers[1], q.Answers[2], q.Answers[3])
}

func ParseQuestion(payload string) (QuestionView, error) {
	fields, err := protocol.SplitFields(payload, 6)
	if err != nil {
		return QuestionView{}, err
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return QuestionView{}, fmt.Errorf("question id %q: %w", fields[0], err)
	}
	q := QuestionView{ID: id, Text: fields[1]}
	copy(q.Answers[:], fields[2:])
	return q, nil
}

type ScoreEntry struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
}

func FormatScores(entries []ScoreEntry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s: %d", e.Username, e.Score))
	}
	return strings.Join(lines, "\n")
}

func ParseScores(payload string) ([]ScoreEntry, error) {
	if payload == "" {
		return nil, nil
	}
	var out []ScoreEntry
	for _, line := range strings.Split(payload, "\n") {
		i := strings.LastIndex(line, ": ")
		if i < 0 {
			return nil, fmt.Errorf("score line %q", line)
		}
		score, err := strconv.Atoi(line[i+2:])
		if err != nil {
			return nil, fmt.Errorf("score line %q: %w", line, err)
		}
		out = append(out, ScoreEntry{Username: line[:i], Score: score})
	}
	return out, nil
}

func FormatUsers(usernames []string) string {
	return strings.Join(usernames, ",")
}

func ParseUsers(payload string) []string {
	if payload == "" {
		return nil
	}
	return strings.Split(payload, ",")
}
