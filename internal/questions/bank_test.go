package questions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/trivia-backend/pkg/protocol"
)

func newTestBank(t *testing.T, n int) *Bank {
	t.Helper()
	b := NewBank()
	for i := 1; i <= n; i++ {
		_, err := b.AddQuestion(fmt.Sprintf("question %d?", i), [4]string{"a", "b", "c", "d"}, "a")
		require.NoError(t, err)
	}
	return b
}

func TestAddQuestion_IdsIncrease(t *testing.T) {
	b := NewBank()
	id1, err := b.AddQuestion("first?", [4]string{"a", "b", "c", "d"}, "b")
	require.NoError(t, err)
	id2, err := b.AddQuestion("second?", [4]string{"a", "b", "c", "d"}, "d")
	require.NoError(t, err)

	assert.Equal(t, 1, id1)
	assert.Equal(t, 2, id2)
	assert.Equal(t, 2, b.Len())
}

func TestAddQuestion_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		answers [4]string
		correct string
	}{
		{name: "correct not among answers", text: "q?", answers: [4]string{"a", "b", "c", "d"}, correct: "e"},
		{name: "empty text", text: "  ", answers: [4]string{"a", "b", "c", "d"}, correct: "a"},
		{name: "separator in answer", text: "q?", answers: [4]string{"a#1", "b", "c", "d"}, correct: "b"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBank()
			_, err := b.AddQuestion(tc.text, tc.answers, tc.correct)
			require.ErrorIs(t, err, ErrInvalidQuestion)
			assert.Equal(t, 0, b.Len())
		})
	}
}

func TestAddQuestion_ReplyMustFitFrame(t *testing.T) {
	// With 9 questions in the bank the next id is "10"; the reply adds "10#" and
	// "#a#b#c#d" around the text.
	const overhead = len("10#") + len("#a#b#c#d")
	cases := []struct {
		name    string
		textLen int
		wantErr bool
	}{
		{name: "at limit", textLen: protocol.MaxPayloadSize - overhead},
		{name: "one over", textLen: protocol.MaxPayloadSize - overhead + 1, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := newTestBank(t, 9)
			id, err := b.AddQuestion(strings.Repeat("q", tc.textLen), [4]string{"a", "b", "c", "d"}, "a")
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidQuestion)
				assert.Equal(t, 9, b.Len())
				return
			}
			require.NoError(t, err)
			q, err := b.Get(id)
			require.NoError(t, err)
			_, err = protocol.Encode(protocol.CmdYourQuestion, q.View().Payload())
			assert.NoError(t, err)
		})
	}
}

func TestImport_SkipsQuestionsTooLongToSend(t *testing.T) {
	b := NewBank()
	items := []Item{
		{Text: strings.Repeat("q", protocol.MaxPayloadSize), CorrectAnswer: "a", IncorrectAnswers: [3]string{"b", "c", "d"}},
		{Text: "Largest planet?", CorrectAnswer: "Jupiter", IncorrectAnswers: [3]string{"Mars", "Venus", "Earth"}},
	}
	assert.Equal(t, 1, b.Import(items))

	q, err := b.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "Largest planet?", q.Text)
}

func TestCheckAnswer(t *testing.T) {
	b := newTestBank(t, 2)

	ok, err := b.CheckAnswer(1, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.CheckAnswer(2, "b")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, id := range []int{0, -1, 3} {
		_, err = b.CheckAnswer(id, "a")
		require.ErrorIs(t, err, ErrUnknownQuestion)
	}
}

func TestRandomQuestion_NeverRepeatsUntilExhausted(t *testing.T) {
	const n = 25
	b := newTestBank(t, n)
	asked := map[int]struct{}{}

	for i := 0; i < n; i++ {
		q, err := b.RandomQuestion(asked)
		require.NoError(t, err)
		_, seen := asked[q.ID]
		require.False(t, seen, "question %d served twice", q.ID)
		asked[q.ID] = struct{}{}
	}

	_, err := b.RandomQuestion(asked)
	require.ErrorIs(t, err, ErrExhausted)
}

func TestRandomQuestion_EmptyBank(t *testing.T) {
	_, err := NewBank().RandomQuestion(nil)
	require.ErrorIs(t, err, ErrExhausted)
}

func TestImport_SkipsDuplicatesAndReserved(t *testing.T) {
	b := NewBank()
	b.shuffle = func([]string) {}

	items := []Item{
		{Text: "Capital of France?", CorrectAnswer: "Paris", IncorrectAnswers: [3]string{"Rome", "Oslo", "Bern"}},
		{Text: "Capital of France?", CorrectAnswer: "Paris", IncorrectAnswers: [3]string{"Rome", "Oslo", "Bern"}},
		{Text: "C# or Go?", CorrectAnswer: "Go", IncorrectAnswers: [3]string{"C#", "Java", "Rust"}},
		{Text: "Same answers?", CorrectAnswer: "x", IncorrectAnswers: [3]string{"x", "y", "z"}},
		{Text: "Largest planet?", CorrectAnswer: "Jupiter", IncorrectAnswers: [3]string{"Mars", "Venus", "Earth"}},
	}
	assert.Equal(t, 2, b.Import(items))

	q, err := b.Get(1)
	require.NoError(t, err)
	assert.Equal(t, [4]string{"Paris", "Rome", "Oslo", "Bern"}, q.Answers)
	assert.Equal(t, "Paris", q.CorrectAnswer)

	q, err = b.Get(2)
	require.NoError(t, err)
	assert.Equal(t, "Largest planet?", q.Text)
}

type stubSource struct {
	items []Item
	err   error
}

func (s stubSource) Fetch(context.Context) ([]Item, error) { return s.items, s.err }

func TestLoad(t *testing.T) {
	b := NewBank()
	n, err := b.Load(context.Background(), stubSource{items: []Item{
		{Text: "1+1?", CorrectAnswer: "2", IncorrectAnswers: [3]string{"1", "3", "4"}},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	boom := errors.New("boom")
	_, err = b.Load(context.Background(), stubSource{err: boom})
	require.ErrorIs(t, err, boom)
}

func TestConcurrentAddAndRead(t *testing.T) {
	b := newTestBank(t, 1)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, err := b.AddQuestion(fmt.Sprintf("w%d-%d?", i, j), [4]string{"a", "b", "c", "d"}, "c")
				assert.NoError(t, err)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				q, err := b.RandomQuestion(nil)
				assert.NoError(t, err)
				assert.NotEmpty(t, q.Text)
				assert.Contains(t, q.Answers[:], q.CorrectAnswer)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1+8*50, b.Len())
}
