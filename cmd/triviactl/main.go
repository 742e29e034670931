package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/DoyleJ11/trivia-backend/internal/config"
	"github.com/DoyleJ11/trivia-backend/pkg/client"
	"github.com/DoyleJ11/trivia-backend/pkg/types"
)

const releaseVersion = "0.1.0"

type options struct {
	addr     string
	wsURL    string
	user     string
	password string
	role     string
	timeout  time.Duration
}

func main() {
	_ = config.LoadDotEnv()
	cobra.CheckErr(newRootCmd(&options{}).Execute())
}

func newRootCmd(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "triviactl",
		Short:         "Run single trivia protocol commands against a server.",
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.BindEnv(cmd.Root().PersistentFlags())
			if opts.user == "" {
				return errors.New("--user is required (env: TRIVIA_USER)")
			}
			return nil
		},
	}

	fs := root.PersistentFlags()
	fs.StringVarP(&opts.addr, "addr", "a", "localhost:5678", "server protocol address (env: TRIVIA_ADDR)")
	fs.StringVar(&opts.wsURL, "ws", "", "connect over websocket instead, e.g. ws://localhost:8080/ws (env: TRIVIA_WS)")
	fs.StringVarP(&opts.user, "user", "u", "", "username (env: TRIVIA_USER)")
	fs.StringVarP(&opts.password, "password", "P", "", "password (env: TRIVIA_PASSWORD)")
	fs.StringVarP(&opts.role, "role", "r", "player", "login role: player or manager (env: TRIVIA_ROLE)")
	fs.DurationVar(&opts.timeout, "timeout", 10*time.Second, "overall command timeout (env: TRIVIA_TIMEOUT)")

	root.AddCommand(
		action(opts, "score", "Show your score", cobra.NoArgs, func(ctx context.Context, c *client.Client, w io.Writer, _ []string) error {
			n, err := c.MyScore(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, n)
			return nil
		}),
		action(opts, "highscore", "Show the best players", cobra.NoArgs, func(ctx context.Context, c *client.Client, w io.Writer, _ []string) error {
			top, err := c.Highscore(ctx)
			if err != nil {
				return err
			}
			for i, e := range top {
				fmt.Fprintf(w, "%2d. %s %d\n", i+1, e.Username, e.Score)
			}
			return nil
		}),
		action(opts, "logged", "List logged in users", cobra.NoArgs, func(ctx context.Context, c *client.Client, w io.Writer, _ []string) error {
			var users []string
			var err error
			if role, _ := types.ParseRole(opts.role); role == types.RoleManager {
				users, err = c.LoggedInUsers(ctx)
			} else {
				users, err = c.Logged(ctx)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(w, strings.Join(users, "\n"))
			return nil
		}),
		action(opts, "play", "Fetch a question and optionally answer it", cobra.MaximumNArgs(1), func(ctx context.Context, c *client.Client, w io.Writer, args []string) error {
			q, err := c.Question(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "#%d %s\n", q.ID, q.Text)
			for i, a := range q.Answers {
				fmt.Fprintf(w, "  %d) %s\n", i+1, a)
			}
			if len(args) == 0 {
				return nil
			}
			answer, err := pickAnswer(q, args[0])
			if err != nil {
				return err
			}
			return printResult(ctx, c, w, q.ID, answer)
		}),
		action(opts, "answer", "Answer a question by id", cobra.ExactArgs(2), func(ctx context.Context, c *client.Client, w io.Writer, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("question id %q: %w", args[0], err)
			}
			return printResult(ctx, c, w, id, args[1])
		}),
		action(opts, "add-question", "Add a question (manager): TEXT A1 A2 A3 A4 CORRECT", cobra.ExactArgs(6), func(ctx context.Context, c *client.Client, w io.Writer, args []string) error {
			req := types.AddQuestionRequest{Text: args[0], CorrectAnswer: args[5]}
			copy(req.Answers[:], args[1:5])
			id, err := c.AddQuestion(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "added question %d\n", id)
			return nil
		}),
		action(opts, "register", "Register a player (manager): USERNAME PASSWORD", cobra.ExactArgs(2), func(ctx context.Context, c *client.Client, w io.Writer, args []string) error {
			if err := c.RegisterPlayer(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(w, "registered %s\n", args[0])
			return nil
		}),
	)

	root.CompletionOptions.HiddenDefaultCmd = true
	root.SetHelpCommand(&cobra.Command{Hidden: true})
	root.SetVersionTemplate("triviactl v{{.Version}}\n")
	return root
}

type actionFunc func(ctx context.Context, c *client.Client, w io.Writer, args []string) error

// action wraps fn with connect, login and logout.
func action(opts *options, use, short string, args cobra.PositionalArgs, fn actionFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			c, err := connect(ctx, opts)
			if err != nil {
				return err
			}
			defer c.Close()

			role, err := types.ParseRole(opts.role)
			if err != nil {
				return err
			}
			if err := c.Login(ctx, opts.user, opts.password, role); err != nil {
				return err
			}
			if err := fn(ctx, c, cmd.OutOrStdout(), args); err != nil {
				return err
			}
			return c.Logout(ctx)
		},
	}
}

func connect(ctx context.Context, opts *options) (*client.Client, error) {
	if opts.wsURL != "" {
		return client.DialWebSocket(ctx, opts.wsURL)
	}
	return client.Dial(ctx, opts.addr)
}

// pickAnswer accepts either the answer text or its 1-based position. An exact
// answer match wins over a position.
func pickAnswer(q types.QuestionView, arg string) (string, error) {
	if slices.Contains(q.Answers[:], arg) {
		return arg, nil
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(q.Answers) {
			return "", fmt.Errorf("answer number must be between 1 and %d", len(q.Answers))
		}
		return q.Answers[n-1], nil
	}
	return arg, nil
}

func printResult(ctx context.Context, c *client.Client, w io.Writer, id int, answer string) error {
	res, err := c.Answer(ctx, id, answer)
	if err != nil {
		return err
	}
	if res.Correct {
		fmt.Fprintf(w, "correct! score: %d\n", res.Score)
	} else {
		fmt.Fprintf(w, "wrong, the answer was %s\n", res.CorrectAnswer)
	}
	return nil
}
