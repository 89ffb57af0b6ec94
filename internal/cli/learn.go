package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tutor-client/internal/app"
	"tutor-client/internal/config"
	"tutor-client/internal/domain"
	"tutor-client/internal/infra/memory"
	redisstore "tutor-client/internal/infra/redis"
	transport "tutor-client/internal/transport/http"
	"tutor-client/internal/transport/ws"
)

type learnOptions struct {
	sessionID   string
	topic       string
	answersPath string
	retake      string
	retakes     int
	wait        time.Duration
	showLog     bool
}

// NewLearnCmd runs one tutoring session end to end.
func NewLearnCmd(configPath *string) *cobra.Command {
	opts := &learnOptions{}
	cmd := &cobra.Command{
		Use:   "learn",
		Short: "Stream a lesson on a topic, then take the assessment",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.retake != "" && opts.retake != "same" && opts.retake != "new" {
				return fmt.Errorf("--retake must be \"same\" or \"new\"")
			}
			return runLearn(cmd.Context(), *configPath, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.topic, "topic", "t", "", "topic to learn (required)")
	f.StringVarP(&opts.sessionID, "session", "s", "", "session id (generated when empty)")
	f.StringVarP(&opts.answersPath, "answers", "a", "", "YAML file mapping question id to answer; prompts when empty")
	f.StringVar(&opts.retake, "retake", "", "retake after grading: same or new")
	f.IntVar(&opts.retakes, "retakes", 1, "how many retakes to take when --retake is set")
	f.DurationVar(&opts.wait, "wait", 10*time.Minute, "how long to wait for the assessment")
	f.BoolVar(&opts.showLog, "show-log", false, "print the session log before exiting")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func runLearn(ctx context.Context, configPath string, opts *learnOptions, in io.Reader, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	var events app.EventRepository = memory.NewEventStore()
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		events = redisstore.NewEventStore(redisClient, config.Duration(cfg.Redis.TTL, 24*time.Hour))
	}

	dialer := ws.NewDialer(cfg.Server.WSURL, config.Duration(cfg.Timeouts.Handshake, 10*time.Second))
	client := transport.NewClient(cfg.Server.APIURL, config.Duration(cfg.Timeouts.Request, time.Minute))
	engine := app.NewEngine(dialer, client, events, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	updates, cancel := engine.Subscribe()
	defer cancel()

	if err := engine.Connect(ctx, opts.sessionID, opts.topic); err != nil {
		return err
	}
	defer engine.Close()
	if opts.showLog {
		defer printLog(context.Background(), engine, out)
	}

	snap, err := awaitAssessment(ctx, updates, opts.wait, out)
	if err != nil {
		return err
	}
	return takeAssessment(ctx, engine, *snap.Assessment, opts, bufio.NewReader(in), out)
}

// takeAssessment answers and submits the current assessment, then repeats for
// each requested retake.
func takeAssessment(ctx context.Context, engine *app.Engine, current domain.Assessment, opts *learnOptions, in *bufio.Reader, out io.Writer) error {
	for attempt := 0; ; attempt++ {
		printAssessment(out, current)
		answers, err := collectAnswers(current, opts.answersPath, in, out)
		if err != nil {
			return err
		}
		for _, a := range answers {
			if err := engine.SetAnswer(a.QuestionID, a.Answer); err != nil {
				return err
			}
		}
		if missing := app.MissingAnswers(current, engine.Answers()); len(missing) > 0 {
			return fmt.Errorf("please answer all questions; missing %s", strings.Join(missing, ", "))
		}

		report, err := engine.Submit(ctx, engine.Answers())
		if err != nil {
			return describeAPIError("submit", err)
		}
		printGrade(out, report)

		if opts.retake == "" || attempt >= opts.retakes {
			return nil
		}
		outcome, err := engine.Retake(ctx, opts.retake == "new")
		if err != nil {
			return describeAPIError("retake", err)
		}
		switch outcome.(type) {
		case domain.NewContent:
			fmt.Fprintln(out, "\nNew assessment generated with fresh questions.")
		case domain.SameContent:
			fmt.Fprintln(out, "\nSame assessment loaded. Review the teaching steps before retaking.")
		}
		current = outcome.RetakeAssessment()
	}
}

// describeAPIError separates answers from the tutor API from failures to reach it.
func describeAPIError(op string, err error) error {
	var urlErr *url.Error
	switch {
	case transport.IsRequestError(err):
		return fmt.Errorf("%s rejected by tutor API: %w", op, err)
	case errors.As(err, &urlErr):
		return fmt.Errorf("%s: tutor API unreachable: %w", op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// awaitAssessment prints steps as they stream in and returns once an assessment is ready.
// A disconnected snapshot only ends the wait after the session has been seen live.
func awaitAssessment(ctx context.Context, updates <-chan app.Snapshot, wait time.Duration, out io.Writer) (app.Snapshot, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	printed := 0
	waiting := false
	live := false
	lastError := ""
	for {
		select {
		case <-ctx.Done():
			return app.Snapshot{}, ctx.Err()
		case <-timer.C:
			return app.Snapshot{}, fmt.Errorf("no assessment after %s", wait)
		case snap, ok := <-updates:
			if !ok {
				return app.Snapshot{}, domain.ErrNotConnected
			}
			for ; printed < len(snap.Steps); printed++ {
				printStep(out, snap.Steps[printed])
			}
			if app.ShowGeneratingIndicator(snap) && !waiting {
				waiting = true
				fmt.Fprintln(out, "Generating assessment based on teaching content...")
			}
			if snap.LastError != "" && snap.LastError != lastError {
				lastError = snap.LastError
				fmt.Fprintf(out, "Error: %s\n", lastError)
			}
			if snap.HandshakeErr != nil {
				return app.Snapshot{}, snap.HandshakeErr
			}
			if app.AssessmentReady(snap) {
				return snap, nil
			}
			switch snap.Session.State {
			case domain.StateConnecting, domain.StateConnected:
				live = true
			case domain.StateDisconnected:
				if live {
					return app.Snapshot{}, fmt.Errorf("stream closed before an assessment arrived: %w", domain.ErrNotConnected)
				}
			}
		}
	}
}

// collectAnswers reads answers from a YAML file, or prompts for each question.
func collectAnswers(a domain.Assessment, path string, in io.Reader, out io.Writer) ([]domain.Answer, error) {
	if path != "" {
		return loadAnswers(a, path)
	}
	reader, ok := in.(*bufio.Reader)
	if !ok {
		reader = bufio.NewReader(in)
	}
	answers := make([]domain.Answer, 0, len(a.Questions))
	for i, q := range a.Questions {
		fmt.Fprintf(out, "\nQuestion %d (%d points): %s\n", i+1, q.Points, q.Text)
		if q.Type.MultipleChoice() {
			for j, opt := range q.Options {
				fmt.Fprintf(out, "  %d) %s\n", j+1, opt)
			}
		}
		fmt.Fprint(out, "> ")
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		answers = append(answers, domain.Answer{QuestionID: q.ID, Answer: resolveOption(q, strings.TrimSpace(line))})
		if err == io.EOF {
			break
		}
	}
	return answers, nil
}

// resolveOption maps a numbered choice to its option text.
func resolveOption(q domain.Question, input string) string {
	if !q.Type.MultipleChoice() {
		return input
	}
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(q.Options) {
		return q.Options[n-1]
	}
	return input
}

func loadAnswers(a domain.Assessment, path string) ([]domain.Answer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	byQuestion := map[string]string{}
	if err := yaml.Unmarshal(data, &byQuestion); err != nil {
		return nil, fmt.Errorf("parse answers: %w", err)
	}
	answers := make([]domain.Answer, 0, len(byQuestion))
	for _, q := range a.Questions {
		if text, ok := byQuestion[q.ID]; ok {
			answers = append(answers, domain.Answer{QuestionID: q.ID, Answer: resolveOption(q, text)})
		}
	}
	return answers, nil
}

func printLog(ctx context.Context, engine *app.Engine, out io.Writer) {
	events, err := engine.Events(ctx)
	if err != nil {
		fmt.Fprintf(out, "session log unavailable: %v\n", err)
		return
	}
	fmt.Fprintln(out, "\n--- session log ---")
	for _, ev := range events {
		fmt.Fprintf(out, "%s [%s] %s\n", ev.Timestamp.Format(time.TimeOnly), ev.Type, ev.Payload)
	}
}
