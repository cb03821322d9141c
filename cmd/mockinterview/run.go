package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexiqai/voice-interview/internal/capture"
	"github.com/lexiqai/voice-interview/internal/config"
	"github.com/lexiqai/voice-interview/internal/device"
	"github.com/lexiqai/voice-interview/internal/interview"
	"github.com/lexiqai/voice-interview/internal/observability"
	"github.com/lexiqai/voice-interview/internal/prompt"
	"github.com/lexiqai/voice-interview/internal/questions"
	"github.com/lexiqai/voice-interview/internal/scoring"
	"github.com/lexiqai/voice-interview/internal/speechmetrics"
	"github.com/lexiqai/voice-interview/internal/store"
	"github.com/lexiqai/voice-interview/internal/transcription"
	"github.com/lexiqai/voice-interview/internal/tts"
)

var (
	runRole      string
	runCount     int
	runQuestions string
	runVerbose   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an interview on the local audio devices",
	Long: `Run speaks each question, records your answer until you press Enter,
then transcribes and scores it before moving on.

Requires a build with the portaudio tag:

  go build -tags portaudio ./cmd/mockinterview`,
	RunE: runInterview,
}

func init() {
	runCmd.Flags().StringVar(&runRole, "role", "software engineer", "Role to interview for")
	runCmd.Flags().IntVar(&runCount, "count", 0, "Number of questions (default QUESTION_COUNT)")
	runCmd.Flags().StringVar(&runQuestions, "questions", "", "YAML question bank (default QUESTIONS_FILE)")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Log at debug level")
	rootCmd.AddCommand(runCmd)
}

func runInterview(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cfg.LogLevel
	if runVerbose {
		level = "debug"
	} else if level == "info" {
		// Keep the terminal for the interview itself
		level = "warn"
	}
	observability.InitLogger(level, true)
	logger := observability.GetLogger()

	count := cfg.QuestionCount
	if runCount > 0 {
		count = runCount
	}
	bank := cfg.QuestionsFile
	if runQuestions != "" {
		bank = runQuestions
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, err := questions.New(bank, logger)
	if err != nil {
		return err
	}
	qs, err := source.Questions(ctx, runRole, count)
	if err != nil {
		return err
	}

	devices, err := device.Open(logger)
	if err != nil {
		return err
	}
	defer devices.Close()

	sessions, err := store.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sessions.Close()

	transcriber, err := transcription.NewTranscriber(cfg, logger)
	if err != nil {
		return err
	}
	scorer, err := scoring.NewScorer(cfg, logger)
	if err != nil {
		return err
	}

	ctrl := interview.NewController(interview.Deps{
		Speaker:     prompt.NewPrompter(tts.NewCartesiaClient(cfg, tts.WithLogger(logger)), devices.Player, logger),
		Capture:     capture.NewRecorder(devices.Source, capture.ConfigFrom(cfg), logger),
		Transcriber: transcriber,
		Analyzer:    speechmetrics.NewAnalyzer(nil),
		Scorer:      scorer,
		Store:       sessions,
		Logger:      logger,
	}, interview.OptionsFromConfig(cfg, runRole))

	out := cmd.OutOrStdout()
	updates, unsubscribe := ctrl.Subscribe(16)
	defer unsubscribe()
	go printProgress(out, updates, qs)

	// Enter finishes the current answer
	go func() {
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			ctrl.RequestStop()
		}
	}()

	fmt.Fprintf(out, "Mock interview for %s: %d questions. Press Enter after each answer, Ctrl-C to finish early.\n\n", runRole, len(qs))

	id, err := ctrl.Start(context.Background(), qs)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		ctrl.End()
	}()

	runErr := ctrl.Wait(context.Background())

	lookupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	session, err := sessions.GetSession(lookupCtx, id)
	if err != nil {
		session = ctrl.Snapshot()
	}
	printSummary(out, session)

	if runErr != nil {
		return fmt.Errorf("interview stopped: %w", runErr)
	}
	return nil
}

func printProgress(w io.Writer, updates <-chan interview.Update, qs []interview.Question) {
	for u := range updates {
		switch u.Status {
		case interview.StatusSpeaking:
			if u.Index < len(qs) {
				fmt.Fprintf(w, "Question %d/%d: %s\n", u.Index+1, u.Total, qs[u.Index].Text)
			}
		case interview.StatusListening:
			fmt.Fprintln(w, "  Listening... press Enter when you are done.")
		case interview.StatusProcessing:
			fmt.Fprintln(w, "  Transcribing your answer...")
		case interview.StatusError:
			fmt.Fprintf(w, "  Interview failed: %s\n", u.Error)
		}
	}
}

// printSummary writes the per-answer report and the aggregate score
func printSummary(w io.Writer, session *interview.Session) {
	if session == nil {
		return
	}

	fmt.Fprintf(w, "\n%s\nInterview summary (%s, %s)\n%s\n", strings.Repeat("=", 60), session.Role, session.Status, strings.Repeat("=", 60))

	questionText := make(map[string]string, len(session.Questions))
	for _, q := range session.Questions {
		questionText[q.ID] = q.Text
	}

	for _, a := range session.Answers {
		fmt.Fprintf(w, "\n%d. %s\n", a.Index+1, questionText[a.QuestionID])
		switch a.Outcome {
		case interview.OutcomeSkipped:
			fmt.Fprintln(w, "   No answer recorded.")
			continue
		case interview.OutcomeFailed:
			fmt.Fprintf(w, "   Transcription failed (%s): %s\n", a.ErrorKind, a.Error)
			continue
		}

		fmt.Fprintf(w, "   You said: %q\n", a.Transcript)
		if m := a.Metrics; m != nil {
			fmt.Fprintf(w, "   Pace %.0f wpm, clarity %.2f, fillers %d, hesitations %d, long pauses %d\n",
				m.WordsPerMinute, m.ClarityScore, m.FillerWordCount, m.HesitationCount, m.LongPauseCount)
		}
		if s := a.Score; s != nil {
			fmt.Fprintf(w, "   Score %.0f/100: %s\n", s.Overall, s.Feedback)
			for _, item := range s.Strengths {
				fmt.Fprintf(w, "   + %s\n", item)
			}
			for _, item := range s.Improvements {
				fmt.Fprintf(w, "   - %s\n", item)
			}
		}
	}

	if skipped := len(session.Questions) - len(session.Answers); skipped > 0 {
		fmt.Fprintf(w, "\n%d question(s) not reached.\n", skipped)
	}
	if score, ok := session.AggregateScore(); ok {
		fmt.Fprintf(w, "\nOverall score: %.1f/100\n", score)
	} else {
		fmt.Fprintln(w, "\nNo answers were scored.")
	}
}
