package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/dispatch/internal/agentexec"
	"github.com/ShayCichocki/dispatch/internal/api"
	"github.com/ShayCichocki/dispatch/internal/config"
	"github.com/ShayCichocki/dispatch/internal/engine"
	"github.com/ShayCichocki/dispatch/internal/interaction"
	"github.com/ShayCichocki/dispatch/internal/planner"
	"github.com/ShayCichocki/dispatch/internal/runstore"
	"github.com/ShayCichocki/dispatch/internal/state"
	"github.com/ShayCichocki/dispatch/pkg/models"
)

var (
	runID          string
	runMaxWorkers  int
	runNonInteract bool
	runUseForm     bool
	runStopOnFail  bool
	runDebug       bool
)

var runCmd = &cobra.Command{
	Use:   "run <objective>",
	Short: "Run an objective to completion",
	Long: `Run the coordination loop on an objective.

The planner decomposes the objective into delegations, which execute in
dependency-ordered waves. Critical questions block the run until you
answer them; with --non-interactive, answers are instead tailed from the
run's answers.jsonl so another process can supply them.

Passing --run-id of an existing run resumes it: completed waves are
skipped and recorded answers carry over.

Examples:
  dispatch run "summarize the quarterly reports"
  dispatch run --run-id run-20260827-143000 ""   # resume
  dispatch run --non-interactive "migrate the fixtures"`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runID, "run-id", "", "Run identifier (resumes if it already exists)")
	runCmd.Flags().IntVar(&runMaxWorkers, "max-workers", 0, "Override the concurrent worker ceiling")
	runCmd.Flags().BoolVar(&runNonInteract, "non-interactive", false, "Never prompt; tail answers.jsonl for answers")
	runCmd.Flags().BoolVar(&runUseForm, "form", false, "Use the full-screen form for questions")
	runCmd.Flags().BoolVar(&runStopOnFail, "stop-on-failure", false, "Abort remaining waves when a delegation fails")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "Write an engine debug log into the run directory")
}

func runRun(cmd *cobra.Command, args []string) error {
	objective := strings.TrimSpace(args[0])

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runMaxWorkers > 0 {
		cfg.Workers.Max = runMaxWorkers
	}

	roster, err := config.LoadRoster(config.RosterPath(cwd))
	if err != nil {
		return fmt.Errorf("load agent roster (run 'dispatch init' to scaffold one): %w", err)
	}

	if !cfg.Anthropic.UseBedrock {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return err
		}
		cfg.Anthropic.APIKey = key
	}

	client, err := api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        cfg.Anthropic.APIKey,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return fmt.Errorf("create API client: %w", err)
	}

	if runID == "" {
		runID = "run-" + time.Now().Format("20060102-150405")
	}
	store, err := runstore.Open(filepath.Join(cwd, ".dispatch"), runID)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}

	db, err := state.OpenProject(cwd)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate state database: %w", err)
	}

	logger := engine.NopLogger()
	if runDebug {
		logger = engine.NewDebugLoggerForRun(store.Dir())
	}
	defer logger.Close()

	ui, uiCleanup, err := buildInteraction(store)
	if err != nil {
		return err
	}
	defer uiCleanup()

	eng, err := engine.New(engine.RequiredConfig{
		Planner: planner.NewAPIPlanner(client),
		Runner:  agentexec.NewAPIRunner(client, roster.Prompts()),
		Store:   store,
		Roles:   roster.Limits(),
	},
		engine.WithMaxWorkers(cfg.Workers.Max),
		engine.WithWaveTimeout(cfg.Timeouts.Wave),
		engine.WithUnitTimeouts(cfg.Timeouts.UnitIdle, cfg.Timeouts.UnitAbsolute),
		engine.WithMaxIterations(cfg.MaxIterations()),
		engine.WithTextLimits(cfg.Limits.CompactChars, cfg.Limits.DetailedChars),
		engine.WithStopOnFailure(runStopOnFail),
		engine.WithInteraction(ui),
		engine.WithStateStore(db),
		engine.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	go printEvents(eng.Events())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Run %s started (logs in %s)\n", runID, store.Dir())
	err = eng.Run(ctx, objective)

	in, out, calls := client.Tracker().Totals()
	fmt.Printf("Tokens: %d in / %d out over %d calls\n", in, out, calls)

	if errors.Is(err, engine.ErrIterationCeiling) {
		color.Yellow("Run %s stopped at the iteration ceiling; resume with --run-id %s", runID, runID)
		return err
	}
	if err != nil {
		return err
	}
	color.Green("Run %s completed", runID)
	return nil
}

// buildInteraction picks the interaction adapter for this invocation.
// The cleanup func is always safe to call.
func buildInteraction(store *runstore.Store) (interaction.UserInteraction, func(), error) {
	if !runNonInteract {
		c := interaction.NewConsole()
		c.UseForm = runUseForm
		return c, func() {}, nil
	}

	answersPath := filepath.Join(store.Dir(), runstore.AnswersLog)
	fa := newFileAnswers(answersPath)
	watcher, err := interaction.NewInboxWatcher(answersPath, fa.deliver)
	if err != nil {
		return nil, func() {}, fmt.Errorf("watch answers log: %w", err)
	}
	return fa, func() { watcher.Close() }, nil
}

// fileAnswers satisfies critical questions from externally appended
// answers.jsonl records instead of a terminal prompt.
type fileAnswers struct {
	path string

	mu      sync.Mutex
	got     map[string]models.Answer
	changed chan struct{}
}

func newFileAnswers(path string) *fileAnswers {
	return &fileAnswers{
		path:    path,
		got:     make(map[string]models.Answer),
		changed: make(chan struct{}, 1),
	}
}

func (f *fileAnswers) deliver(a models.Answer) {
	f.mu.Lock()
	f.got[a.QuestionID] = a
	f.mu.Unlock()
	select {
	case f.changed <- struct{}{}:
	default:
	}
}

// AskQuestions blocks until every question has an answer on disk.
func (f *fileAnswers) AskQuestions(questions []models.Question) ([]models.Answer, error) {
	fmt.Printf("Waiting for %d answer(s) in %s\n", len(questions), f.path)
	for _, q := range questions {
		fmt.Printf("  [%s] %s (id %s)\n", q.Category, q.Text, q.ID)
	}

	for {
		f.mu.Lock()
		answers := make([]models.Answer, 0, len(questions))
		for _, q := range questions {
			if a, ok := f.got[q.ID]; ok {
				answers = append(answers, a)
			}
		}
		f.mu.Unlock()

		if len(answers) == len(questions) {
			return answers, nil
		}
		<-f.changed
	}
}

func (f *fileAnswers) Notify(message string) {
	fmt.Println(message)
}

func (f *fileAnswers) RequestConfirmation(message string, def bool) (bool, error) {
	return def, nil
}

func printEvents(events <-chan engine.EngineEvent) {
	for ev := range events {
		switch ev.Type {
		case engine.EventIterationStarted:
			color.Cyan("→ %s", ev.Message)
		case engine.EventDecision:
			fmt.Printf("  planner: %s\n", ev.Message)
		case engine.EventWaveStarted:
			fmt.Printf("  wave %d started\n", ev.Wave)
		case engine.EventDelegationDone:
			fmt.Printf("    %s: %s\n", ev.DelegationID, ev.Message)
		case engine.EventWaveCompleted:
			fmt.Printf("  wave %d completed\n", ev.Wave)
		case engine.EventPolicyViolation:
			color.Yellow("  planner asked without a critical question; continuing")
		case engine.EventQuestionsAsked:
			fmt.Printf("  %s\n", ev.Message)
		case engine.EventRunDone:
			if ev.Err != nil {
				color.Red("run ended: %v", ev.Err)
			}
		}
	}
}
