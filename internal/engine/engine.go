package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ShayCichocki/dispatch/internal/agentexec"
	"github.com/ShayCichocki/dispatch/internal/delegation"
	"github.com/ShayCichocki/dispatch/internal/executor"
	"github.com/ShayCichocki/dispatch/internal/feedback"
	"github.com/ShayCichocki/dispatch/internal/interaction"
	"github.com/ShayCichocki/dispatch/internal/planner"
	"github.com/ShayCichocki/dispatch/internal/runstore"
	"github.com/ShayCichocki/dispatch/internal/state"
	"github.com/ShayCichocki/dispatch/pkg/models"
)

// ErrIterationCeiling is returned when the planner never reports done
// within the hard iteration ceiling.
var ErrIterationCeiling = errors.New("iteration ceiling reached without completion")

// Engine drives one coordination run: it asks the planner for
// decisions, turns delegate decisions into executed waves, routes
// questions to the user, and persists every step before moving on.
type Engine struct {
	planner planner.Planner
	runner  agentexec.Runner
	store   *runstore.Store
	db      state.StateStore
	ui      interaction.UserInteraction

	pool    *agentexec.RolePool
	roles   []string
	manager *delegation.Manager
	fbloop  *feedback.Loop
	exec    *executor.Parallel

	emitter  *EventEmitter
	logger   *DebugLogger
	counters *Counters
	opts     engineOptions

	// answers and answered are touched only from the Run goroutine.
	answers  []models.Answer
	answered map[string]bool
}

// New creates an Engine from required configuration and options.
func New(req RequiredConfig, options ...Option) (*Engine, error) {
	if req.Planner == nil {
		return nil, errors.New("engine: planner is required")
	}
	if req.Runner == nil {
		return nil, errors.New("engine: runner is required")
	}
	if req.Store == nil {
		return nil, errors.New("engine: run store is required")
	}
	if len(req.Roles) == 0 {
		return nil, errors.New("engine: at least one agent role is required")
	}

	opts := defaultOptions()
	for _, opt := range options {
		opt(&opts)
	}

	roles := make([]string, 0, len(req.Roles))
	for role := range req.Roles {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	validator := feedback.NewValidator()
	if opts.compactLimit > 0 {
		validator.CompactLimit = opts.compactLimit
	}
	if opts.detailedLimit > 0 {
		validator.DetailedLimit = opts.detailedLimit
	}

	e := &Engine{
		planner:  req.Planner,
		runner:   req.Runner,
		store:    req.Store,
		db:       opts.db,
		ui:       opts.ui,
		pool:     agentexec.NewRolePool(req.Roles),
		roles:    roles,
		manager:  delegation.NewManager(roles),
		fbloop:   feedback.NewLoop(validator),
		exec:     executor.NewParallel(opts.maxWorkers),
		emitter:  NewEventEmitter(opts.emitterBuffer),
		logger:   opts.logger,
		opts:     opts,
		answered: make(map[string]bool),
	}
	e.manager.SetDebugLog(e.logger.Log)
	e.exec.SetDebugLog(e.logger.Log)
	return e, nil
}

// Events returns the engine's event channel for subscribers.
func (e *Engine) Events() <-chan EngineEvent {
	return e.emitter.Events()
}

// Run executes the coordination loop for the objective until the
// planner reports done, a fatal error occurs, or the iteration ceiling
// is hit. A store opened on an existing run directory resumes: wave
// numbering, answered questions, and completed delegations carry over.
func (e *Engine) Run(ctx context.Context, objective string) error {
	runID := e.store.RunID()

	if err := e.seedFromStore(runID); err != nil {
		return fmt.Errorf("resume run state: %w", err)
	}

	if err := e.store.AppendManifest(runstore.Record{
		EventType:      runstore.EventRunStarted,
		Payload:        map[string]any{"objective": objective},
		IdempotencyKey: "run_started:" + runID,
	}); err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	if e.db != nil {
		existing, err := e.db.GetRun(runID)
		if err != nil {
			return fmt.Errorf("look up run: %w", err)
		}
		if existing == nil {
			if err := e.db.CreateRun(&state.Run{
				ID:        runID,
				Objective: objective,
				Status:    state.RunStatusRunning,
				StartedAt: e.opts.now(),
			}); err != nil {
				return fmt.Errorf("create run row: %w", err)
			}
		} else if err := e.db.UpdateRunStatus(runID, state.RunStatusRunning); err != nil {
			return fmt.Errorf("reopen run row: %w", err)
		}
	}

	for {
		iteration := e.counters.NextIteration()
		if iteration > e.opts.maxIterations {
			break
		}
		e.logger.Log("iteration %d starting", iteration)
		e.emit(EngineEvent{Type: EventIterationStarted, RunID: runID, Message: fmt.Sprintf("iteration %d", iteration)})

		pc, err := e.plannerContext(objective, iteration)
		if err != nil {
			return e.fail(runID, fmt.Errorf("assemble planner context: %w", err))
		}

		decision, err := e.planner.NextDecision(ctx, pc)
		if err != nil {
			return e.fail(runID, fmt.Errorf("planner decision: %w", err))
		}
		e.counters.AddRequests(1)
		e.emit(EngineEvent{Type: EventDecision, RunID: runID, Message: string(decision.Kind)})
		e.logger.Log("iteration %d decision: %s (%s)", iteration, decision.Kind, decision.Reason)

		switch decision.Kind {
		case planner.KindDone:
			return e.finish(runID, decision.Reason)

		case planner.KindAskUser:
			if err := e.handleAskUser(runID, iteration, decision); err != nil {
				return e.fail(runID, err)
			}

		case planner.KindDelegate:
			if err := e.runDelegation(ctx, runID, decision); err != nil {
				return e.fail(runID, err)
			}
		}
	}

	// Ceiling reached: persist the fact, then surface it.
	e.logger.Log("iteration ceiling %d reached", e.opts.maxIterations)
	if err := e.store.AppendManifest(runstore.Record{
		EventType:      runstore.EventIterationCeiled,
		Payload:        map[string]any{"max_iterations": e.opts.maxIterations},
		IdempotencyKey: "iteration_ceiling:" + runID,
	}); err != nil {
		return fmt.Errorf("record iteration ceiling: %w", err)
	}
	if e.db != nil {
		if err := e.db.UpdateRunStatus(runID, state.RunStatusCeiled); err != nil {
			return fmt.Errorf("mark run ceiled: %w", err)
		}
	}
	e.emit(EngineEvent{Type: EventRunDone, RunID: runID, Err: ErrIterationCeiling})
	return ErrIterationCeiling
}

// seedFromStore restores wave numbering, recorded answers, and
// completed delegation ids so a resumed run continues cleanly.
func (e *Engine) seedFromStore(runID string) error {
	lastWave, err := e.store.LastCompletedWave()
	if err != nil {
		return err
	}
	e.counters = NewCounters(lastWave + 1)

	records, err := e.store.Records(runstore.AnswersLog)
	if err != nil {
		return err
	}
	for _, rec := range records {
		id, _ := rec.Payload["question_id"].(string)
		if id == "" {
			continue
		}
		text, _ := rec.Payload["text"].(string)
		answeredBy, _ := rec.Payload["answered_by"].(string)
		e.answers = append(e.answers, models.Answer{
			QuestionID: id,
			Text:       text,
			AnsweredBy: answeredBy,
			CreatedAt:  rec.Timestamp,
		})
		e.answered[id] = true
	}

	if e.db != nil {
		completed, err := e.db.CompletedDelegationIDs(runID)
		if err != nil {
			return err
		}
		e.manager.SeedCompleted(completed)
		if lastWave >= 0 {
			e.logger.Log("resuming after wave %d with %d completed delegations", lastWave, len(completed))
		}
	}
	return nil
}

func (e *Engine) plannerContext(objective string, iteration int) (*planner.Context, error) {
	facts, err := e.store.LiveFacts()
	if err != nil {
		return nil, err
	}
	history := make([]models.AgentFeedback, 0)
	for _, fb := range e.fbloop.History() {
		history = append(history, *fb)
	}
	return &planner.Context{
		Objective: objective,
		Iteration: iteration,
		Facts:     facts,
		History:   history,
		Answers:   e.answers,
		Roles:     e.roles,
	}, nil
}

// handleAskUser routes planner questions. Only unanswered critical
// questions block; ask_user with no critical question at all is a
// policy violation that is logged and skipped.
func (e *Engine) handleAskUser(runID string, iteration int, decision *planner.Decision) error {
	var critical, unanswered []models.Question
	for _, q := range decision.Questions {
		if err := e.store.AppendInbox(runstore.Record{
			EventType: "question",
			Payload: map[string]any{
				"question_id": q.ID,
				"source":      q.Source,
				"text":        q.Text,
				"category":    string(q.Category),
				"context":     q.Context,
			},
			IdempotencyKey: "question:" + q.ID,
		}); err != nil {
			return fmt.Errorf("record question: %w", err)
		}
		if q.Category == models.QuestionCritical {
			critical = append(critical, q)
			if !e.answered[q.ID] {
				unanswered = append(unanswered, q)
			}
		}
	}

	if len(critical) == 0 {
		e.logger.Log("policy violation: ask_user decision with no critical question, proceeding")
		if err := e.store.AppendManifest(runstore.Record{
			EventType:      runstore.EventPolicyViolation,
			Payload:        map[string]any{"reason": "ask_user without critical question", "questions": len(decision.Questions)},
			IdempotencyKey: fmt.Sprintf("policy_violation:%s:%d", runID, iteration),
		}); err != nil {
			return fmt.Errorf("record policy violation: %w", err)
		}
		e.emit(EngineEvent{Type: EventPolicyViolation, RunID: runID})
		return nil
	}

	if len(unanswered) == 0 {
		// Every critical question already has a recorded answer; the
		// planner sees them in its next context.
		e.logger.Log("all %d critical questions already answered, not blocking", len(critical))
		return nil
	}

	if e.ui == nil {
		return fmt.Errorf("%w: %d critical questions pending", interaction.ErrNoInteraction, len(unanswered))
	}

	answers, err := e.ui.AskQuestions(unanswered)
	if err != nil {
		return fmt.Errorf("ask user: %w", err)
	}
	for _, a := range answers {
		if err := e.recordAnswer(a); err != nil {
			return err
		}
	}
	e.emit(EngineEvent{Type: EventQuestionsAsked, RunID: runID, Message: fmt.Sprintf("%d questions answered", len(answers))})
	return nil
}

func (e *Engine) recordAnswer(a models.Answer) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = e.opts.now()
	}
	if err := e.store.AppendAnswer(runstore.Record{
		EventType: "answer",
		Payload: map[string]any{
			"question_id": a.QuestionID,
			"text":        a.Text,
			"answered_by": a.AnsweredBy,
		},
		IdempotencyKey: "answer:" + a.QuestionID,
	}); err != nil {
		return fmt.Errorf("record answer: %w", err)
	}
	if !e.answered[a.QuestionID] {
		e.answers = append(e.answers, a)
		e.answered[a.QuestionID] = true
	}
	return nil
}

// runDelegation validates the decision's specs, waves them, executes
// each wave, and persists its outcome before the next wave starts.
func (e *Engine) runDelegation(ctx context.Context, runID string, decision *planner.Decision) error {
	created, err := e.manager.CreateDelegations(decision.Delegations)
	var blocked *delegation.BlockedInputsError
	if errors.As(err, &blocked) {
		// Blocked delegations are registered but never scheduled; the
		// remaining units still run.
		e.logger.Log("%d delegations blocked on missing inputs: %v", len(blocked.Missing), blocked.Missing)
		if e.ui != nil {
			e.ui.Notify(blocked.Error())
		}
	} else if err != nil {
		return fmt.Errorf("create delegations: %w", err)
	}
	e.counters.AddDelegations(len(created))

	waves, err := e.manager.ExecutionOrder(created)
	if err != nil {
		return fmt.Errorf("wave construction: %w", err)
	}

	for _, wave := range waves {
		idx := e.counters.NextWave()
		if err := e.runWave(ctx, runID, idx, wave); err != nil {
			return err
		}
		if e.opts.stopOnFailure && len(e.manager.Failed()) > 0 {
			e.logger.Log("stopping after wave %d: failures present", idx)
			break
		}
	}
	return nil
}

func (e *Engine) runWave(ctx context.Context, runID string, idx int, wave models.Wave) error {
	e.logger.Log("wave %d starting with %d delegations", idx, len(wave.Delegations))
	if err := e.store.AppendManifest(runstore.Record{
		EventType:      runstore.EventWaveStarted,
		Payload:        map[string]any{"wave": idx, "delegations": wave.IDs()},
		IdempotencyKey: fmt.Sprintf("wave_started:%s:%d", runID, idx),
	}); err != nil {
		return fmt.Errorf("record wave start: %w", err)
	}
	e.emit(EngineEvent{Type: EventWaveStarted, RunID: runID, Wave: idx})

	for _, d := range wave.Delegations {
		if err := e.manager.UpdateStatus(d.ID, models.DelegationStatusRunning, "", ""); err != nil {
			return fmt.Errorf("mark delegation %s running: %w", d.ID, err)
		}
	}

	results := e.exec.Execute(ctx, wave.Delegations, e.executeUnit, e.opts.waveTimeout)
	e.counters.AddRequests(len(wave.Delegations))

	var facts []models.Fact
	for _, d := range wave.Delegations {
		res := results[d.ID]

		var fb *models.AgentFeedback
		if res.Success {
			fb = e.fbloop.ProcessAgentResult(d.AgentID, d.ID, res.Output)
		} else {
			fb = e.fbloop.ProcessExecutionFailure(d.AgentID, d.ID, res.Error)
		}

		status := fb.Status.DelegationStatus()
		result := ""
		if fb.Output != nil {
			result = fb.Output.Summary
		}
		if err := e.manager.UpdateStatus(d.ID, status, result, fb.Error); err != nil {
			return fmt.Errorf("update delegation %s: %w", d.ID, err)
		}

		// Worker questions go to the inbox whether or not they block.
		for _, q := range fb.Questions {
			if err := e.store.AppendInbox(runstore.Record{
				EventType: "question",
				Payload: map[string]any{
					"question_id": q.ID,
					"source":      q.Source,
					"text":        q.Text,
					"category":    string(q.Category),
				},
				IdempotencyKey: "question:" + q.ID,
			}); err != nil {
				return fmt.Errorf("record worker question: %w", err)
			}
		}

		facts = append(facts, factsFrom(fb, d.ID)...)

		if err := e.store.AppendManifest(runstore.Record{
			EventType: runstore.EventDelegationDone,
			Payload: map[string]any{
				"wave":        idx,
				"delegation":  d.ID,
				"agent":       d.AgentID,
				"status":      string(status),
				"duration_ms": res.Duration.Milliseconds(),
			},
			IdempotencyKey: fmt.Sprintf("delegation_done:%s:%s", runID, d.ID),
		}); err != nil {
			return fmt.Errorf("record delegation done: %w", err)
		}
		if e.db != nil {
			if err := e.db.RecordDelegation(&state.DelegationRecord{
				RunID:     runID,
				ID:        d.ID,
				Agent:     d.AgentID,
				Task:      d.Task,
				Status:    string(status),
				Wave:      idx,
				Error:     fb.Error,
				CreatedAt: d.CreatedAt,
				DoneAt:    d.DoneAt,
			}); err != nil {
				return fmt.Errorf("snapshot delegation: %w", err)
			}
		}
		e.emit(EngineEvent{Type: EventDelegationDone, RunID: runID, Wave: idx, DelegationID: d.ID, Message: string(status)})
	}

	if len(facts) > 0 {
		if _, err := e.store.MergeFacts(facts); err != nil {
			return fmt.Errorf("merge facts: %w", err)
		}
	}

	compact, detailed := waveDocs(idx, wave, e.fbloop)
	if err := e.store.WriteWaveDocs(idx, compact, detailed); err != nil {
		return fmt.Errorf("write wave docs: %w", err)
	}

	if err := e.persistMetrics(runID, idx); err != nil {
		return err
	}

	if err := e.store.AppendManifest(runstore.Record{
		EventType:      runstore.EventWaveCompleted,
		Payload:        map[string]any{"wave": idx},
		IdempotencyKey: fmt.Sprintf("wave_completed:%s:%d", runID, idx),
	}); err != nil {
		return fmt.Errorf("record wave completion: %w", err)
	}
	e.emit(EngineEvent{Type: EventWaveCompleted, RunID: runID, Wave: idx})
	return nil
}

// executeUnit is the ExecuteFunc handed to the parallel executor. It
// reserves a role instance, applies the unit timeouts, and runs the
// delegation prompt.
func (e *Engine) executeUnit(ctx context.Context, d *models.Delegation) (string, error) {
	if err := e.pool.Acquire(d.AgentID); err != nil {
		return "", err
	}
	defer e.pool.Release(d.AgentID)

	facts, err := e.store.LiveFacts()
	if err != nil {
		return "", fmt.Errorf("load facts: %w", err)
	}
	prompt := buildWorkerPrompt(d, facts, e.answers)

	// Streaming runners get the idle+absolute watch; single-exchange
	// runners only have the absolute timeout to work with.
	if pr, ok := e.runner.(agentexec.ProgressRunner); ok {
		watchCtx, progress, stop := agentexec.IdleWatch{
			Idle:     e.opts.unitIdle,
			Absolute: e.opts.unitAbsolute,
		}.Start(ctx)
		defer stop()
		return pr.RunWithProgress(watchCtx, d.AgentID, prompt, progress)
	}
	return e.runner.Run(ctx, d.AgentID, prompt, e.opts.unitAbsolute)
}

func (e *Engine) persistMetrics(runID string, wave int) error {
	snapshot := e.counters.Snapshot()
	if err := e.store.AppendMetric(runstore.Record{
		EventType:      "counters",
		Payload:        map[string]any{"wave": wave, "counters": snapshot},
		IdempotencyKey: fmt.Sprintf("counters:%s:%d", runID, wave),
	}); err != nil {
		return fmt.Errorf("record metrics: %w", err)
	}
	if e.db != nil {
		for name, value := range snapshot {
			if err := e.db.SetMetric(runID, name, value); err != nil {
				return fmt.Errorf("store metric %s: %w", name, err)
			}
		}
	}
	return nil
}

func (e *Engine) finish(runID, reason string) error {
	if err := e.store.AppendManifest(runstore.Record{
		EventType:      runstore.EventRunCompleted,
		Payload:        map[string]any{"reason": reason},
		IdempotencyKey: "run_completed:" + runID,
	}); err != nil {
		return fmt.Errorf("record run completion: %w", err)
	}
	if e.db != nil {
		if err := e.db.UpdateRunStatus(runID, state.RunStatusCompleted); err != nil {
			return fmt.Errorf("mark run completed: %w", err)
		}
	}
	e.emit(EngineEvent{Type: EventRunDone, RunID: runID, Message: reason})
	e.logger.Log("run %s completed: %s", runID, reason)
	return nil
}

// fail marks the run failed in bookkeeping before returning the error.
// Persistence errors during failure handling are logged, not returned;
// the original error matters more.
func (e *Engine) fail(runID string, cause error) error {
	e.logger.Log("run %s failed: %v", runID, cause)
	if e.db != nil {
		if err := e.db.UpdateRunStatus(runID, state.RunStatusFailed); err != nil {
			e.logger.Log("mark run failed: %v", err)
		}
	}
	e.emit(EngineEvent{Type: EventRunDone, RunID: runID, Err: cause})
	return cause
}

func (e *Engine) emit(event EngineEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = e.opts.now()
	}
	e.emitter.Emit(event)
}

// factsFrom derives pool facts from one delegation's feedback: the
// completed summary becomes a fact, and every assumption becomes an
// assumption-flagged fact.
func factsFrom(fb *models.AgentFeedback, delegationID string) []models.Fact {
	if fb.Output == nil {
		return nil
	}
	var facts []models.Fact
	if fb.Status == models.FeedbackCompleted && fb.Output.Summary != "" {
		f := models.NewFact(fb.Output.Summary, fb.AgentID, 0.9)
		f.Sources = []string{delegationID}
		facts = append(facts, f)
	}
	for _, a := range fb.Output.Assumptions {
		f := models.NewFact(a, fb.AgentID, 0.5)
		f.Assumption = true
		f.Sources = []string{delegationID}
		facts = append(facts, f)
	}
	return facts
}
