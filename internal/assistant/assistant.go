// Package assistant wires instruction resolution, plan synthesis and
// execution behind a channel-based task surface.
package assistant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/RosendoLopez2014/PromptPilot/api/schemas"
	"github.com/RosendoLopez2014/PromptPilot/internal/executor"
	"github.com/RosendoLopez2014/PromptPilot/internal/llmclient"
	"github.com/RosendoLopez2014/PromptPilot/internal/planner"
	"github.com/RosendoLopez2014/PromptPilot/internal/resolver"
	"github.com/RosendoLopez2014/PromptPilot/internal/screen"
)

// EventKind distinguishes progress updates from the terminal result.
type EventKind string

const (
	EventStatus EventKind = "status"
	EventResult EventKind = "result"
)

// Event is one update on an instruction's progress. The last event on a
// task channel is always a result; the channel is closed after it. Success
// is meaningful only on result events.
type Event struct {
	TaskID  string    `json:"task_id"`
	Kind    EventKind `json:"kind"`
	Message string    `json:"message"`
	Success bool      `json:"success,omitempty"`
}

// Assistant is the top-level coordinator. Each submitted instruction gets
// its own worker goroutine; plan execution across instructions is
// serialized by a single-slot semaphore because all plans ultimately drive
// the same shared mouse and keyboard.
type Assistant struct {
	resolver *resolver.Resolver
	planner  *planner.Planner
	executor *executor.Executor
	analyzer *screen.Analyzer
	logger   *zap.Logger
	execGate *semaphore.Weighted
}

// New wires an Assistant. analyzer may be nil when no screen reader exists.
func New(res *resolver.Resolver, plan *planner.Planner, exec *executor.Executor, analyzer *screen.Analyzer, logger *zap.Logger) *Assistant {
	return &Assistant{
		resolver: res,
		planner:  plan,
		executor: exec,
		analyzer: analyzer,
		logger:   logger.Named("assistant"),
		execGate: semaphore.NewWeighted(1),
	}
}

// BackendAvailability reports the synthesis backend state, probing it on
// first call.
func (a *Assistant) BackendAvailability(ctx context.Context) llmclient.Availability {
	return a.planner.Availability(ctx)
}

// RecheckBackend re-probes the backend, for use after the user installs or
// starts it mid-session.
func (a *Assistant) RecheckBackend(ctx context.Context) llmclient.Availability {
	return a.planner.Recheck(ctx)
}

// Submit starts a worker for the instruction and returns its event channel.
// The channel carries zero or more status events followed by exactly one
// result event, then closes. The worker never panics the process; failures
// surface as a result event.
func (a *Assistant) Submit(ctx context.Context, instruction schemas.Instruction) <-chan Event {
	events := make(chan Event, 8)
	taskID := uuid.NewString()

	go func() {
		defer close(events)
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("Instruction worker panicked", zap.Any("panic", r))
				events <- Event{TaskID: taskID, Kind: EventResult, Success: false,
					Message: fmt.Sprintf("Task aborted: %v", r)}
			}
		}()
		a.run(ctx, taskID, instruction, events)
	}()

	return events
}

func (a *Assistant) run(ctx context.Context, taskID string, instruction schemas.Instruction, events chan<- Event) {
	status := func(msg string) {
		events <- Event{TaskID: taskID, Kind: EventStatus, Message: msg}
	}
	result := func(msg string, ok bool) {
		events <- Event{TaskID: taskID, Kind: EventResult, Message: msg, Success: ok}
	}

	a.logger.Info("Instruction received",
		zap.String("task_id", taskID),
		zap.String("source", string(instruction.Source)))

	backendUsable := a.planner.Availability(ctx).Usable()

	// Compound instructions go straight to synthesis so they are not
	// truncated to their first clause by a shallow pattern. Without a
	// backend they cannot be honored at all; running a partial pattern
	// match would execute a fragment of what was asked.
	if a.resolver.NeedsSynthesis(instruction.Text) {
		if !backendUsable {
			result("Language model not available for multi-step instructions. "+a.resolver.Guidance(), false)
			return
		}
		a.synthesizeAndExecute(ctx, instruction.Text, status, result)
		return
	}

	match := a.resolver.Resolve(instruction.Text)
	if match.Resolved() {
		status(match.Status)
		a.executeAction(ctx, match.Action, result)
		return
	}

	if backendUsable {
		a.synthesizeAndExecute(ctx, instruction.Text, status, result)
		return
	}

	// No pattern, no backend: the status already carries the guidance text.
	result(match.Status, false)
}

func (a *Assistant) synthesizeAndExecute(ctx context.Context, instruction string, status func(string), result func(string, bool)) {
	status("Thinking...")

	snapshot := a.currentSnapshot(ctx)
	plan := a.planner.Synthesize(ctx, instruction, snapshot)
	if plan.Empty() {
		result("Could not generate a plan for that", false)
		return
	}

	status(fmt.Sprintf("Executing %d steps...", len(plan.Steps)))
	action := &schemas.ResolvedAction{Kind: schemas.ActionPlan, Plan: &plan}
	a.executeAction(ctx, action, result)
}

// executeAction runs one resolved action under the execution gate. Screen
// questions are answered through the planner rather than the executor since
// they need the language model, not the input stack.
func (a *Assistant) executeAction(ctx context.Context, action *schemas.ResolvedAction, result func(string, bool)) {
	if action.Kind == schemas.ActionScreenAsk {
		a.answerScreenQuestion(ctx, action.Query, result)
		return
	}

	if err := a.execGate.Acquire(ctx, 1); err != nil {
		result("Cancelled before execution started", false)
		return
	}
	defer a.execGate.Release(1)

	message, err := a.executor.Execute(ctx, action)
	if err != nil {
		a.logger.Warn("Action execution failed", zap.Error(err))
		result(fmt.Sprintf("Action failed: %v", err), false)
		return
	}
	result(message, true)
}

func (a *Assistant) answerScreenQuestion(ctx context.Context, question string, result func(string, bool)) {
	snapshot := a.currentSnapshot(ctx)
	if answer, ok := a.planner.Answer(ctx, question, snapshot); ok {
		result(answer, true)
		return
	}

	// Without a language model, degrade to the plain screen description.
	describe := &schemas.ResolvedAction{Kind: schemas.ActionDescribe}
	message, err := a.executor.Execute(ctx, describe)
	if err != nil {
		result(fmt.Sprintf("Could not read the screen: %v", err), false)
		return
	}
	result(message, true)
}

func (a *Assistant) currentSnapshot(ctx context.Context) *schemas.ScreenSnapshot {
	if a.analyzer == nil || !a.analyzer.Available() {
		return nil
	}
	snapshot, err := a.analyzer.Snapshot(ctx)
	if err != nil {
		a.logger.Debug("Screen capture failed, continuing without it", zap.Error(err))
		return nil
	}
	return snapshot
}
