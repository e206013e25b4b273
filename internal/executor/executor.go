// Package executor turns resolved actions and synthesized plans into calls
// on the automation boundary, with fixed settle pacing between steps.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/RosendoLopez2014/PromptPilot/api/schemas"
	"github.com/RosendoLopez2014/PromptPilot/internal/config"
	"github.com/RosendoLopez2014/PromptPilot/internal/screen"
)

// StepOutcome classifies what happened to one plan step.
type StepOutcome string

const (
	OutcomeExecuted StepOutcome = "executed"
	OutcomeSkipped  StepOutcome = "skipped"
	OutcomeFailed   StepOutcome = "failed"
)

// StepResult records the outcome of one step so skips are observable.
type StepResult struct {
	Index   int              `json:"index"`
	Kind    schemas.StepKind `json:"kind"`
	Outcome StepOutcome      `json:"outcome"`
	Reason  string           `json:"reason,omitempty"`
}

// Report summarizes one plan execution.
type Report struct {
	Steps   []StepResult `json:"steps"`
	Message string       `json:"message"`
}

// Executed counts steps that ran successfully.
func (r Report) Executed() int { return r.count(OutcomeExecuted) }

// Skipped counts steps whose target could not be resolved.
func (r Report) Skipped() int { return r.count(OutcomeSkipped) }

func (r Report) count(o StepOutcome) int {
	n := 0
	for _, s := range r.Steps {
		if s.Outcome == o {
			n++
		}
	}
	return n
}

// circleMacro is satisfied by automators that support the drawing and
// in-app search gestures beyond the base boundary.
type circleMacro interface {
	DrawCircle(ctx context.Context, centerX, centerY, radius int) error
	SearchInApp(ctx context.Context, query string) error
}

// Executor walks plans strictly in order on the caller's goroutine. No step
// retries; a step that fails to resolve is skipped, never aborts the plan.
type Executor struct {
	automator schemas.Automator
	analyzer  *screen.Analyzer
	cfg       config.ExecutorConfig
	screenCfg config.ScreenConfig
	logger    *zap.Logger
}

// NewExecutor creates an Executor. analyzer may be nil; text-target clicks
// and vision actions then degrade to skips and unavailability messages.
func NewExecutor(automator schemas.Automator, analyzer *screen.Analyzer, cfg config.ExecutorConfig, screenCfg config.ScreenConfig, logger *zap.Logger) *Executor {
	return &Executor{
		automator: automator,
		analyzer:  analyzer,
		cfg:       cfg,
		screenCfg: screenCfg,
		logger:    logger.Named("executor"),
	}
}

// Execute performs a resolved action. Plan variants walk every step; single
// variants map to one or a few automator calls. The returned string is the
// user-facing completion message.
func (e *Executor) Execute(ctx context.Context, action *schemas.ResolvedAction) (string, error) {
	switch action.Kind {
	case schemas.ActionOpenURL:
		if err := e.automator.OpenURL(ctx, action.URL); err != nil {
			return "", err
		}
		return fmt.Sprintf("Opened %s", action.URL), nil

	case schemas.ActionLaunchApp:
		if err := e.automator.LaunchApp(ctx, action.App); err != nil {
			return "", err
		}
		if action.Query != "" {
			if err := e.automator.Wait(ctx, e.cfg.OpenSettle); err != nil {
				return "", err
			}
			if macro, ok := e.automator.(circleMacro); ok {
				if err := macro.SearchInApp(ctx, action.Query); err != nil {
					return "", err
				}
				return fmt.Sprintf("Opened %s and searched for %q", action.App, action.Query), nil
			}
		}
		return fmt.Sprintf("Opened %s", action.App), nil

	case schemas.ActionTypeInApp:
		if err := e.automator.LaunchApp(ctx, action.App); err != nil {
			return "", err
		}
		if err := e.automator.Wait(ctx, e.cfg.OpenSettle); err != nil {
			return "", err
		}
		if err := e.automator.TypeText(ctx, action.Text, e.cfg.InterKeyDelay); err != nil {
			return "", err
		}
		return fmt.Sprintf("Typed into %s", action.App), nil

	case schemas.ActionScreenshot:
		path, err := e.automator.TakeScreenshot(ctx, "")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Screenshot saved to %s", path), nil

	case schemas.ActionClipboard:
		if err := e.automator.CopyToClipboard(action.Text); err != nil {
			return "", err
		}
		return "Copied to clipboard", nil

	case schemas.ActionDescribe:
		return e.describeScreen(ctx)

	case schemas.ActionFindClick:
		return e.findAndClick(ctx, action.Target)

	case schemas.ActionReadText:
		return e.readText(ctx)

	case schemas.ActionDrawCircle:
		return e.drawCircle(ctx)

	case schemas.ActionPlan:
		if action.Plan == nil || action.Plan.Empty() {
			return "Could not generate a plan for that", nil
		}
		report := e.ExecutePlan(ctx, *action.Plan)
		return report.Message, nil

	default:
		return "", fmt.Errorf("unsupported action kind %q", action.Kind)
	}
}

// ExecutePlan walks steps strictly in order. open_url settles for the full
// load delay; type and press_key settle briefly; a click whose text target
// is not on the current screen is recorded as skipped and execution
// continues.
func (e *Executor) ExecutePlan(ctx context.Context, plan schemas.Plan) Report {
	report := Report{Steps: make([]StepResult, 0, len(plan.Steps))}

	for i, step := range plan.Steps {
		result := StepResult{Index: i, Kind: step.Kind, Outcome: OutcomeExecuted}
		if err := e.executeStep(ctx, step, &result); err != nil {
			result.Outcome = OutcomeFailed
			result.Reason = err.Error()
			e.logger.Warn("Step failed",
				zap.Int("index", i), zap.String("kind", string(step.Kind)), zap.Error(err))
		}
		report.Steps = append(report.Steps, result)

		if ctx.Err() != nil {
			break
		}
	}

	executed := report.Executed()
	if skipped := report.Skipped(); skipped > 0 {
		report.Message = fmt.Sprintf("Plan finished: %d of %d steps executed, %d skipped",
			executed, len(plan.Steps), skipped)
	} else {
		report.Message = fmt.Sprintf("Plan finished: %d of %d steps executed", executed, len(plan.Steps))
	}
	return report
}

func (e *Executor) executeStep(ctx context.Context, step schemas.ActionStep, result *StepResult) error {
	switch step.Kind {
	case schemas.StepOpenURL:
		if err := e.automator.OpenURL(ctx, step.URL); err != nil {
			return err
		}
		return e.automator.Wait(ctx, e.cfg.OpenSettle)

	case schemas.StepClick:
		return e.executeClick(ctx, step, result)

	case schemas.StepType:
		if err := e.automator.TypeText(ctx, step.Text, e.cfg.InterKeyDelay); err != nil {
			return err
		}
		return e.automator.Wait(ctx, e.cfg.InputSettle)

	case schemas.StepWait:
		d := time.Duration(step.Seconds * float64(time.Second))
		if d <= 0 {
			d = e.cfg.DefaultWait
		}
		return e.automator.Wait(ctx, d)

	case schemas.StepPressKey:
		if err := e.automator.PressKey(ctx, step.Key); err != nil {
			return err
		}
		return e.automator.Wait(ctx, e.cfg.InputSettle)

	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

// executeClick resolves text targets against a fresh snapshot at execution
// time; coordinates from synthesis may be stale. A target not on screen is
// a skip, not a failure.
func (e *Executor) executeClick(ctx context.Context, step schemas.ActionStep, result *StepResult) error {
	if step.HasCoordinates() {
		return e.automator.Click(ctx, step.X, step.Y, true, nil)
	}

	if e.analyzer == nil || !e.analyzer.Available() {
		result.Outcome = OutcomeSkipped
		result.Reason = "screen reading not available"
		return nil
	}

	hits, err := e.analyzer.FindText(ctx, step.TargetText, false)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		result.Outcome = OutcomeSkipped
		result.Reason = fmt.Sprintf("%q not found on screen", step.TargetText)
		e.logger.Info("Click target not on screen, skipping", zap.String("target", step.TargetText))
		return nil
	}

	hit := hits[0]
	return e.automator.Click(ctx, hit.X, hit.Y, true, &hit.Box)
}

func (e *Executor) describeScreen(ctx context.Context) (string, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return "Screen reading is not available", nil
	}

	buttons := snap.FragmentsOfKind(schemas.FragmentButton)
	inputs := snap.FragmentsOfKind(schemas.FragmentInput)

	var b strings.Builder
	fmt.Fprintf(&b, "I can see %d text fragments, %d buttons and %d input fields.",
		len(snap.Fragments), len(buttons), len(inputs))
	if excerpt := excerptOf(snap.FullText, 200); excerpt != "" {
		fmt.Fprintf(&b, " Visible text starts: %s", excerpt)
	}
	return b.String(), nil
}

func (e *Executor) findAndClick(ctx context.Context, target string) (string, error) {
	if e.analyzer == nil || !e.analyzer.Available() {
		return "Screen reading is not available", nil
	}
	hits, err := e.analyzer.FindText(ctx, target, false)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return fmt.Sprintf("Could not find %q on screen", target), nil
	}
	hit := hits[0]
	if err := e.automator.Click(ctx, hit.X, hit.Y, true, &hit.Box); err != nil {
		return "", err
	}
	return fmt.Sprintf("Clicked %q at (%d, %d)", target, hit.X, hit.Y), nil
}

func (e *Executor) readText(ctx context.Context) (string, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return "Screen reading is not available", nil
	}
	text := strings.TrimSpace(snap.FullText)
	if text == "" {
		return "No readable text on screen", nil
	}
	return excerptOf(text, 500), nil
}

// drawCircle launches the paint application, waits for it to load, then
// draws a circle at the display center with the pointer button held.
func (e *Executor) drawCircle(ctx context.Context) (string, error) {
	macro, ok := e.automator.(circleMacro)
	if !ok {
		return "Drawing is not supported by this automator", nil
	}
	if err := e.automator.LaunchApp(ctx, "paint"); err != nil {
		return "", err
	}
	if err := e.automator.Wait(ctx, e.cfg.OpenSettle); err != nil {
		return "", err
	}
	centerX := e.screenCfg.DisplayWidth / 2
	centerY := e.screenCfg.DisplayHeight / 2
	if err := macro.DrawCircle(ctx, centerX, centerY, 100); err != nil {
		return "", err
	}
	return "Drew a circle", nil
}

func (e *Executor) snapshot(ctx context.Context) (*schemas.ScreenSnapshot, error) {
	if e.analyzer == nil || !e.analyzer.Available() {
		return nil, screen.ErrVisionUnavailable
	}
	return e.analyzer.Snapshot(ctx)
}

func excerptOf(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	// Back off to a rune boundary so the cut never splits a UTF-8 sequence.
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + "..."
}
