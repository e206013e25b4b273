// Package planner synthesizes multi-step automation plans from instructions
// the fixed pattern table cannot resolve, grounded in the current screen
// state via a local language model.
package planner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/RosendoLopez2014/PromptPilot/api/schemas"
	"github.com/RosendoLopez2014/PromptPilot/internal/config"
	"github.com/RosendoLopez2014/PromptPilot/internal/llmclient"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// systemPrompt teaches the model the exact action vocabulary. Anything
// outside it is discarded during validation.
const systemPrompt = `You are a desktop automation agent with vision capabilities.

Available actions:
- open_url: {"action": "open_url", "url": "https://example.com"}
- click: {"action": "click", "x": 100, "y": 200} or {"action": "click", "text": "Login"}
- type: {"action": "type", "text": "Hello"}
- wait: {"action": "wait", "seconds": 2}
- press_key: {"action": "press_key", "key": "enter"}

Return ONLY a JSON array of action objects, no other text.`

// Planner builds bounded prompts and converts model output into validated
// plans. Every failure mode yields an empty plan; nothing here propagates
// model misbehavior as an error.
type Planner struct {
	client    schemas.LLMClient
	cfg       config.BackendConfig
	screenCfg config.ScreenConfig
	logger    *zap.Logger

	checkOnce sync.Once
	mu        sync.RWMutex
	avail     llmclient.Availability
}

// NewPlanner creates a Planner. The backend is not probed until first use.
func NewPlanner(client schemas.LLMClient, cfg config.BackendConfig, screenCfg config.ScreenConfig, logger *zap.Logger) *Planner {
	return &Planner{
		client:    client,
		cfg:       cfg,
		screenCfg: screenCfg,
		logger:    logger.Named("planner"),
	}
}

// Availability returns the backend availability, performing the one-time
// probe and model pull on first call. Subsequent calls are constant-time
// until Recheck.
func (p *Planner) Availability(ctx context.Context) llmclient.Availability {
	p.checkOnce.Do(func() {
		avail := llmclient.CheckAvailability(ctx, p.client, p.cfg.Model, p.logger)
		p.mu.Lock()
		p.avail = avail
		p.mu.Unlock()
	})
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.avail
}

// Recheck re-probes the backend, for use after the user installs or starts
// it mid-session.
func (p *Planner) Recheck(ctx context.Context) llmclient.Availability {
	avail := llmclient.CheckAvailability(ctx, p.client, p.cfg.Model, p.logger)
	p.mu.Lock()
	p.avail = avail
	p.mu.Unlock()
	return avail
}

// Synthesize generates a plan for the instruction from the current screen
// state. Returns an empty plan when the backend is unavailable, the call
// fails or times out, or the response contains no parseable steps.
func (p *Planner) Synthesize(ctx context.Context, instruction string, snapshot *schemas.ScreenSnapshot) schemas.Plan {
	empty := schemas.Plan{Origin: schemas.OriginSynthesis, CreatedAt: time.Now().UTC()}

	if !p.Availability(ctx).Usable() {
		return empty
	}

	req := schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   p.buildUserPrompt(instruction, snapshot),
		Options: schemas.GenerationOptions{
			Temperature:     p.cfg.Temperature,
			ForceJSONFormat: true,
		},
	}

	response, err := p.client.Generate(ctx, req)
	if err != nil {
		p.logger.Warn("Plan generation failed", zap.Error(err))
		return empty
	}

	steps := p.extractSteps(response)
	if len(steps) == 0 {
		p.logger.Warn("Model response contained no usable steps",
			zap.Int("response_len", len(response)))
		return empty
	}

	p.logger.Info("Plan synthesized", zap.Int("steps", len(steps)))
	return schemas.Plan{
		Steps:     steps,
		Origin:    schemas.OriginSynthesis,
		CreatedAt: time.Now().UTC(),
	}
}

// buildUserPrompt assembles the bounded context: a truncated OCR excerpt,
// a capped digest of detected buttons and inputs, and the raw instruction.
func (p *Planner) buildUserPrompt(instruction string, snapshot *schemas.ScreenSnapshot) string {
	var b strings.Builder

	ocr := ""
	var elements string
	if snapshot != nil {
		ocr = truncateAtRune(snapshot.FullText, p.screenCfg.OCRExcerptLimit)
		elements = p.elementDigest(snapshot)
	}

	fmt.Fprintf(&b, "Current screen OCR text:\n%s\n\n", ocr)
	fmt.Fprintf(&b, "Detected UI elements:\n%s\n", elements)
	fmt.Fprintf(&b, "User command: %s\n\n", instruction)
	b.WriteString("Generate a step-by-step plan as JSON array:")
	return b.String()
}

func (p *Planner) elementDigest(snapshot *schemas.ScreenSnapshot) string {
	var b strings.Builder
	limit := p.screenCfg.ElementDigestLimit
	if limit <= 0 {
		limit = 10
	}

	if buttons := fragmentTexts(snapshot.FragmentsOfKind(schemas.FragmentButton), limit); len(buttons) > 0 {
		fmt.Fprintf(&b, "Buttons: %s\n", strings.Join(buttons, ", "))
	}
	if inputs := fragmentTexts(snapshot.FragmentsOfKind(schemas.FragmentInput), limit); len(inputs) > 0 {
		fmt.Fprintf(&b, "Input fields: %s\n", strings.Join(inputs, ", "))
	}
	return b.String()
}

func fragmentTexts(fragments []schemas.TextFragment, limit int) []string {
	if len(fragments) > limit {
		fragments = fragments[:limit]
	}
	out := make([]string, 0, len(fragments))
	for _, f := range fragments {
		out = append(out, f.Text)
	}
	return out
}

// Answer responds to a free-form question about the current screen using the
// OCR excerpt as grounding. The second return is false when the backend is
// unusable or the call fails; the caller falls back to a canned message.
func (p *Planner) Answer(ctx context.Context, question string, snapshot *schemas.ScreenSnapshot) (string, bool) {
	if !p.Availability(ctx).Usable() {
		return "", false
	}

	ocr := ""
	if snapshot != nil {
		ocr = truncateAtRune(snapshot.FullText, p.screenCfg.OCRExcerptLimit)
	}

	req := schemas.GenerationRequest{
		SystemPrompt: "You are a desktop assistant. Answer the user's question about their screen in one or two short sentences, using only the OCR text provided.",
		UserPrompt:   fmt.Sprintf("Screen OCR text:\n%s\n\nQuestion: %s", ocr, question),
		Options:      schemas.GenerationOptions{Temperature: p.cfg.Temperature},
	}

	response, err := p.client.Generate(ctx, req)
	if err != nil {
		p.logger.Warn("Screen question failed", zap.Error(err))
		return "", false
	}
	return strings.TrimSpace(response), true
}

// extractSteps pulls action steps out of unstructured model output. Strategy:
// the span from the first '[' to the last ']' parsed as an array; failing
// that, the first '{' to the last '}' parsed as a single object wrapped in a
// one-element sequence. Unknown or invalid steps are dropped, not fatal.
func (p *Planner) extractSteps(response string) []schemas.ActionStep {
	if raw := sliceBetween(response, '[', ']'); raw != "" {
		var steps []schemas.ActionStep
		if err := json.Unmarshal([]byte(raw), &steps); err == nil {
			return p.validateSteps(steps)
		}
	}

	if raw := sliceBetween(response, '{', '}'); raw != "" {
		var step schemas.ActionStep
		if err := json.Unmarshal([]byte(raw), &step); err == nil {
			return p.validateSteps([]schemas.ActionStep{step})
		}
	}

	return nil
}

// truncateAtRune caps s at limit bytes without cutting a rune in half. A
// non-positive limit disables the cap.
func truncateAtRune(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// sliceBetween returns the span from the first left to the last right byte,
// inclusive, or "" when no such span exists.
func sliceBetween(s string, left, right byte) string {
	start := strings.IndexByte(s, left)
	end := strings.LastIndexByte(s, right)
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func (p *Planner) validateSteps(steps []schemas.ActionStep) []schemas.ActionStep {
	out := make([]schemas.ActionStep, 0, len(steps))
	for _, s := range steps {
		// wait_for appears in older model outputs; treat it as a plain wait,
		// carrying its "timeout" duration over.
		if string(s.Kind) == "wait_for" {
			s.Kind = schemas.StepWait
			if s.Seconds == 0 {
				s.Seconds = s.TimeoutSeconds
			}
		}
		s.Normalize()
		if err := s.Validate(); err != nil {
			p.logger.Debug("Dropping invalid step", zap.String("kind", string(s.Kind)), zap.Error(err))
			continue
		}
		out = append(out, s)
	}
	return out
}
