package schemas

import (
	"fmt"
	"strings"
	"time"
)

// InstructionSource identifies how an instruction reached the assistant.
type InstructionSource string

const (
	SourceTyped InstructionSource = "typed"
	SourceVoice InstructionSource = "voice"
)

// Instruction is a single raw user prompt. It is immutable once received and
// lives for exactly one resolution cycle.
type Instruction struct {
	Text       string            `json:"text"`
	Source     InstructionSource `json:"source"`
	ReceivedAt time.Time         `json:"received_at"`
}

// NewInstruction creates an Instruction stamped with the current time.
func NewInstruction(text string, source InstructionSource) Instruction {
	return Instruction{Text: text, Source: source, ReceivedAt: time.Now().UTC()}
}

// StepKind identifies one primitive automation operation.
type StepKind string

const (
	StepOpenURL  StepKind = "open_url"
	StepClick    StepKind = "click"
	StepType     StepKind = "type"
	StepWait     StepKind = "wait"
	StepPressKey StepKind = "press_key"
)

// ActionStep is a closed tagged variant over the primitive operations the
// executor understands. Exactly the fields implied by Kind are meaningful.
//
// The JSON shape matches the vocabulary the plan synthesizer teaches the
// model: {"action": "click", "text": "Login"}, {"action": "wait", "seconds": 2}.
type ActionStep struct {
	Kind StepKind `json:"action"`

	// open_url
	URL string `json:"url,omitempty"`

	// click: either absolute coordinates or a text target resolved against a
	// fresh screen snapshot at execution time.
	X          int    `json:"x,omitempty"`
	Y          int    `json:"y,omitempty"`
	TargetText string `json:"text,omitempty"`

	// type reuses TargetText for its payload on the wire ("text"); Text holds
	// the decoded value after validation.
	Text string `json:"-"`

	// wait; wait_for variants carry the duration as "timeout" instead.
	Seconds        float64 `json:"seconds,omitempty"`
	TimeoutSeconds float64 `json:"timeout,omitempty"`

	// press_key
	Key string `json:"key,omitempty"`
}

// Normalize resolves wire-level ambiguity after JSON decoding: the "text"
// field carries the click target for click steps but the payload for type
// steps. Call once per decoded step, before Validate.
func (s *ActionStep) Normalize() {
	if s.Kind == StepType && s.Text == "" {
		s.Text = s.TargetText
		s.TargetText = ""
	}
}

// HasCoordinates reports whether a click step carries absolute coordinates.
func (s ActionStep) HasCoordinates() bool {
	return s.X != 0 || s.Y != 0
}

// Validate checks that the step is executable without further lookup, except
// for text-target clicks which are resolved against a fresh snapshot later.
func (s ActionStep) Validate() error {
	switch s.Kind {
	case StepOpenURL:
		if strings.TrimSpace(s.URL) == "" {
			return fmt.Errorf("open_url step requires a url")
		}
	case StepClick:
		if !s.HasCoordinates() && strings.TrimSpace(s.TargetText) == "" {
			return fmt.Errorf("click step requires coordinates or a text target")
		}
	case StepType:
		if s.Text == "" {
			return fmt.Errorf("type step requires text")
		}
	case StepWait:
		if s.Seconds < 0 {
			return fmt.Errorf("wait step requires a non-negative duration")
		}
	case StepPressKey:
		if strings.TrimSpace(s.Key) == "" {
			return fmt.Errorf("press_key step requires a key")
		}
	default:
		return fmt.Errorf("unknown step kind %q", s.Kind)
	}
	return nil
}

// PlanOrigin records which component produced a plan.
type PlanOrigin string

const (
	OriginPattern   PlanOrigin = "pattern"
	OriginSynthesis PlanOrigin = "synthesis"
)

// Plan is an ordered, finite sequence of action steps. A plan is consumed
// once; re-execution re-acquires screen state and may behave differently.
type Plan struct {
	Steps     []ActionStep `json:"steps"`
	Origin    PlanOrigin   `json:"origin"`
	CreatedAt time.Time    `json:"created_at"`
}

// Empty reports whether the plan carries no steps.
func (p Plan) Empty() bool { return len(p.Steps) == 0 }

// ActionKind identifies the variant held by a ResolvedAction.
type ActionKind string

const (
	ActionOpenURL    ActionKind = "open_url"
	ActionLaunchApp  ActionKind = "launch_app"
	ActionTypeInApp  ActionKind = "type_in_app"
	ActionScreenshot ActionKind = "screenshot"
	ActionClipboard  ActionKind = "clipboard_copy"
	ActionDescribe   ActionKind = "describe_screen"
	ActionFindClick  ActionKind = "find_click"
	ActionReadText   ActionKind = "read_text"
	ActionScreenAsk  ActionKind = "screen_question"
	ActionDrawCircle ActionKind = "draw_circle"
	ActionPlan       ActionKind = "plan"
)

// ResolvedAction is the resolver's output: a closed tagged variant bound to
// concrete arguments, turned into primitive calls only at the execution
// boundary. A multi-step resolution carries a Plan variant.
type ResolvedAction struct {
	Kind ActionKind `json:"kind"`

	URL     string `json:"url,omitempty"`
	App     string `json:"app,omitempty"`
	Text    string `json:"text,omitempty"`
	Target  string `json:"target,omitempty"`
	Query   string `json:"query,omitempty"`
	Plan    *Plan  `json:"plan,omitempty"`
}

// Match is the result of one resolution attempt. A nil Action signifies
// "unresolved"; Status is always user-presentable.
type Match struct {
	Status  string          `json:"status"`
	Matcher string          `json:"matcher,omitempty"`
	Action  *ResolvedAction `json:"action,omitempty"`
}

// Resolved reports whether the instruction was bound to an action.
func (m Match) Resolved() bool { return m.Action != nil }

// FragmentKind is the coarse UI-element category assigned to OCR fragments.
type FragmentKind string

const (
	FragmentButton FragmentKind = "button"
	FragmentInput  FragmentKind = "input"
	FragmentPlain  FragmentKind = "plain"
)

// BoundingBox is an axis-aligned rectangle in screen pixels.
type BoundingBox struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() (x, y int) {
	return b.Left + b.Width/2, b.Top + b.Height/2
}

// TextFragment is one OCR-extracted run of text with its screen position.
type TextFragment struct {
	Text       string       `json:"text"`
	Box        BoundingBox  `json:"box"`
	Confidence float64      `json:"confidence"`
	Kind       FragmentKind `json:"kind"`
}

// ScreenSnapshot is a point-in-time capture of the display. Snapshots are
// never mutated after creation; callers needing fresh state must request a
// new one.
type ScreenSnapshot struct {
	Image     []byte         `json:"-"`
	FullText  string         `json:"full_text"`
	Fragments []TextFragment `json:"fragments"`
	TakenAt   time.Time      `json:"taken_at"`
}

// FragmentsOfKind filters the snapshot's fragments by category.
func (s *ScreenSnapshot) FragmentsOfKind(kind FragmentKind) []TextFragment {
	var out []TextFragment
	for _, f := range s.Fragments {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// TextHit is one location where a text target was found on screen.
type TextHit struct {
	X   int         `json:"x"`
	Y   int         `json:"y"`
	Box BoundingBox `json:"box"`
}

// GenerationOptions tune a single backend generation call.
type GenerationOptions struct {
	Temperature     float32 `json:"temperature"`
	ForceJSONFormat bool    `json:"force_json_format"`
}

// GenerationRequest is the provider-agnostic shape of one LLM call.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Options      GenerationOptions `json:"options"`
}
