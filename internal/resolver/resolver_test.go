package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/RosendoLopez2014/PromptPilot/api/schemas"
	"github.com/RosendoLopez2014/PromptPilot/internal/config"
)

type stubVision struct{ available bool }

func (s stubVision) Available() bool { return s.available }

func newTestResolver(t *testing.T, vision bool) *Resolver {
	t.Helper()
	cfg := config.NewDefaultConfig()
	r := NewResolver(cfg.Resolver, cfg.Screen, stubVision{available: vision}, zaptest.NewLogger(t))
	r.goos = "linux"
	return r
}

func TestResolvePriorityTable(t *testing.T) {
	r := newTestResolver(t, true)

	cases := []struct {
		input       string
		wantMatcher string
		wantKind    schemas.ActionKind
	}{
		{"What's on my screen?", "describe_screen", schemas.ActionDescribe},
		{"describe the screen", "describe_screen", schemas.ActionDescribe},
		{"click the login button", "find_click_element", schemas.ActionFindClick},
		{"find submit on the screen", "find_click_element", schemas.ActionFindClick},
		{"read the visible text", "read_text", schemas.ActionReadText},
		{"is the download finished on my screen?", "screen_question", schemas.ActionScreenAsk},
		{"create a new google sheet named budget", "create_sheet", schemas.ActionPlan},
		{"open chrome", "open_app", schemas.ActionLaunchApp},
		{"open the calculator app", "open_app", schemas.ActionLaunchApp},
		{"type 'hello world' in notepad", "type_in_app", schemas.ActionTypeInApp},
		{"draw a circle in paint", "draw_circle", schemas.ActionDrawCircle},
		{"take a screenshot", "screenshot", schemas.ActionScreenshot},
		{"play lofi beats on spotify", "media_play", schemas.ActionLaunchApp},
		{"open https://golang.org/doc", "open_url", schemas.ActionOpenURL},
		{"copy 'meeting at noon'", "clipboard_copy", schemas.ActionClipboard},
		{"open github.com", "bare_open", schemas.ActionOpenURL},
		{"open my cool editor", "open_app", schemas.ActionLaunchApp},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			match := r.Resolve(tc.input)
			require.True(t, match.Resolved(), "expected a bound action, got status %q", match.Status)
			assert.Equal(t, tc.wantMatcher, match.Matcher)
			assert.Equal(t, tc.wantKind, match.Action.Kind)
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	r := newTestResolver(t, true)
	first := r.Resolve("open chrome")
	second := r.Resolve("OPEN CHROME")
	assert.Equal(t, first.Matcher, second.Matcher)
	assert.Equal(t, first.Action.App, second.Action.App)
}

func TestScreenQueryNotCapturedByOpen(t *testing.T) {
	r := newTestResolver(t, true)
	match := r.Resolve("what's on my screen")
	require.True(t, match.Resolved())
	assert.Equal(t, schemas.ActionDescribe, match.Action.Kind)
}

func TestVisionDisabledSkipsScreenFamilies(t *testing.T) {
	r := newTestResolver(t, false)
	match := r.Resolve("what's on my screen")
	assert.False(t, match.Resolved())

	// Non-vision families still work.
	match = r.Resolve("take a screenshot")
	assert.True(t, match.Resolved())
}

func TestOpenAppExtraction(t *testing.T) {
	r := newTestResolver(t, true)

	match := r.Resolve("open notepad and then do nothing")
	require.True(t, match.Resolved())
	assert.Equal(t, "notepad", match.Action.App)

	match = r.Resolve("open the spotify app")
	require.True(t, match.Resolved())
	assert.Equal(t, "spotify", match.Action.App)
}

func TestTypeInAppExtraction(t *testing.T) {
	r := newTestResolver(t, true)

	match := r.Resolve(`type "hello there" in notepad`)
	require.True(t, match.Resolved())
	assert.Equal(t, "hello there", match.Action.Text)
	assert.Equal(t, "notepad", match.Action.App)

	match = r.Resolve("type greetings in gedit")
	require.True(t, match.Resolved())
	assert.Equal(t, "greetings", match.Action.Text)
	assert.Equal(t, "gedit", match.Action.App)
}

func TestTypeWithoutTargetFallsThrough(t *testing.T) {
	// "type" alone trips the family pattern but extraction fails; evaluation
	// must continue silently instead of erroring out.
	r := newTestResolver(t, false)
	match := r.Resolve("type hello")
	assert.False(t, match.Resolved())
	assert.Contains(t, match.Status, "Try:")
}

func TestFindClickTargetTrimming(t *testing.T) {
	r := newTestResolver(t, true)
	match := r.Resolve("click on the submit button")
	require.True(t, match.Resolved())
	assert.Equal(t, "submit", match.Action.Target)
}

func TestMediaPlayExtractsQuery(t *testing.T) {
	r := newTestResolver(t, true)
	match := r.Resolve("play rainy jazz on spotify")
	require.True(t, match.Resolved())
	assert.Equal(t, "spotify", match.Action.App)
	assert.Equal(t, "rainy jazz", match.Action.Query)
}

func TestBareOpenClassification(t *testing.T) {
	r := newTestResolver(t, true)

	match := r.Resolve("open news.ycombinator.com")
	require.True(t, match.Resolved())
	assert.Equal(t, schemas.ActionOpenURL, match.Action.Kind)
	assert.Equal(t, "https://news.ycombinator.com", match.Action.URL)

	match = r.Resolve("open my photo viewer")
	require.True(t, match.Resolved())
	assert.Equal(t, schemas.ActionLaunchApp, match.Action.Kind)
}

func TestSheetPlanShape(t *testing.T) {
	r := newTestResolver(t, true)
	match := r.Resolve("create a new google sheet named budget")
	require.True(t, match.Resolved())
	require.NotNil(t, match.Action.Plan)

	plan := match.Action.Plan
	assert.Equal(t, schemas.OriginPattern, plan.Origin)
	require.NotEmpty(t, plan.Steps)
	assert.Equal(t, schemas.StepOpenURL, plan.Steps[0].Kind)
	assert.Equal(t, "https://sheets.new", plan.Steps[0].URL)

	var keys []string
	for _, s := range plan.Steps {
		if s.Kind == schemas.StepPressKey {
			keys = append(keys, s.Key)
		}
	}
	assert.Equal(t, []string{"ctrl+a", "enter"}, keys)
}

func TestSheetPlanDarwinUsesCmd(t *testing.T) {
	r := newTestResolver(t, true)
	r.goos = "darwin"
	match := r.Resolve("make a google sheet")
	require.True(t, match.Resolved())
	require.NotNil(t, match.Action.Plan)
	assert.Equal(t, "cmd+a", match.Action.Plan.Steps[4].Key)
}

func TestUnresolvedGuidance(t *testing.T) {
	r := newTestResolver(t, false)
	match := r.Resolve("do something entirely inscrutable")
	assert.False(t, match.Resolved())
	assert.Contains(t, match.Status, "open chrome")
}

func TestNeedsSynthesis(t *testing.T) {
	r := newTestResolver(t, true)

	assert.True(t, r.NeedsSynthesis("open chrome then search for weather"))
	assert.True(t, r.NeedsSynthesis("open spotify and play something"))
	assert.True(t, r.NeedsSynthesis("configure my display settings"))
	assert.False(t, r.NeedsSynthesis("open chrome"))
	assert.False(t, r.NeedsSynthesis("take a screenshot"))

	// Sheet creation is a fixed pattern despite the "create" verb.
	assert.False(t, r.NeedsSynthesis("create a google sheet named budget"))
	assert.True(t, r.NeedsSynthesis("create a presentation about turtles"))
}
