// Package resolver turns free-form natural-language instructions into bound
// actions via a fixed, priority-ordered table of pattern matchers.
package resolver

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/RosendoLopez2014/PromptPilot/api/schemas"
	"github.com/RosendoLopez2014/PromptPilot/internal/config"
)

// VisionProber reports whether screen understanding is currently usable.
// Vision-dependent matchers are skipped entirely when it returns false.
type VisionProber interface {
	Available() bool
}

// matcher is one intent family: a trigger pattern plus an extraction rule
// producing a bound action. A nil result from extract means the extraction
// failed and evaluation falls through to the next matcher.
type matcher struct {
	name    string
	pattern *regexp.Regexp
	vision  bool
	extract func(r *Resolver, input string) *schemas.Match
}

// Resolver is the central instruction dispatcher. It is stateless per call;
// the same lower-cased input always resolves through the same matcher.
type Resolver struct {
	cfg      config.ResolverConfig
	screen   config.ScreenConfig
	vision   VisionProber
	logger   *zap.Logger
	matchers []matcher
	goos     string
}

// NewResolver builds a Resolver with the fixed matcher table. vision may be
// nil, which disables the screen-query families.
func NewResolver(cfg config.ResolverConfig, screenCfg config.ScreenConfig, vision VisionProber, logger *zap.Logger) *Resolver {
	r := &Resolver{
		cfg:    cfg,
		screen: screenCfg,
		vision: vision,
		logger: logger.Named("resolver"),
		goos:   runtime.GOOS,
	}
	r.matchers = intentTable()
	return r
}

func (r *Resolver) visionUsable() bool {
	return r.cfg.VisionEnabled && r.vision != nil && r.vision.Available()
}

// NeedsSynthesis flags instructions that should go to the plan synthesizer
// even when a shallow pattern would match, so compound instructions are not
// truncated to their first clause.
func (r *Resolver) NeedsSynthesis(instruction string) bool {
	words := strings.Fields(strings.ToLower(instruction))
	index := make(map[string]bool, len(words))
	for _, w := range words {
		index[strings.Trim(w, ".,!?;:")] = true
	}
	for _, c := range r.cfg.ComplexityConnectives {
		if index[c] {
			return true
		}
	}
	for _, v := range r.cfg.ComplexityVerbs {
		if index[v] {
			// Sheet creation is a fixed pattern; "create" alone does not make
			// it complex.
			if v == "create" && sheetPattern.MatchString(strings.ToLower(instruction)) {
				continue
			}
			return true
		}
	}
	return false
}

// Resolve evaluates the matcher table in priority order against the
// lower-cased, trimmed instruction. The first matcher whose pattern fires and
// whose extraction succeeds wins. An unresolved instruction yields a Match
// with a nil Action and a guidance status.
func (r *Resolver) Resolve(instruction string) schemas.Match {
	input := strings.ToLower(strings.TrimSpace(instruction))
	visionOK := r.visionUsable()

	for i := range r.matchers {
		m := &r.matchers[i]
		if m.vision && !visionOK {
			continue
		}
		if !m.pattern.MatchString(input) {
			continue
		}
		match := m.extract(r, input)
		if match == nil {
			// Extraction failure falls through silently.
			continue
		}
		match.Matcher = m.name
		r.logger.Debug("Instruction matched", zap.String("matcher", m.name))
		return *match
	}

	return schemas.Match{Status: guidanceText()}
}

// Guidance is the suggestion shown when no pattern applies and no backend
// can take over.
func (r *Resolver) Guidance() string { return guidanceText() }

func guidanceText() string {
	return "Unknown command. Try: 'open chrome', 'type hello in notepad', 'take screenshot', 'what's on my screen'"
}

var (
	describePattern   = regexp.MustCompile(`(?:what(?:'s| is) on (?:my |the )?screen|describe (?:my |the )?screen)`)
	findClickPattern  = regexp.MustCompile(`^(?:click(?:\s+on)?|find|locate)\s+(?:the\s+)?(.+)$`)
	readTextPattern   = regexp.MustCompile(`read\s+(?:the\s+)?(?:visible\s+|all\s+)?text`)
	screenAskPattern  = regexp.MustCompile(`\bscreen\b`)
	questionLead      = regexp.MustCompile(`^(?:what|where|which|who|why|how|is|are|does|do|can)\b`)
	sheetPattern      = regexp.MustCompile(`(?:make|create|new).*google.*sheet`)
	sheetNamePattern  = regexp.MustCompile(`(?:sheet|called|named)\s+(["']?)([\w\s]+)`)
	openAppPattern    = regexp.MustCompile(`open\s+(?:the\s+)?([\w\s]+?)(?:\s+app)?(?:$|\s+and|\s+then)`)
	typePattern       = regexp.MustCompile(`^type\s+`)
	typeQuoted        = regexp.MustCompile(`type\s+["'](.+?)["']`)
	typeUnquoted      = regexp.MustCompile(`type\s+(.+?)\s+in\s+`)
	typeAppPattern    = regexp.MustCompile(`\bin\s+([\w\s]+)`)
	drawPattern       = regexp.MustCompile(`draw\s+(?:a\s+)?(?:red\s+)?circle\s+in\s+paint`)
	screenshotPattern = regexp.MustCompile(`take\s+(?:a\s+)?screenshot|capture\s+(?:the\s+)?screen`)
	mediaPattern      = regexp.MustCompile(`^play\s+(.+?)(?:\s+(?:on|in)\s+spotify)?$`)
	urlPattern        = regexp.MustCompile(`open\s+(https?://\S+)`)
	copyPattern       = regexp.MustCompile(`copy\s+["'](.+?)["']`)
	bareOpenPattern   = regexp.MustCompile(`^open\s+(.+)$`)
	targetTrailer     = regexp.MustCompile(`\s+(?:button|link|icon|element)$`)
	onScreenTrailer   = regexp.MustCompile(`\s+on\s+(?:the\s+|my\s+)?screen$`)
)

// intentTable returns the matcher families in priority order. Screen-query
// intents come first so "what's on my screen" is never captured by the
// generic open pattern.
func intentTable() []matcher {
	return []matcher{
		{
			name:    "describe_screen",
			pattern: describePattern,
			vision:  true,
			extract: func(_ *Resolver, _ string) *schemas.Match {
				return &schemas.Match{
					Status: "Reading the screen...",
					Action: &schemas.ResolvedAction{Kind: schemas.ActionDescribe},
				}
			},
		},
		{
			name:    "find_click_element",
			pattern: findClickPattern,
			vision:  true,
			extract: func(_ *Resolver, input string) *schemas.Match {
				groups := findClickPattern.FindStringSubmatch(input)
				target := strings.TrimSpace(groups[1])
				target = onScreenTrailer.ReplaceAllString(target, "")
				target = targetTrailer.ReplaceAllString(target, "")
				if target == "" {
					return nil
				}
				return &schemas.Match{
					Status: fmt.Sprintf("Looking for %q on screen...", target),
					Action: &schemas.ResolvedAction{Kind: schemas.ActionFindClick, Target: target},
				}
			},
		},
		{
			name:    "read_text",
			pattern: readTextPattern,
			vision:  true,
			extract: func(_ *Resolver, _ string) *schemas.Match {
				return &schemas.Match{
					Status: "Reading visible text...",
					Action: &schemas.ResolvedAction{Kind: schemas.ActionReadText},
				}
			},
		},
		{
			name:    "screen_question",
			pattern: screenAskPattern,
			vision:  true,
			extract: func(_ *Resolver, input string) *schemas.Match {
				if !strings.HasSuffix(input, "?") && !questionLead.MatchString(input) {
					return nil
				}
				return &schemas.Match{
					Status: "Checking the screen...",
					Action: &schemas.ResolvedAction{Kind: schemas.ActionScreenAsk, Query: input},
				}
			},
		},
		{
			name:    "create_sheet",
			pattern: sheetPattern,
			extract: func(r *Resolver, input string) *schemas.Match {
				name := "Untitled"
				if groups := sheetNamePattern.FindStringSubmatch(input); groups != nil {
					if extracted := strings.TrimSpace(groups[2]); extracted != "" {
						name = extracted
					}
				}
				plan := r.buildSheetPlan(name)
				return &schemas.Match{
					Status: "Opening Google Sheets...",
					Action: &schemas.ResolvedAction{Kind: schemas.ActionPlan, Plan: &plan},
				}
			},
		},
		{
			name:    "open_app",
			pattern: openAppPattern,
			extract: func(_ *Resolver, input string) *schemas.Match {
				groups := openAppPattern.FindStringSubmatch(input)
				app := strings.TrimSpace(groups[1])
				if app == "" {
					return nil
				}
				return &schemas.Match{
					Status: fmt.Sprintf("Opening %s...", app),
					Action: &schemas.ResolvedAction{Kind: schemas.ActionLaunchApp, App: app},
				}
			},
		},
		{
			name:    "type_in_app",
			pattern: typePattern,
			extract: func(_ *Resolver, input string) *schemas.Match {
				groups := typeQuoted.FindStringSubmatch(input)
				if groups == nil {
					groups = typeUnquoted.FindStringSubmatch(input)
				}
				if groups == nil {
					return nil
				}
				text := strings.TrimSpace(groups[1])
				app := "notepad"
				if appGroups := typeAppPattern.FindStringSubmatch(input); appGroups != nil {
					app = strings.TrimSpace(appGroups[1])
				}
				return &schemas.Match{
					Status: fmt.Sprintf("Opening %s and typing...", app),
					Action: &schemas.ResolvedAction{Kind: schemas.ActionTypeInApp, App: app, Text: text},
				}
			},
		},
		{
			name:    "draw_circle",
			pattern: drawPattern,
			extract: func(_ *Resolver, _ string) *schemas.Match {
				return &schemas.Match{
					Status: "Opening Paint and drawing circle...",
					Action: &schemas.ResolvedAction{Kind: schemas.ActionDrawCircle},
				}
			},
		},
		{
			name:    "screenshot",
			pattern: screenshotPattern,
			extract: func(_ *Resolver, _ string) *schemas.Match {
				return &schemas.Match{
					Status: "Taking screenshot...",
					Action: &schemas.ResolvedAction{Kind: schemas.ActionScreenshot},
				}
			},
		},
		{
			name:    "media_play",
			pattern: mediaPattern,
			extract: func(_ *Resolver, input string) *schemas.Match {
				groups := mediaPattern.FindStringSubmatch(input)
				query := strings.TrimSpace(groups[1])
				if query == "" {
					return nil
				}
				return &schemas.Match{
					Status: "Opening Spotify...",
					Action: &schemas.ResolvedAction{Kind: schemas.ActionLaunchApp, App: "spotify", Query: query},
				}
			},
		},
		{
			name:    "open_url",
			pattern: urlPattern,
			extract: func(_ *Resolver, input string) *schemas.Match {
				groups := urlPattern.FindStringSubmatch(input)
				return &schemas.Match{
					Status: fmt.Sprintf("Opening %s...", groups[1]),
					Action: &schemas.ResolvedAction{Kind: schemas.ActionOpenURL, URL: groups[1]},
				}
			},
		},
		{
			name:    "clipboard_copy",
			pattern: copyPattern,
			extract: func(_ *Resolver, input string) *schemas.Match {
				groups := copyPattern.FindStringSubmatch(input)
				return &schemas.Match{
					Status: "Copying to clipboard...",
					Action: &schemas.ResolvedAction{Kind: schemas.ActionClipboard, Text: groups[1]},
				}
			},
		},
		{
			name:    "bare_open",
			pattern: bareOpenPattern,
			extract: func(_ *Resolver, input string) *schemas.Match {
				groups := bareOpenPattern.FindStringSubmatch(input)
				target := strings.TrimSpace(groups[1])
				if target == "" {
					return nil
				}
				if strings.Contains(target, ".") && !strings.Contains(target, " ") {
					url := target
					if !strings.HasPrefix(url, "http") {
						url = "https://" + url
					}
					return &schemas.Match{
						Status: fmt.Sprintf("Opening %s...", url),
						Action: &schemas.ResolvedAction{Kind: schemas.ActionOpenURL, URL: url},
					}
				}
				return &schemas.Match{
					Status: fmt.Sprintf("Opening %s...", target),
					Action: &schemas.ResolvedAction{Kind: schemas.ActionLaunchApp, App: target},
				}
			},
		},
	}
}

// buildSheetPlan encodes the Google Sheet creation macro: open sheets.new,
// let it load, click the title region, select all, type the name, confirm.
func (r *Resolver) buildSheetPlan(name string) schemas.Plan {
	selectAll := "ctrl+a"
	if r.goos == "darwin" {
		selectAll = "cmd+a"
	}
	titleX := r.screen.DisplayWidth / 2
	return schemas.Plan{
		Origin:    schemas.OriginPattern,
		CreatedAt: time.Now().UTC(),
		Steps: []schemas.ActionStep{
			{Kind: schemas.StepOpenURL, URL: "https://sheets.new"},
			{Kind: schemas.StepWait, Seconds: 3},
			{Kind: schemas.StepClick, X: titleX, Y: 100},
			{Kind: schemas.StepWait, Seconds: 0.5},
			{Kind: schemas.StepPressKey, Key: selectAll},
			{Kind: schemas.StepType, Text: name},
			{Kind: schemas.StepWait, Seconds: 0.5},
			{Kind: schemas.StepPressKey, Key: "enter"},
		},
	}
}
