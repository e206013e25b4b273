package assistant

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/RosendoLopez2014/PromptPilot/api/schemas"
	"github.com/RosendoLopez2014/PromptPilot/internal/config"
	"github.com/RosendoLopez2014/PromptPilot/internal/executor"
	"github.com/RosendoLopez2014/PromptPilot/internal/planner"
	"github.com/RosendoLopez2014/PromptPilot/internal/resolver"
	"github.com/RosendoLopez2014/PromptPilot/internal/screen"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeLLM scripts the backend boundary.
type fakeLLM struct {
	response string
	pingErr  error
}

func (f *fakeLLM) Generate(context.Context, schemas.GenerationRequest) (string, error) {
	return f.response, nil
}
func (f *fakeLLM) Ping(context.Context) error              { return f.pingErr }
func (f *fakeLLM) PullModel(context.Context, string) error { return nil }

// fakeAutomator counts concurrent executions to verify serialization.
type fakeAutomator struct {
	mu            sync.Mutex
	calls         []string
	inFlight      atomic.Int64
	maxConcurrent atomic.Int64
	stepDelay     time.Duration
}

func (f *fakeAutomator) record(call string) {
	current := f.inFlight.Add(1)
	for {
		peak := f.maxConcurrent.Load()
		if current <= peak || f.maxConcurrent.CompareAndSwap(peak, current) {
			break
		}
	}
	if f.stepDelay > 0 {
		time.Sleep(f.stepDelay)
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	f.inFlight.Add(-1)
}

func (f *fakeAutomator) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAutomator) OpenURL(_ context.Context, url string) error   { f.record("open:" + url); return nil }
func (f *fakeAutomator) LaunchApp(_ context.Context, app string) error { f.record("launch:" + app); return nil }
func (f *fakeAutomator) TypeText(_ context.Context, text string, _ time.Duration) error {
	f.record("type:" + text)
	return nil
}
func (f *fakeAutomator) PressKey(_ context.Context, key string) error { f.record("press:" + key); return nil }
func (f *fakeAutomator) Click(_ context.Context, x, y int, _ bool, _ *schemas.BoundingBox) error {
	f.record("click")
	return nil
}
func (f *fakeAutomator) MoveMouse(context.Context, int, int, time.Duration) error      { return nil }
func (f *fakeAutomator) Drag(context.Context, int, int, int, int, time.Duration) error { return nil }
func (f *fakeAutomator) TakeScreenshot(context.Context, string) (string, error) {
	f.record("screenshot")
	return "/tmp/shot.png", nil
}
func (f *fakeAutomator) CopyToClipboard(string) error              { return nil }
func (f *fakeAutomator) PasteFromClipboard(context.Context) error  { return nil }
func (f *fakeAutomator) Wait(context.Context, time.Duration) error { return nil }

type fakeReader struct{}

func (fakeReader) CaptureImage(context.Context) ([]byte, error) { return []byte{1}, nil }
func (fakeReader) ExtractText(context.Context, []byte) (string, []schemas.TextFragment, error) {
	return "Inbox (3) Compose", []schemas.TextFragment{
		{Text: "Compose", Box: schemas.BoundingBox{Left: 10, Top: 10, Width: 80, Height: 20}, Confidence: 0.9},
	}, nil
}

func newTestAssistant(t *testing.T, llm schemas.LLMClient, auto schemas.Automator) *Assistant {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Executor.OpenSettle = 0
	cfg.Executor.InputSettle = 0
	cfg.Executor.DefaultWait = time.Millisecond
	cfg.Executor.InterKeyDelay = 0
	logger := zaptest.NewLogger(t)

	analyzer := screen.NewAnalyzer(fakeReader{}, cfg.Screen, logger)
	res := resolver.NewResolver(cfg.Resolver, cfg.Screen, analyzer, logger)
	plan := planner.NewPlanner(llm, cfg.Backend, cfg.Screen, logger)
	exec := executor.NewExecutor(auto, analyzer, cfg.Executor, cfg.Screen, logger)
	return New(res, plan, exec, analyzer, logger)
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestSubmitPatternInstruction(t *testing.T) {
	auto := &fakeAutomator{}
	a := newTestAssistant(t, &fakeLLM{pingErr: errors.New("down")}, auto)

	events := collect(t, a.Submit(context.Background(),
		schemas.NewInstruction("open chrome", schemas.SourceTyped)))

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventResult, last.Kind)
	assert.True(t, last.Success)
	assert.Contains(t, last.Message, "chrome")
	assert.Contains(t, auto.callList(), "launch:chrome")

	for _, e := range events[:len(events)-1] {
		assert.Equal(t, EventStatus, e.Kind)
	}
}

func TestSubmitUnresolvedWithoutBackend(t *testing.T) {
	auto := &fakeAutomator{}
	a := newTestAssistant(t, &fakeLLM{pingErr: errors.New("down")}, auto)

	events := collect(t, a.Submit(context.Background(),
		schemas.NewInstruction("do something inscrutable", schemas.SourceTyped)))

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventResult, last.Kind)
	assert.False(t, last.Success)
	assert.Contains(t, last.Message, "Try:")
	assert.Empty(t, auto.callList())
}

func TestSubmitUnresolvedSynthesizes(t *testing.T) {
	llm := &fakeLLM{response: `[{"action": "open_url", "url": "https://mail.example"},
		{"action": "click", "text": "Compose"}]`}
	auto := &fakeAutomator{}
	a := newTestAssistant(t, llm, auto)

	events := collect(t, a.Submit(context.Background(),
		schemas.NewInstruction("do something inscrutable", schemas.SourceTyped)))

	last := events[len(events)-1]
	assert.Equal(t, EventResult, last.Kind)
	assert.Contains(t, last.Message, "2 of 2 steps executed")

	calls := auto.callList()
	assert.Contains(t, calls, "open:https://mail.example")
	assert.Contains(t, calls, "click")
}

func TestComplexInstructionBypassesShallowPattern(t *testing.T) {
	llm := &fakeLLM{response: `[{"action": "press_key", "key": "enter"}]`}
	auto := &fakeAutomator{}
	a := newTestAssistant(t, llm, auto)

	// "open chrome then ..." would shallow-match the open pattern; the
	// connective must force full synthesis instead.
	events := collect(t, a.Submit(context.Background(),
		schemas.NewInstruction("open chrome then search for weather", schemas.SourceTyped)))

	calls := auto.callList()
	assert.NotContains(t, calls, "launch:chrome then search for weather")
	assert.Contains(t, calls, "press:enter")

	var sawThinking bool
	for _, e := range events {
		if e.Message == "Thinking..." {
			sawThinking = true
		}
	}
	assert.True(t, sawThinking)
}

func TestComplexInstructionWithoutBackendGivesGuidance(t *testing.T) {
	auto := &fakeAutomator{}
	a := newTestAssistant(t, &fakeLLM{pingErr: errors.New("down")}, auto)

	// The trailing "open it" shallow-matches the open pattern; without a
	// backend the instruction must not be truncated to that fragment.
	events := collect(t, a.Submit(context.Background(),
		schemas.NewInstruction("configure my email and then open it", schemas.SourceTyped)))

	last := events[len(events)-1]
	assert.Equal(t, EventResult, last.Kind)
	assert.False(t, last.Success)
	assert.Contains(t, last.Message, "not available")
	assert.Contains(t, last.Message, "Try:")
	assert.Empty(t, auto.callList())
}

func TestEmptySynthesisReported(t *testing.T) {
	llm := &fakeLLM{response: "no brackets here"}
	auto := &fakeAutomator{}
	a := newTestAssistant(t, llm, auto)

	events := collect(t, a.Submit(context.Background(),
		schemas.NewInstruction("do something inscrutable", schemas.SourceTyped)))

	last := events[len(events)-1]
	assert.Contains(t, last.Message, "Could not generate a plan")
	assert.Empty(t, auto.callList())
}

func TestPlanExecutionSerialized(t *testing.T) {
	llm := &fakeLLM{pingErr: errors.New("down")}
	auto := &fakeAutomator{stepDelay: 10 * time.Millisecond}
	a := newTestAssistant(t, llm, auto)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		events := a.Submit(context.Background(),
			schemas.NewInstruction("create a google sheet named test", schemas.SourceTyped))
		go func() {
			defer wg.Done()
			for range events {
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), auto.maxConcurrent.Load(),
		"plan steps from different instructions must never interleave")
}

func TestScreenQuestionAnsweredByModel(t *testing.T) {
	llm := &fakeLLM{response: "You have three unread emails."}
	auto := &fakeAutomator{}
	a := newTestAssistant(t, llm, auto)

	events := collect(t, a.Submit(context.Background(),
		schemas.NewInstruction("is there anything new on my screen?", schemas.SourceTyped)))

	last := events[len(events)-1]
	assert.Equal(t, "You have three unread emails.", last.Message)
}

func TestScreenQuestionWithoutBackendDescribes(t *testing.T) {
	auto := &fakeAutomator{}
	a := newTestAssistant(t, &fakeLLM{pingErr: errors.New("down")}, auto)

	events := collect(t, a.Submit(context.Background(),
		schemas.NewInstruction("is there anything new on my screen?", schemas.SourceTyped)))

	last := events[len(events)-1]
	assert.Contains(t, last.Message, "text fragments")
}

func TestWorkerPanicBecomesResult(t *testing.T) {
	cfg := config.NewDefaultConfig()
	logger := zaptest.NewLogger(t)
	res := resolver.NewResolver(cfg.Resolver, cfg.Screen, nil, logger)
	plan := planner.NewPlanner(&fakeLLM{pingErr: errors.New("down")}, cfg.Backend, cfg.Screen, logger)
	// nil executor: any resolved action dereferences it and panics.
	a := New(res, plan, nil, nil, logger)

	events := collect(t, a.Submit(context.Background(),
		schemas.NewInstruction("open chrome", schemas.SourceTyped)))

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventResult, last.Kind)
	assert.Contains(t, last.Message, "Task aborted")
}
