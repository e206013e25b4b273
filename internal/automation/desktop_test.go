package automation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/RosendoLopez2014/PromptPilot/internal/config"
)

// fakeDriver records every primitive call for assertion.
type fakeDriver struct {
	mu       sync.Mutex
	moves    [][2]int
	clicks   [][2]int
	typed    []string
	keys     []string
	hotkeys  [][]string
	downs    int
	ups      int
	clickErr error
}

func (f *fakeDriver) MovePointer(_ context.Context, x, y int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, [2]int{x, y})
	return nil
}

func (f *fakeDriver) ButtonDown(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downs++
	return nil
}

func (f *fakeDriver) ButtonUp(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ups++
	return nil
}

func (f *fakeDriver) Click(_ context.Context, x, y int, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, [2]int{x, y})
	return f.clickErr
}

func (f *fakeDriver) TypeText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typed = append(f.typed, text)
	return nil
}

func (f *fakeDriver) PressKey(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakeDriver) Hotkey(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hotkeys = append(f.hotkeys, keys)
	return nil
}

type launchRecord struct {
	name string
	args []string
}

func newTestAutomator(t *testing.T, goos string, driver InputDriver) (*DesktopAutomator, *[]launchRecord) {
	t.Helper()
	cfg := config.NewDefaultConfig().Executor
	cfg.InterKeyDelay = 0
	auto := NewDesktopAutomator(driver, nil, cfg, zaptest.NewLogger(t))
	auto.goos = goos
	launches := &[]launchRecord{}
	auto.runCommand = func(_ context.Context, name string, args ...string) error {
		*launches = append(*launches, launchRecord{name: name, args: args})
		return nil
	}
	return auto, launches
}

func TestOpenURLPerOS(t *testing.T) {
	cases := []struct {
		goos     string
		wantCmd  string
		wantArgs []string
	}{
		{goos: "linux", wantCmd: "xdg-open", wantArgs: []string{"https://example.com"}},
		{goos: "darwin", wantCmd: "open", wantArgs: []string{"https://example.com"}},
		{goos: "windows", wantCmd: "rundll32", wantArgs: []string{"url.dll,FileProtocolHandler", "https://example.com"}},
	}
	for _, tc := range cases {
		t.Run(tc.goos, func(t *testing.T) {
			auto, launches := newTestAutomator(t, tc.goos, nil)
			require.NoError(t, auto.OpenURL(context.Background(), "https://example.com"))
			require.Len(t, *launches, 1)
			assert.Equal(t, tc.wantCmd, (*launches)[0].name)
			assert.Equal(t, tc.wantArgs, (*launches)[0].args)
		})
	}
}

func TestLaunchAppAliasResolution(t *testing.T) {
	auto, launches := newTestAutomator(t, "linux", nil)
	require.NoError(t, auto.LaunchApp(context.Background(), "Notepad"))
	require.Len(t, *launches, 1)
	assert.Equal(t, "gedit", (*launches)[0].name)
}

func TestLaunchAppUnknownPassthrough(t *testing.T) {
	auto, launches := newTestAutomator(t, "linux", nil)
	require.NoError(t, auto.LaunchApp(context.Background(), "obscure-editor"))
	require.Len(t, *launches, 1)
	assert.Equal(t, "obscure-editor", (*launches)[0].name)
}

func TestLaunchAppDarwinUsesOpen(t *testing.T) {
	auto, launches := newTestAutomator(t, "darwin", nil)
	require.NoError(t, auto.LaunchApp(context.Background(), "notepad"))
	require.Len(t, *launches, 1)
	assert.Equal(t, "open", (*launches)[0].name)
	assert.Equal(t, []string{"-a", "TextEdit"}, (*launches)[0].args)
}

func TestInputPrimitivesNoDriverNoError(t *testing.T) {
	auto, _ := newTestAutomator(t, "linux", nil)
	ctx := context.Background()
	assert.NoError(t, auto.TypeText(ctx, "hello", 0))
	assert.NoError(t, auto.PressKey(ctx, "enter"))
	assert.NoError(t, auto.Click(ctx, 10, 20, true, nil))
	assert.NoError(t, auto.MoveMouse(ctx, 10, 20, 0))
	assert.NoError(t, auto.Drag(ctx, 0, 0, 10, 10, 0))
	assert.NoError(t, auto.DrawCircle(ctx, 50, 50, 10))
	assert.NoError(t, auto.PasteFromClipboard(ctx))
}

func TestTypeTextEmitsEveryRune(t *testing.T) {
	driver := &fakeDriver{}
	auto, _ := newTestAutomator(t, "linux", driver)
	require.NoError(t, auto.TypeText(context.Background(), "hiya", 0))
	assert.Equal(t, []string{"h", "i", "y", "a"}, driver.typed)
}

func TestPressKeyChordBecomesHotkey(t *testing.T) {
	driver := &fakeDriver{}
	auto, _ := newTestAutomator(t, "linux", driver)
	require.NoError(t, auto.PressKey(context.Background(), "ctrl+a"))
	require.Len(t, driver.hotkeys, 1)
	assert.Equal(t, []string{"ctrl", "a"}, driver.hotkeys[0])
	assert.Empty(t, driver.keys)
}

func TestClickForwardsCoordinates(t *testing.T) {
	driver := &fakeDriver{}
	auto, _ := newTestAutomator(t, "linux", driver)
	require.NoError(t, auto.Click(context.Background(), 42, 99, true, nil))
	require.Len(t, driver.clicks, 1)
	assert.Equal(t, [2]int{42, 99}, driver.clicks[0])
}

func TestClickPropagatesDriverError(t *testing.T) {
	driver := &fakeDriver{clickErr: errors.New("injection denied")}
	auto, _ := newTestAutomator(t, "linux", driver)
	assert.Error(t, auto.Click(context.Background(), 1, 2, true, nil))
}

func TestDragBracketsGlideWithButton(t *testing.T) {
	driver := &fakeDriver{}
	auto, _ := newTestAutomator(t, "linux", driver)
	require.NoError(t, auto.Drag(context.Background(), 0, 0, 200, 120, 100*time.Millisecond))
	assert.Equal(t, 1, driver.downs)
	assert.Equal(t, 1, driver.ups)
	require.NotEmpty(t, driver.moves)
	last := driver.moves[len(driver.moves)-1]
	assert.Equal(t, [2]int{200, 120}, last)
}

func TestDrawCircleHoldsButtonForWholeStroke(t *testing.T) {
	driver := &fakeDriver{}
	auto, _ := newTestAutomator(t, "linux", driver)
	require.NoError(t, auto.DrawCircle(context.Background(), 300, 300, 40))
	assert.Equal(t, 1, driver.downs)
	assert.Equal(t, 1, driver.ups)
	assert.Greater(t, len(driver.moves), 10)
}

func TestSearchInAppSequence(t *testing.T) {
	driver := &fakeDriver{}
	auto, _ := newTestAutomator(t, "linux", driver)
	require.NoError(t, auto.SearchInApp(context.Background(), "lofi beats"))

	require.Len(t, driver.hotkeys, 2)
	assert.Equal(t, []string{"ctrl", "f"}, driver.hotkeys[0])
	assert.Equal(t, []string{"ctrl", "a"}, driver.hotkeys[1])
	assert.NotEmpty(t, driver.typed)
	require.Len(t, driver.keys, 1)
	assert.Equal(t, "enter", driver.keys[0])
}

func TestSearchInAppDarwinUsesCmd(t *testing.T) {
	driver := &fakeDriver{}
	auto, _ := newTestAutomator(t, "darwin", driver)
	require.NoError(t, auto.SearchInApp(context.Background(), "x"))
	require.NotEmpty(t, driver.hotkeys)
	assert.Equal(t, []string{"cmd", "f"}, driver.hotkeys[0])
}

func TestWaitHonorsCancellation(t *testing.T) {
	auto, _ := newTestAutomator(t, "linux", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := auto.Wait(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTakeScreenshotWithoutReader(t *testing.T) {
	auto, _ := newTestAutomator(t, "linux", nil)
	_, err := auto.TakeScreenshot(context.Background(), "")
	assert.Error(t, err)
}
