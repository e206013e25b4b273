package automation

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"

	"github.com/RosendoLopez2014/PromptPilot/api/schemas"
	"github.com/RosendoLopez2014/PromptPilot/internal/config"
	"github.com/RosendoLopez2014/PromptPilot/internal/motion"
)

// DesktopAutomator implements schemas.Automator for the local desktop. It
// owns no decision logic; it resolves names and delegates.
//
// Input primitives require an InputDriver. Without one they log and no-op so
// the assistant still works in launch/open-only mode.
type DesktopAutomator struct {
	driver InputDriver
	reader schemas.ScreenReader
	mover  *motion.Mover
	cfg    config.ExecutorConfig
	logger *zap.Logger

	// goos and runCommand are swappable for tests.
	goos       string
	runCommand func(ctx context.Context, name string, args ...string) error

	// pointer tracks the last commanded position so glides have a start.
	pointerX, pointerY int
}

// NewDesktopAutomator creates a DesktopAutomator. driver and reader may be
// nil; the corresponding capabilities degrade gracefully.
func NewDesktopAutomator(driver InputDriver, reader schemas.ScreenReader, cfg config.ExecutorConfig, logger *zap.Logger) *DesktopAutomator {
	return &DesktopAutomator{
		driver:     driver,
		reader:     reader,
		mover:      motion.NewMover(motion.DefaultConfig(), logger),
		cfg:        cfg,
		logger:     logger.Named("automation"),
		goos:       runtime.GOOS,
		runCommand: execCommand,
	}
}

func execCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Start()
}

// OpenURL opens the URL in the platform default browser.
func (d *DesktopAutomator) OpenURL(ctx context.Context, url string) error {
	d.logger.Info("Opening URL", zap.String("url", url))
	switch d.goos {
	case "windows":
		return d.runCommand(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		return d.runCommand(ctx, "open", url)
	default:
		return d.runCommand(ctx, "xdg-open", url)
	}
}

// LaunchApp launches an application by friendly name via the per-OS alias
// table; unresolved names are passed through as a best-effort launch.
func (d *DesktopAutomator) LaunchApp(ctx context.Context, name string) error {
	target, known := resolveApp(d.goos, strings.ToLower(strings.TrimSpace(name)))
	d.logger.Info("Launching application", zap.String("app", name), zap.String("target", target), zap.Bool("aliased", known))

	if d.goos == "darwin" {
		return d.runCommand(ctx, "open", "-a", target)
	}
	return d.runCommand(ctx, target)
}

// TypeText emits keystrokes with the given inter-key pacing.
func (d *DesktopAutomator) TypeText(ctx context.Context, text string, interKeyDelay time.Duration) error {
	if d.driver == nil {
		d.logger.Warn("TypeText skipped: no input driver wired")
		return nil
	}
	for _, r := range text {
		if err := d.driver.TypeText(ctx, string(r)); err != nil {
			return fmt.Errorf("type text failed: %w", err)
		}
		if interKeyDelay > 0 {
			if err := d.Wait(ctx, interKeyDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

// PressKey taps a single key, supporting "ctrl+a" style chords.
func (d *DesktopAutomator) PressKey(ctx context.Context, key string) error {
	if d.driver == nil {
		d.logger.Warn("PressKey skipped: no input driver wired")
		return nil
	}
	if strings.Contains(key, "+") {
		return d.driver.Hotkey(ctx, strings.Split(key, "+")...)
	}
	return d.driver.PressKey(ctx, key)
}

// Click clicks at coordinates, or at the current pointer position when
// hasCoords is false. The bounding box is advisory only.
func (d *DesktopAutomator) Click(ctx context.Context, x, y int, hasCoords bool, box *schemas.BoundingBox) error {
	if d.driver == nil {
		d.logger.Warn("Click skipped: no input driver wired")
		return nil
	}
	if hasCoords {
		d.pointerX, d.pointerY = x, y
	}
	return d.driver.Click(ctx, x, y, hasCoords)
}

// MoveMouse glides the pointer to (x, y) along a human-like trajectory.
func (d *DesktopAutomator) MoveMouse(ctx context.Context, x, y int, duration time.Duration) error {
	if d.driver == nil {
		d.logger.Warn("MoveMouse skipped: no input driver wired")
		return nil
	}
	start := motion.Vector2D{X: float64(d.pointerX), Y: float64(d.pointerY)}
	end := motion.Vector2D{X: float64(x), Y: float64(y)}
	if err := d.mover.Glide(ctx, pointerSink{d.driver}, start, end, duration); err != nil {
		return err
	}
	d.pointerX, d.pointerY = x, y
	return nil
}

// Drag presses at the start point, glides to the end point and releases.
func (d *DesktopAutomator) Drag(ctx context.Context, x0, y0, x1, y1 int, duration time.Duration) error {
	if d.driver == nil {
		d.logger.Warn("Drag skipped: no input driver wired")
		return nil
	}
	if err := d.MoveMouse(ctx, x0, y0, duration/2); err != nil {
		return err
	}
	if err := d.driver.ButtonDown(ctx); err != nil {
		return err
	}
	glideErr := d.mover.Glide(ctx, pointerSink{d.driver},
		motion.Vector2D{X: float64(x0), Y: float64(y0)},
		motion.Vector2D{X: float64(x1), Y: float64(y1)}, duration/2)
	// Always release the button, even on a failed glide.
	upErr := d.driver.ButtonUp(ctx)
	if glideErr != nil {
		return glideErr
	}
	if upErr != nil {
		return upErr
	}
	d.pointerX, d.pointerY = x1, y1
	return nil
}

// DrawCircle draws a circle around the center with the button held down.
// Used by the paint macro.
func (d *DesktopAutomator) DrawCircle(ctx context.Context, centerX, centerY, radius int) error {
	if d.driver == nil {
		d.logger.Warn("DrawCircle skipped: no input driver wired")
		return nil
	}
	startX := centerX + radius
	if err := d.MoveMouse(ctx, startX, centerY, 0); err != nil {
		return err
	}
	if err := d.driver.ButtonDown(ctx); err != nil {
		return err
	}
	circleErr := d.mover.Circle(ctx, pointerSink{d.driver},
		motion.Vector2D{X: float64(centerX), Y: float64(centerY)}, float64(radius))
	upErr := d.driver.ButtonUp(ctx)
	if circleErr != nil {
		return circleErr
	}
	return upErr
}

// SearchInApp opens the focused application's search box and submits a query.
func (d *DesktopAutomator) SearchInApp(ctx context.Context, query string) error {
	if d.driver == nil {
		d.logger.Warn("SearchInApp skipped: no input driver wired")
		return nil
	}
	modifier := "ctrl"
	if d.goos == "darwin" {
		modifier = "cmd"
	}
	if err := d.driver.Hotkey(ctx, modifier, "f"); err != nil {
		return err
	}
	if err := d.Wait(ctx, 300*time.Millisecond); err != nil {
		return err
	}
	if err := d.driver.Hotkey(ctx, modifier, "a"); err != nil {
		return err
	}
	if err := d.TypeText(ctx, query, d.cfg.InterKeyDelay); err != nil {
		return err
	}
	if err := d.Wait(ctx, 500*time.Millisecond); err != nil {
		return err
	}
	return d.driver.PressKey(ctx, "enter")
}

// TakeScreenshot captures the screen and writes it to the user's Desktop.
// Returns the saved file path.
func (d *DesktopAutomator) TakeScreenshot(ctx context.Context, filename string) (string, error) {
	if d.reader == nil {
		return "", fmt.Errorf("screenshot capability not available")
	}
	image, err := d.reader.CaptureImage(ctx)
	if err != nil {
		return "", fmt.Errorf("screenshot capture failed: %w", err)
	}

	if filename == "" {
		filename = fmt.Sprintf("screenshot_%d.png", time.Now().Unix())
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve home directory: %w", err)
	}
	desktop := filepath.Join(home, "Desktop")
	if err := os.MkdirAll(desktop, 0o755); err != nil {
		return "", fmt.Errorf("cannot create Desktop directory: %w", err)
	}

	path := filepath.Join(desktop, filename)
	if err := os.WriteFile(path, image, 0o644); err != nil {
		return "", fmt.Errorf("cannot write screenshot: %w", err)
	}
	d.logger.Info("Screenshot saved", zap.String("path", path))
	return path, nil
}

// CopyToClipboard places text on the system clipboard.
func (d *DesktopAutomator) CopyToClipboard(text string) error {
	return clipboard.WriteAll(text)
}

// PasteFromClipboard issues the platform paste chord.
func (d *DesktopAutomator) PasteFromClipboard(ctx context.Context) error {
	if d.driver == nil {
		d.logger.Warn("Paste skipped: no input driver wired")
		return nil
	}
	if d.goos == "darwin" {
		return d.driver.Hotkey(ctx, "cmd", "v")
	}
	return d.driver.Hotkey(ctx, "ctrl", "v")
}

// Wait sleeps for d, honoring context cancellation.
func (d *DesktopAutomator) Wait(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(dur):
		return nil
	}
}

// pointerSink adapts an InputDriver to the motion.PointerSink interface.
type pointerSink struct {
	driver InputDriver
}

func (p pointerSink) MovePointer(ctx context.Context, x, y int) error {
	return p.driver.MovePointer(ctx, x, y)
}
