package automation

import "context"

// InputDriver is the OS-level input injection boundary. Click, keystroke and
// pointer primitives are thin wrappers over platform capabilities and live
// outside this repository; the assistant only ever talks to this interface.
type InputDriver interface {
	// MovePointer warps the pointer to absolute screen coordinates.
	MovePointer(ctx context.Context, x, y int) error
	// ButtonDown / ButtonUp press and release the primary button, used for
	// drag gestures and drawing macros.
	ButtonDown(ctx context.Context) error
	ButtonUp(ctx context.Context) error
	// Click clicks at (x, y), or at the current pointer position when
	// hasCoords is false.
	Click(ctx context.Context, x, y int, hasCoords bool) error
	// TypeText emits synthetic keystrokes for the text.
	TypeText(ctx context.Context, text string) error
	// PressKey taps a single named key ("enter", "tab", "esc", ...).
	PressKey(ctx context.Context, key string) error
	// Hotkey presses a chord such as ("ctrl", "a").
	Hotkey(ctx context.Context, keys ...string) error
}
