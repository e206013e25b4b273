package schemas

import (
	"context"
	"time"
)

// -- LLM Backend Boundary --

// LLMClient is the contract with the local inference backend. The backend is
// an opaque external process; its installation lifecycle is out of scope.
type LLMClient interface {
	// Generate runs a single prompt/response round trip. The context carries
	// the hard deadline; implementations must not outlive it.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Ping is a lightweight liveness probe (list-models style call).
	Ping(ctx context.Context) error
	// PullModel fetches the pinned model if it is absent locally.
	PullModel(ctx context.Context, model string) error
}

// -- Action Executor Boundary --

// Automator exposes the primitive automation operations. It owns no decision
// logic; everything above it decides, it only acts.
type Automator interface {
	OpenURL(ctx context.Context, url string) error
	LaunchApp(ctx context.Context, name string) error
	TypeText(ctx context.Context, text string, interKeyDelay time.Duration) error
	PressKey(ctx context.Context, key string) error
	// Click clicks at (x, y), or at the current pointer position when hasCoords
	// is false. The box, when non-nil, is advisory (visual feedback only).
	Click(ctx context.Context, x, y int, hasCoords bool, box *BoundingBox) error
	MoveMouse(ctx context.Context, x, y int, duration time.Duration) error
	Drag(ctx context.Context, x0, y0, x1, y1 int, duration time.Duration) error
	TakeScreenshot(ctx context.Context, filename string) (string, error)
	CopyToClipboard(text string) error
	PasteFromClipboard(ctx context.Context) error
	Wait(ctx context.Context, d time.Duration) error
}

// -- Screen / OCR Boundary --

// ScreenReader is the capture-plus-OCR primitive the screen analyzer consumes.
// Absence of this capability degrades vision intents to "not available".
type ScreenReader interface {
	// CaptureImage grabs the current display as an encoded raster image.
	CaptureImage(ctx context.Context) ([]byte, error)
	// ExtractText runs OCR over an image, returning positioned fragments and
	// the concatenated full text.
	ExtractText(ctx context.Context, image []byte) (string, []TextFragment, error)
}

// -- Voice Boundary --

// SpeechRecognizer delivers a final transcription or an error string via the
// callback; it is an external collaborator specified only at this boundary.
type SpeechRecognizer interface {
	// Recognize blocks for one listen cycle and returns the transcription.
	Recognize(ctx context.Context) (string, error)
}
