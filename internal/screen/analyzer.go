package screen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RosendoLopez2014/PromptPilot/api/schemas"
	"github.com/RosendoLopez2014/PromptPilot/internal/config"
)

// ErrVisionUnavailable is returned when no capture/OCR capability is wired.
// Vision intents degrade to "not available"; nothing here ever panics.
var ErrVisionUnavailable = errors.New("screen: capture/OCR capability not available")

// Analyzer captures the screen, extracts positioned text and classifies
// fragments into coarse UI-element categories. Snapshots are immutable; any
// step needing fresh state asks for a new one.
type Analyzer struct {
	reader schemas.ScreenReader
	cfg    config.ScreenConfig
	logger *zap.Logger

	// history is a small ring of recent snapshots, diagnostic only. Current
	// state is never served from it.
	mu      sync.Mutex
	history []*schemas.ScreenSnapshot
}

// NewAnalyzer creates an Analyzer. A nil reader is allowed and degrades every
// vision operation to ErrVisionUnavailable.
func NewAnalyzer(reader schemas.ScreenReader, cfg config.ScreenConfig, logger *zap.Logger) *Analyzer {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 3
	}
	return &Analyzer{
		reader: reader,
		cfg:    cfg,
		logger: logger.Named("screen"),
	}
}

// Available reports whether a capture capability is wired.
func (a *Analyzer) Available() bool { return a.reader != nil }

// Snapshot captures the screen and runs OCR, always taking a fresh capture.
func (a *Analyzer) Snapshot(ctx context.Context) (*schemas.ScreenSnapshot, error) {
	if a.reader == nil {
		return nil, ErrVisionUnavailable
	}

	image, err := a.reader.CaptureImage(ctx)
	if err != nil {
		return nil, fmt.Errorf("screen capture failed: %w", err)
	}

	fullText, fragments, err := a.reader.ExtractText(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("text extraction failed: %w", err)
	}

	// Copy rather than filter in place; the reader may reuse its buffer.
	kept := make([]schemas.TextFragment, 0, len(fragments))
	for _, f := range fragments {
		if f.Confidence >= a.cfg.MinConfidence && strings.TrimSpace(f.Text) != "" {
			kept = append(kept, f)
		}
	}

	snap := &schemas.ScreenSnapshot{
		Image:     image,
		FullText:  fullText,
		Fragments: Classify(kept),
		TakenAt:   time.Now().UTC(),
	}

	a.remember(snap)
	a.logger.Debug("Screen snapshot taken", zap.Int("fragments", len(snap.Fragments)))
	return snap, nil
}

// FindText locates a text target on the current screen. It always captures a
// fresh snapshot because coordinates from earlier snapshots may be stale.
func (a *Analyzer) FindText(ctx context.Context, target string, caseSensitive bool) ([]schemas.TextHit, error) {
	snap, err := a.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return FindInSnapshot(snap, target, caseSensitive), nil
}

// FindInSnapshot scans an existing snapshot for a text target.
func FindInSnapshot(snap *schemas.ScreenSnapshot, target string, caseSensitive bool) []schemas.TextHit {
	if !caseSensitive {
		target = strings.ToLower(target)
	}

	var hits []schemas.TextHit
	for _, f := range snap.Fragments {
		text := f.Text
		if !caseSensitive {
			text = strings.ToLower(text)
		}
		if strings.Contains(text, target) {
			x, y := f.Box.Center()
			hits = append(hits, schemas.TextHit{X: x, Y: y, Box: f.Box})
		}
	}
	return hits
}

// History returns the retained snapshots, newest last.
func (a *Analyzer) History() []*schemas.ScreenSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*schemas.ScreenSnapshot, len(a.history))
	copy(out, a.history)
	return out
}

func (a *Analyzer) remember(snap *schemas.ScreenSnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, snap)
	if len(a.history) > a.cfg.CacheSize {
		a.history = a.history[len(a.history)-a.cfg.CacheSize:]
	}
}
