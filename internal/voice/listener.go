// Package voice manages the listen cycle over an external speech recognizer.
package voice

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/RosendoLopez2014/PromptPilot/api/schemas"
	"github.com/RosendoLopez2014/PromptPilot/internal/config"
)

// Callback receives listen-cycle status strings and final transcriptions.
// Every message is user-presentable.
type Callback func(message string, transcription bool)

// Listener runs one listen cycle at a time over an injected recognizer.
// Stop prevents a new cycle from starting; it does not interrupt a
// recognition already in flight, matching the external recognizer's
// semantics.
type Listener struct {
	recognizer schemas.SpeechRecognizer
	cfg        config.VoiceConfig
	logger     *zap.Logger

	mu        sync.Mutex
	listening bool
	stopped   bool
}

// NewListener creates a Listener. recognizer may be nil, in which case every
// start reports unavailability.
func NewListener(recognizer schemas.SpeechRecognizer, cfg config.VoiceConfig, logger *zap.Logger) *Listener {
	return &Listener{
		recognizer: recognizer,
		cfg:        cfg,
		logger:     logger.Named("voice"),
	}
}

// Listening reports whether a cycle is in flight.
func (l *Listener) Listening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listening
}

// Start begins one background listen cycle, delivering progress and the
// final transcription through cb. A second Start while a cycle is in flight
// is a no-op.
func (l *Listener) Start(ctx context.Context, cb Callback) {
	if l.recognizer == nil {
		cb("Microphone not available", false)
		return
	}

	l.mu.Lock()
	if l.listening {
		l.mu.Unlock()
		return
	}
	l.listening = true
	l.stopped = false
	l.mu.Unlock()

	go l.listenCycle(ctx, cb)
}

// Stop prevents the next listen cycle from delivering a transcription. The
// in-flight recognition call itself is not interrupted.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
}

func (l *Listener) listenCycle(ctx context.Context, cb Callback) {
	defer func() {
		l.mu.Lock()
		l.listening = false
		l.mu.Unlock()
	}()

	cb("Listening...", false)

	cycleCtx := ctx
	if l.cfg.ListenTimeout > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, l.cfg.ListenTimeout)
		defer cancel()
	}

	text, err := l.recognizer.Recognize(cycleCtx)

	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()

	if err != nil {
		l.logger.Debug("Recognition failed", zap.Error(err))
		if cycleCtx.Err() != nil {
			cb("Listening timeout", false)
			return
		}
		cb(fmt.Sprintf("Recognition error: %v", err), false)
		return
	}
	if stopped {
		// The user stopped listening while recognition was in flight; the
		// transcription is discarded, not acted on.
		return
	}
	if text == "" {
		cb("Could not understand audio", false)
		return
	}
	cb(text, true)
}
