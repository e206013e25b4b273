package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/RosendoLopez2014/PromptPilot/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type scriptedRecognizer struct {
	text    string
	err     error
	block   chan struct{}
	calls   int
	callsMu sync.Mutex
}

func (s *scriptedRecognizer) Recognize(ctx context.Context) (string, error) {
	s.callsMu.Lock()
	s.calls++
	s.callsMu.Unlock()
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, s.err
}

type recordingCallback struct {
	mu       sync.Mutex
	messages []string
	finals   []string
}

func (r *recordingCallback) fn(message string, transcription bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if transcription {
		r.finals = append(r.finals, message)
	}
	r.messages = append(r.messages, message)
}

func (r *recordingCallback) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...), append([]string(nil), r.finals...)
}

func newTestListener(t *testing.T, rec *scriptedRecognizer) *Listener {
	t.Helper()
	cfg := config.NewDefaultConfig().Voice
	cfg.ListenTimeout = time.Second
	return NewListener(rec, cfg, zaptest.NewLogger(t))
}

func TestListenCycleDeliversTranscription(t *testing.T) {
	rec := &scriptedRecognizer{text: "open chrome"}
	l := newTestListener(t, rec)
	cb := &recordingCallback{}

	l.Start(context.Background(), cb.fn)

	require.Eventually(t, func() bool {
		_, finals := cb.snapshot()
		return len(finals) == 1
	}, time.Second, 5*time.Millisecond)

	messages, finals := cb.snapshot()
	assert.Equal(t, "Listening...", messages[0])
	assert.Equal(t, "open chrome", finals[0])
	assert.False(t, l.Listening())
}

func TestStartWhileListeningIsNoop(t *testing.T) {
	rec := &scriptedRecognizer{text: "hello", block: make(chan struct{})}
	l := newTestListener(t, rec)
	cb := &recordingCallback{}

	l.Start(context.Background(), cb.fn)
	require.Eventually(t, l.Listening, time.Second, time.Millisecond)

	l.Start(context.Background(), cb.fn)
	close(rec.block)

	require.Eventually(t, func() bool { return !l.Listening() }, time.Second, time.Millisecond)
	rec.callsMu.Lock()
	defer rec.callsMu.Unlock()
	assert.Equal(t, 1, rec.calls)
}

func TestStopDiscardsInFlightTranscription(t *testing.T) {
	rec := &scriptedRecognizer{text: "should be dropped", block: make(chan struct{})}
	l := newTestListener(t, rec)
	cb := &recordingCallback{}

	l.Start(context.Background(), cb.fn)
	require.Eventually(t, l.Listening, time.Second, time.Millisecond)

	l.Stop()
	close(rec.block)

	require.Eventually(t, func() bool { return !l.Listening() }, time.Second, time.Millisecond)
	_, finals := cb.snapshot()
	assert.Empty(t, finals)
}

func TestStopDoesNotBlockNextCycle(t *testing.T) {
	rec := &scriptedRecognizer{text: "second try"}
	l := newTestListener(t, rec)

	l.Stop()

	cb := &recordingCallback{}
	l.Start(context.Background(), cb.fn)

	require.Eventually(t, func() bool {
		_, finals := cb.snapshot()
		return len(finals) == 1
	}, time.Second, time.Millisecond)
}

func TestRecognitionErrorReported(t *testing.T) {
	rec := &scriptedRecognizer{err: errors.New("no speech service")}
	l := newTestListener(t, rec)
	cb := &recordingCallback{}

	l.Start(context.Background(), cb.fn)

	require.Eventually(t, func() bool {
		messages, _ := cb.snapshot()
		return len(messages) == 2
	}, time.Second, time.Millisecond)

	messages, finals := cb.snapshot()
	assert.Contains(t, messages[1], "Recognition error")
	assert.Empty(t, finals)
}

func TestListenTimeout(t *testing.T) {
	rec := &scriptedRecognizer{block: make(chan struct{})}
	l := newTestListener(t, rec)
	cfg := config.NewDefaultConfig().Voice
	cfg.ListenTimeout = 10 * time.Millisecond
	l.cfg = cfg
	cb := &recordingCallback{}

	l.Start(context.Background(), cb.fn)

	require.Eventually(t, func() bool {
		messages, _ := cb.snapshot()
		return len(messages) == 2
	}, time.Second, time.Millisecond)

	messages, _ := cb.snapshot()
	assert.Equal(t, "Listening timeout", messages[1])
	close(rec.block)
}

func TestNilRecognizerReportsUnavailable(t *testing.T) {
	l := NewListener(nil, config.NewDefaultConfig().Voice, zaptest.NewLogger(t))
	cb := &recordingCallback{}
	l.Start(context.Background(), cb.fn)

	messages, _ := cb.snapshot()
	require.Len(t, messages, 1)
	assert.Equal(t, "Microphone not available", messages[0])
}

func TestEmptyTranscription(t *testing.T) {
	rec := &scriptedRecognizer{text: ""}
	l := newTestListener(t, rec)
	cb := &recordingCallback{}

	l.Start(context.Background(), cb.fn)

	require.Eventually(t, func() bool {
		messages, _ := cb.snapshot()
		return len(messages) == 2
	}, time.Second, time.Millisecond)

	messages, finals := cb.snapshot()
	assert.Equal(t, "Could not understand audio", messages[1])
	assert.Empty(t, finals)
}
