// Package dictation connects a dictation recognizer to a remote voice
// service.
//
// A [Handler] owns at most one recognition session at a time. While a
// session is active the handler is subscribed to the recognizer's partial,
// final, finished and faulted events, and any competing keyword recognizer
// is suspended. Every final result is forwarded to the configured
// [VoiceClient], whose answer is played back independently of the session.
package dictation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	events "github.com/koscakluka/ema-dictation/core/events"
	"github.com/koscakluka/ema-dictation/core/recognition"
	"github.com/koscakluka/ema-dictation/core/voice"
	"github.com/koscakluka/ema-dictation/internal/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// RecognizerUnavailableReason is reported through a faulted event when
// Start finds no running dictation recognizer.
const RecognizerUnavailableReason = "cannot find a running dictation recognizer; check the recognizer provider " +
	"configuration and ensure a dictation recognizer is running"

var ErrRecognizerUnavailable = errors.New("dictation recognizer unavailable")

type Handler struct {
	provider recognition.Provider
	voice    VoiceClient

	callbacks CallbackOptions
	emitEvent eventEmitter
	log       *slog.Logger

	// startMu serializes Start calls. It is never held while handling
	// recognizer events.
	startMu sync.Mutex
	// mu guards session. Recognizers are always called without holding it,
	// since they may report events synchronously.
	mu      sync.Mutex
	session *session

	baseContext context.Context
	cancel      context.CancelFunc
	closeOnce   sync.Once

	// respondMu guards closed and every responses.Add, so no response can
	// be added once Close has started waiting.
	respondMu sync.Mutex
	closed    bool
	responses sync.WaitGroup
}

func NewHandler(provider recognition.Provider, opts ...HandlerOption) *Handler {
	baseContext, cancel := context.WithCancel(context.Background())
	h := &Handler{
		provider:    provider,
		log:         logger,
		baseContext: baseContext,
		cancel:      cancel,
	}

	for _, opt := range opts {
		opt(h)
	}
	h.emitEvent = newCallbackEventEmitter(h.callbacks)

	return h
}

// Start begins a new recognition session, tearing down the active one
// first.
//
// If the provider has no dictation recognizer, a single faulted event is
// emitted, the handler stays idle and ErrRecognizerUnavailable is returned.
func (h *Handler) Start(ctx context.Context) error {
	h.startMu.Lock()
	defer h.startMu.Unlock()

	ctx, span := tracer.Start(ctx, "start dictation")
	defer span.End()

	if h.IsActive() {
		if err := h.Stop(ctx); err != nil {
			h.log.WarnContext(ctx, "failed to stop previous dictation session", "error", err)
		}
		h.Teardown()
	}

	var recognizer recognition.Recognizer
	if !recognition.IsNil(h.provider) {
		recognizer = h.provider.DictationRecognizer()
	}
	if recognition.IsNil(recognizer) {
		h.emitEvent(events.NewRecognitionFaulted("", RecognizerUnavailableReason))
		span.RecordError(ErrRecognizerUnavailable)
		span.SetStatus(codes.Error, ErrRecognizerUnavailable.Error())
		return ErrRecognizerUnavailable
	}

	s := newSession(recognizer)
	span.SetAttributes(attribute.String("session.id", s.id))

	if keyword := h.provider.KeywordRecognizer(); !recognition.IsNil(keyword) {
		if err := keyword.Stop(ctx); err != nil {
			h.log.WarnContext(ctx, "failed to suspend keyword recognizer", "session", s.id, "error", err)
		}
		s.keyword = keyword
	}

	s.subscriptions = []recognition.Subscription{
		recognizer.OnRecognizing(func(result recognition.Result) { h.handleRecognizing(s, result) }),
		recognizer.OnRecognized(func(result recognition.Result) { h.handleRecognized(s, result) }),
		recognizer.OnFinished(func(end recognition.SessionEnd) { h.handleFinished(s, end) }),
		recognizer.OnFaulted(func(end recognition.SessionEnd) { h.handleFaulted(s, end) }),
	}

	h.mu.Lock()
	h.session = s
	h.mu.Unlock()
	metrics.SessionsTotal.Inc()
	sessionCounter.Add(ctx, 1)
	metrics.SessionsActive.Inc()
	h.log.InfoContext(ctx, "dictation session started", "session", s.id)

	if err := recognizer.StartDictation(ctx); err != nil {
		err = fmt.Errorf("failed to start dictation: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleFaulted(s, recognition.SessionEnd{Reason: err.Error()})
		return err
	}

	return nil
}

// Stop asks the active recognizer to stop. The session stays subscribed
// until the recognizer reports that it finished or faulted, or until
// Teardown is called.
func (h *Handler) Stop(ctx context.Context) error {
	s := h.currentSession()
	if s == nil {
		return nil
	}

	if err := s.recognizer.StopDictation(ctx); err != nil {
		return fmt.Errorf("failed to stop dictation: %w", err)
	}
	return nil
}

// Teardown unsubscribes from the active recognizer and resumes the keyword
// recognizer suspended at Start. It is a no-op when no session is active.
func (h *Handler) Teardown() {
	h.mu.Lock()
	s := h.session
	h.session = nil
	h.mu.Unlock()

	h.release(s)
}

func (h *Handler) IsActive() bool {
	return h.currentSession() != nil
}

// Close stops and tears down the active session, then cancels every voice
// response still in flight and waits for them to return.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		h.respondMu.Lock()
		h.closed = true
		h.respondMu.Unlock()
		if err := h.Stop(h.baseContext); err != nil {
			h.log.Warn("failed to stop dictation on close", "error", err)
		}
		h.Teardown()

		h.cancel()
		h.responses.Wait()
	})
}

func (h *Handler) currentSession() *session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

func (h *Handler) isCurrent(s *session) bool {
	return h.currentSession() == s
}

// teardownSession tears s down only if it is still the active session.
func (h *Handler) teardownSession(s *session) {
	h.mu.Lock()
	if h.session != s {
		h.mu.Unlock()
		return
	}
	h.session = nil
	h.mu.Unlock()

	h.release(s)
}

func (h *Handler) release(s *session) {
	if s == nil {
		return
	}

	s.unsubscribe()
	metrics.SessionsActive.Dec()

	if s.keyword != nil {
		if err := s.keyword.Start(h.baseContext); err != nil {
			h.log.Warn("failed to resume keyword recognizer", "session", s.id, "error", err)
		}
	}
	h.log.Info("dictation session torn down", "session", s.id)
}

func (h *Handler) handleRecognizing(s *session, result recognition.Result) {
	if !h.isCurrent(s) || s.ended.Load() {
		return
	}

	h.emitEvent(events.NewRecognitionRecognizing(s.id, result.Text))
}

func (h *Handler) handleRecognized(s *session, result recognition.Result) {
	if !h.isCurrent(s) || s.ended.Load() {
		return
	}

	h.emitEvent(events.NewRecognitionRecognized(s.id, result.Text))
	h.respond(s.id, result.Text)
}

func (h *Handler) handleFinished(s *session, end recognition.SessionEnd) {
	if !h.isCurrent(s) || !s.ended.CompareAndSwap(false, true) {
		return
	}

	metrics.SessionEnds.WithLabelValues("finished").Inc()
	h.emitEvent(events.NewRecognitionFinished(s.id, end.Reason))
	h.teardownSession(s)
}

func (h *Handler) handleFaulted(s *session, end recognition.SessionEnd) {
	if !h.isCurrent(s) || !s.ended.CompareAndSwap(false, true) {
		return
	}

	metrics.SessionEnds.WithLabelValues("faulted").Inc()
	h.log.Warn("dictation session faulted", "session", s.id, "reason", end.Reason)
	h.emitEvent(events.NewRecognitionFaulted(s.id, end.Reason))
	h.teardownSession(s)
}

// respond forwards text to the voice client on its own goroutine. Responses
// outlive the session that produced them; only Close cancels them.
func (h *Handler) respond(sessionID string, text string) {
	if h.voice == nil {
		return
	}

	h.respondMu.Lock()
	if h.closed {
		h.respondMu.Unlock()
		return
	}
	h.responses.Add(1)
	h.respondMu.Unlock()

	go func() {
		defer h.responses.Done()

		ctx, span := tracer.Start(h.baseContext, "respond to utterance",
			trace.WithAttributes(attribute.String("session.id", sessionID)))
		defer span.End()
		utteranceCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("session.id", sessionID)))
		metrics.Utterances.Inc()

		err := h.voice.SynthesizeAndPlay(ctx, text, voice.WithResponseReceivedCallback(func() {
			h.emitEvent(events.NewVoiceResponseReceived(sessionID))
		}))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			h.log.ErrorContext(ctx, "voice response failed", "session", sessionID, "error", err)
		}
	}()
}
