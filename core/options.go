package dictation

import (
	"context"
	"log/slog"

	events "github.com/koscakluka/ema-dictation/core/events"
	"github.com/koscakluka/ema-dictation/core/voice"
)

type HandlerOption func(*Handler)

// VoiceClient answers a recognized utterance with speech. It is satisfied
// by [voice.Client].
type VoiceClient interface {
	SynthesizeAndPlay(ctx context.Context, text string, opts ...voice.SynthesizeOption) error
}

// WithVoiceClient sets the client every final recognition result is
// forwarded to. Without one, recognized text is only reported through
// events.
func WithVoiceClient(client VoiceClient) HandlerOption {
	return func(h *Handler) {
		h.voice = client
	}
}

func WithLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

type CallbackOptions struct {
	onEvent               func(event events.Event)
	onRecognizing         func(text string)
	onRecognized          func(text string)
	onRecognitionFinished func(reason string)
	onRecognitionFaulted  func(reason string)
	onResponseReceived    func(status string)
}

// WithEventHandler registers a handler receiving every typed event before
// the kind-specific callbacks run.
//
// Events are delivered from recognizer and voice goroutines, so the handler
// must be safe for concurrent use.
func WithEventHandler(handler func(event events.Event)) HandlerOption {
	return func(h *Handler) {
		h.callbacks.onEvent = handler
	}
}

// WithRecognizingCallback registers a callback for partial results while the
// user is talking.
func WithRecognizingCallback(callback func(text string)) HandlerOption {
	return func(h *Handler) {
		h.callbacks.onRecognizing = callback
	}
}

// WithRecognizedCallback registers a callback for final results, typically
// delivered after the user pauses at the end of a sentence.
func WithRecognizedCallback(callback func(text string)) HandlerOption {
	return func(h *Handler) {
		h.callbacks.onRecognized = callback
	}
}

// WithRecognitionFinishedCallback registers a callback for graceful
// recognizer termination.
func WithRecognitionFinishedCallback(callback func(reason string)) HandlerOption {
	return func(h *Handler) {
		h.callbacks.onRecognitionFinished = callback
	}
}

// WithRecognitionFaultedCallback registers a callback for recognizer errors,
// including the case where no recognizer is available at start.
func WithRecognitionFaultedCallback(callback func(reason string)) HandlerOption {
	return func(h *Handler) {
		h.callbacks.onRecognitionFaulted = callback
	}
}

// WithResponseReceivedCallback registers a callback called when the voice
// service returned an audio reference and the clip download begins.
func WithResponseReceivedCallback(callback func(status string)) HandlerOption {
	return func(h *Handler) {
		h.callbacks.onResponseReceived = callback
	}
}
