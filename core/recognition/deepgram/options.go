package deepgram

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultListenURL = "wss://api.deepgram.com/v1/listen"
	DefaultModel     = "nova-3"
	DefaultLanguage  = "en-US"

	defaultUtteranceEnd = 1000 * time.Millisecond
	defaultEndpointing  = 300 * time.Millisecond
	defaultStopTimeout  = 5 * time.Second
)

type RecognizerOption func(*Recognizer)

// WithAPIKey sets the key used to authenticate with Deepgram. When unset the
// DEEPGRAM_API_KEY environment variable is read at StartDictation.
func WithAPIKey(apiKey string) RecognizerOption {
	return func(r *Recognizer) {
		r.apiKey = apiKey
	}
}

func WithListenURL(listenURL string) RecognizerOption {
	return func(r *Recognizer) {
		if listenURL != "" {
			r.listenURL = listenURL
		}
	}
}

func WithModel(model string) RecognizerOption {
	return func(r *Recognizer) {
		if model != "" {
			r.model = model
		}
	}
}

func WithLanguage(language string) RecognizerOption {
	return func(r *Recognizer) {
		if language != "" {
			r.language = language
		}
	}
}

// WithUtteranceEnd sets how long Deepgram waits after the last word before
// reporting the end of an utterance.
func WithUtteranceEnd(d time.Duration) RecognizerOption {
	return func(r *Recognizer) {
		if d > 0 {
			r.utteranceEnd = d
		}
	}
}

// WithStopTimeout bounds how long StopDictation waits for Deepgram to flush
// and close the stream.
func WithStopTimeout(d time.Duration) RecognizerOption {
	return func(r *Recognizer) {
		if d > 0 {
			r.stopTimeout = d
		}
	}
}

func WithDialer(dialer *websocket.Dialer) RecognizerOption {
	return func(r *Recognizer) {
		if dialer != nil {
			r.dialer = dialer
		}
	}
}

func WithLogger(log *slog.Logger) RecognizerOption {
	return func(r *Recognizer) {
		if log != nil {
			r.log = log
		}
	}
}
