// Package keyword listens for wake phrases on top of a dictation recognizer.
package keyword

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/koscakluka/ema-dictation/core/recognition"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-dictation/core/recognition/keyword"

var logger = otelslog.NewLogger(scopeName)

type ListenerOption func(*Listener)

// WithKeywordCallback sets the callback invoked with the matched phrase. It
// runs on the recognizer's goroutine.
func WithKeywordCallback(callback func(phrase string)) ListenerOption {
	return func(l *Listener) {
		l.onKeyword = callback
	}
}

func WithLogger(log *slog.Logger) ListenerOption {
	return func(l *Listener) {
		if log != nil {
			l.log = log
		}
	}
}

// Listener is a [recognition.KeywordRecognizer] matching final results of
// the wrapped recognizer against a fixed phrase list. Matching ignores case
// and punctuation and only accepts whole words.
type Listener struct {
	recognizer recognition.Recognizer
	phrases    []string
	onKeyword  func(phrase string)
	log        *slog.Logger

	mu            sync.Mutex
	running       bool
	subscriptions []recognition.Subscription
}

func NewListener(recognizer recognition.Recognizer, phrases []string, opts ...ListenerOption) *Listener {
	l := &Listener{
		recognizer: recognizer,
		log:        logger,
	}
	for _, phrase := range phrases {
		if normalized := normalize(phrase); normalized != "" {
			l.phrases = append(l.phrases, normalized)
		}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = true
	l.subscriptions = []recognition.Subscription{
		l.recognizer.OnRecognized(l.match),
		l.recognizer.OnFaulted(func(end recognition.SessionEnd) {
			l.log.Warn("keyword recognizer faulted", "reason", end.Reason)
			l.reset()
		}),
		l.recognizer.OnFinished(func(recognition.SessionEnd) { l.reset() }),
	}
	l.mu.Unlock()

	if err := l.recognizer.StartDictation(ctx); err != nil {
		l.reset()
		return fmt.Errorf("failed to start keyword recognition: %w", err)
	}
	return nil
}

func (l *Listener) Stop(ctx context.Context) error {
	l.mu.Lock()
	running := l.running
	l.mu.Unlock()
	if !running {
		return nil
	}

	l.reset()
	if err := l.recognizer.StopDictation(ctx); err != nil {
		return fmt.Errorf("failed to stop keyword recognition: %w", err)
	}
	return nil
}

func (l *Listener) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Listener) reset() {
	l.mu.Lock()
	subscriptions := l.subscriptions
	l.subscriptions = nil
	l.running = false
	l.mu.Unlock()

	for _, subscription := range subscriptions {
		subscription.Unsubscribe()
	}
}

func (l *Listener) match(result recognition.Result) {
	if phrase, ok := Match(result.Text, l.phrases); ok && l.onKeyword != nil {
		l.onKeyword(phrase)
	}
}

// Match reports the first phrase contained in text as a sequence of whole
// words, comparing case- and punctuation-insensitively.
func Match(text string, phrases []string) (string, bool) {
	words := " " + normalize(text) + " "
	for _, phrase := range phrases {
		normalized := normalize(phrase)
		if normalized == "" {
			continue
		}
		if strings.Contains(words, " "+normalized+" ") {
			return phrase, true
		}
	}
	return "", false
}

func normalize(text string) string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
	return strings.Join(fields, " ")
}
