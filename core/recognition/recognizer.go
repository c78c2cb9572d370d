// Package recognition describes the speech recognizer capabilities a
// dictation session consumes.
//
// A dictation Recognizer converts speech into text and reports four
// independent kinds of events: partial results while the user is talking,
// final results after a pause, graceful termination and faults. Handlers for
// each kind are registered individually and return a Subscription that
// removes exactly that handler.
//
// A KeywordRecognizer is a competing recognizer listening for wake phrases.
// Only start and stop are consumed from it.
package recognition

import "context"

// Result carries recognized text, either a partial hypothesis or a final
// utterance depending on the event it was delivered with.
type Result struct {
	Text string
}

// SessionEnd carries the reason a recognition session terminated.
type SessionEnd struct {
	Reason string
}

type Recognizer interface {
	OnRecognizing(handler func(Result)) Subscription
	OnRecognized(handler func(Result)) Subscription
	OnFinished(handler func(SessionEnd)) Subscription
	OnFaulted(handler func(SessionEnd)) Subscription

	// StartDictation begins recognition. Events may be delivered before it
	// returns.
	StartDictation(ctx context.Context) error
	// StopDictation asks the recognizer to stop. The end of the session is
	// reported through the finished or faulted handlers.
	StopDictation(ctx context.Context) error
}

type KeywordRecognizer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Provider resolves the recognizers currently available to the host. Either
// method returns nil when no such recognizer is running.
type Provider interface {
	DictationRecognizer() Recognizer
	KeywordRecognizer() KeywordRecognizer
}
