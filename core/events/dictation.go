package events

const (
	// KindRecognitionRecognizing identifies partial recognition hypotheses.
	KindRecognitionRecognizing Kind = "dictation.recognizing"
	// KindRecognitionRecognized identifies final recognized utterances.
	KindRecognitionRecognized Kind = "dictation.recognized"
	// KindRecognitionFinished identifies graceful recognizer termination.
	KindRecognitionFinished Kind = "dictation.finished"
	// KindRecognitionFaulted identifies recognizer errors.
	KindRecognitionFaulted Kind = "dictation.faulted"
)

// RecognitionRecognizing carries the text heard so far while the user is
// still talking.
type RecognitionRecognizing struct {
	Base
	Text string
}

// NewRecognitionRecognizing creates a partial recognition event.
func NewRecognitionRecognizing(sessionID, text string) RecognitionRecognizing {
	return RecognitionRecognizing{Base: NewBase(KindRecognitionRecognizing, sessionID), Text: text}
}

// RecognitionRecognized carries the final text of an utterance.
type RecognitionRecognized struct {
	Base
	Text string
}

// NewRecognitionRecognized creates a final recognition event.
func NewRecognitionRecognized(sessionID, text string) RecognitionRecognized {
	return RecognitionRecognized{Base: NewBase(KindRecognitionRecognized, sessionID), Text: text}
}

// RecognitionFinished reports that the recognizer stopped without error.
type RecognitionFinished struct {
	Base
	Reason string
}

// NewRecognitionFinished creates a recognition finished event.
func NewRecognitionFinished(sessionID, reason string) RecognitionFinished {
	return RecognitionFinished{Base: NewBase(KindRecognitionFinished, sessionID), Reason: reason}
}

// RecognitionFaulted reports that recognition stopped because of an error.
type RecognitionFaulted struct {
	Base
	Reason string
}

// NewRecognitionFaulted creates a recognition faulted event.
func NewRecognitionFaulted(sessionID, reason string) RecognitionFaulted {
	return RecognitionFaulted{Base: NewBase(KindRecognitionFaulted, sessionID), Reason: reason}
}
