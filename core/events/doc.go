// Package events defines the typed dictation event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - dictation.*
//   - voice.*
//
// Every event carries a single string payload and the identifier of the
// session that produced it.
//
// dictation events
//
//   - RecognitionRecognizing (dictation.recognizing): partial hypothesis for
//     the utterance currently being spoken.
//   - RecognitionRecognized (dictation.recognized): final text for an
//     utterance. Each one starts a voice response.
//   - RecognitionFinished (dictation.finished): the recognizer stopped
//     gracefully. Carries the reason.
//   - RecognitionFaulted (dictation.faulted): the recognizer stopped because
//     of an error, or no recognizer was available. Carries the reason.
//
// voice events
//
//   - VoiceResponseReceived (voice.response_received): the voice service
//     returned an audio reference and the clip download is about to start.
package events
