package events

// KindVoiceResponseReceived identifies a voice service reply carrying an
// audio reference.
const KindVoiceResponseReceived Kind = "voice.response_received"

// ResponseReceivedStatus is the payload of every VoiceResponseReceived event.
const ResponseReceivedStatus = "response received"

// VoiceResponseReceived marks that the voice service answered with an audio
// reference for the given utterance. The reference itself is not exposed.
type VoiceResponseReceived struct {
	Base
	Status string
}

// NewVoiceResponseReceived creates a voice response received event.
func NewVoiceResponseReceived(sessionID string) VoiceResponseReceived {
	return VoiceResponseReceived{Base: NewBase(KindVoiceResponseReceived, sessionID), Status: ResponseReceivedStatus}
}
