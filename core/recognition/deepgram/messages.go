package deepgram

import (
	"context"
	"encoding/json"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/koscakluka/ema-dictation/core/recognition"
)

func (r *Recognizer) processMessage(ctx context.Context, msg []byte) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		r.log.WarnContext(ctx, "failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			r.log.WarnContext(ctx, "failed to unmarshal deepgram message", "error", err)
			return
		}

		transcript := ""
		if len(msgResp.Channel.Alternatives) > 0 {
			transcript = strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		}

		if msgResp.IsFinal {
			if len(transcript) > 0 {
				r.Recognizing.Invoke(recognition.Result{Text: r.accumulate(transcript)})
			}
			if msgResp.SpeechFinal {
				r.onSpeechEnded()
			}
		} else if len(transcript) > 0 {
			r.Recognizing.Invoke(recognition.Result{Text: r.interim(transcript)})
		}

	case api.TypeUtteranceEndResponse:
		r.transcriptMu.Lock()
		unended := r.unendedSegment
		r.transcriptMu.Unlock()

		if unended {
			r.onSpeechEnded()
		}

	case api.TypeSpeechStartedResponse:
		r.transcriptMu.Lock()
		r.unendedSegment = true
		r.transcriptMu.Unlock()
	}
}

func (r *Recognizer) accumulate(transcript string) string {
	r.transcriptMu.Lock()
	defer r.transcriptMu.Unlock()

	r.unendedSegment = true
	r.accumulatedTranscript = strings.TrimSpace(r.accumulatedTranscript + " " + transcript)
	return r.accumulatedTranscript
}

func (r *Recognizer) interim(transcript string) string {
	r.transcriptMu.Lock()
	defer r.transcriptMu.Unlock()

	return strings.TrimSpace(r.accumulatedTranscript + " " + transcript)
}

// onSpeechEnded reports the accumulated segments as one final result.
func (r *Recognizer) onSpeechEnded() {
	r.transcriptMu.Lock()
	r.unendedSegment = false
	fullTranscript := strings.TrimSpace(r.accumulatedTranscript)
	r.accumulatedTranscript = ""
	r.transcriptMu.Unlock()

	if len(fullTranscript) > 0 {
		r.Recognized.Invoke(recognition.Result{Text: fullTranscript})
	}
}

func (r *Recognizer) resetTranscript() {
	r.transcriptMu.Lock()
	defer r.transcriptMu.Unlock()

	r.accumulatedTranscript = ""
	r.unendedSegment = false
}
