package deepgram

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-dictation/core/audio"
)

const (
	silenceChunkDuration = 50 * time.Millisecond
	silenceWindow        = time.Second
	keepAliveInterval    = 5 * time.Second
)

// generateSilence keeps Deepgram's endpointing running while the source is
// quiet: short gaps are filled with silence, longer ones with keep-alives.
func (r *Recognizer) generateSilence(ctx context.Context, encoding audio.EncodingInfo) {
	type silenceGeneratorState string
	const (
		silenceGeneratorStateWaiting   silenceGeneratorState = "waiting"
		silenceGeneratorStateSilence   silenceGeneratorState = "silence"
		silenceGeneratorStateKeepAlive silenceGeneratorState = "keepAlive"
	)

	ticker := time.NewTicker(silenceChunkDuration)
	defer ticker.Stop()

	chunk := make([]byte, encoding.SampleRate*encoding.BytesPerFrame()*int(silenceChunkDuration/time.Millisecond)/1000)
	for i := range chunk {
		chunk[i] = encoding.SilenceValue()
	}

	state := silenceGeneratorStateWaiting
	var firstSilenceTime, lastKeepAliveTime time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sinceLastAudio := time.Since(r.lastMessageTime())

			switch state {
			case silenceGeneratorStateWaiting:
				if sinceLastAudio > silenceChunkDuration {
					state = silenceGeneratorStateSilence
					firstSilenceTime = time.Now()
				}

			case silenceGeneratorStateSilence:
				if sinceLastAudio < silenceChunkDuration {
					state = silenceGeneratorStateWaiting
					continue
				}
				if time.Since(firstSilenceTime) >= silenceWindow {
					state = silenceGeneratorStateKeepAlive
					lastKeepAliveTime = time.Now()
					continue
				}

				r.write(websocket.BinaryMessage, chunk)

			case silenceGeneratorStateKeepAlive:
				if sinceLastAudio < silenceChunkDuration {
					state = silenceGeneratorStateWaiting
					continue
				}
				if time.Since(lastKeepAliveTime) >= keepAliveInterval {
					lastKeepAliveTime = time.Now()
					r.write(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`))
				}
			}
		}
	}
}

func (r *Recognizer) lastMessageTime() time.Time {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	return r.lastMsgTs
}

func (r *Recognizer) write(messageType int, data []byte) {
	r.connMu.Lock()
	defer r.connMu.Unlock()

	if r.conn == nil {
		return
	}
	if err := r.conn.WriteMessage(messageType, data); err != nil {
		r.log.Warn("failed to write to deepgram", "error", err)
	}
}
