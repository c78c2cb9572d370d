package recognition

import (
	"context"

	"github.com/koscakluka/ema-dictation/core/audio"
)

// AudioSource feeds captured microphone audio to streaming recognizers.
type AudioSource interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
	EncodingInfo() audio.EncodingInfo
}
