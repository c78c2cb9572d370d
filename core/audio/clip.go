package audio

import "time"

// Clip is a fully decoded audio clip ready to be handed to a playback device.
// Data holds interleaved frames in the layout described by EncodingInfo.
type Clip struct {
	EncodingInfo
	Data []byte
}

// Frames returns the number of complete frames in the clip.
func (c Clip) Frames() int {
	bytesPerFrame := c.BytesPerFrame()
	if bytesPerFrame <= 0 {
		return 0
	}
	return len(c.Data) / bytesPerFrame
}

func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

func (c Clip) IsEmpty() bool {
	return c.Frames() == 0
}
