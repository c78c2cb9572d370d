package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/go-audio/wav"
)

var (
	ErrInvalidWAV     = errors.New("invalid wav data")
	ErrUnsupportedWAV = errors.New("unsupported wav encoding")
)

const wavFormatPCM = 1

// DecodeWAV decodes an integer PCM WAV file into a 16-bit little-endian
// clip. 8, 24 and 32 bit sources are rescaled to 16 bits.
func DecodeWAV(data []byte) (Clip, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return Clip{}, ErrInvalidWAV
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		return Clip{}, fmt.Errorf("%w: format tag %d", ErrUnsupportedWAV, decoder.WavAudioFormat)
	}

	buffer, err := decoder.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("%w: %w", ErrInvalidWAV, err)
	}

	bitDepth := int(decoder.BitDepth)
	pcm := make([]byte, len(buffer.Data)*2)
	for i, sample := range buffer.Data {
		value, err := toLinear16(sample, bitDepth)
		if err != nil {
			return Clip{}, err
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(value))
	}

	return Clip{
		EncodingInfo: EncodingInfo{
			SampleRate: int(decoder.SampleRate),
			Channels:   int(decoder.NumChans),
			Format:     EncodingLinear16,
		},
		Data: pcm,
	}, nil
}

func toLinear16(sample int, bitDepth int) (int16, error) {
	switch bitDepth {
	case 8:
		// 8 bit wav samples are unsigned
		return int16((sample - 128) << 8), nil
	case 16:
		return int16(sample), nil
	case 24:
		return int16(sample >> 8), nil
	case 32:
		return int16(sample >> 16), nil
	}
	return 0, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedWAV, bitDepth)
}
