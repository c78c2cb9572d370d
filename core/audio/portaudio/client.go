// Package portaudio plays clips and captures microphone audio through
// PortAudio blocking streams.
package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-dictation/core/audio"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-dictation/core/audio/portaudio"

var logger = otelslog.NewLogger(scopeName)

var ErrUnsupportedFormat = errors.New("unsupported audio format")

type Client struct {
	bufferSize int
	log        *slog.Logger

	captureMu     sync.Mutex
	input         *portaudio.Stream
	in            []int16
	stopCapture   context.CancelFunc
	captureDone   chan struct{}
	captureActive bool

	playbackMu     sync.Mutex
	output         *portaudio.Stream
	outputEncoding audio.EncodingInfo
	out            []int16
	stopPlayback   context.CancelFunc
	playbackDone   chan struct{}
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, bufferSize)
	input, err := portaudio.OpenDefaultStream(1, 0, audio.DefaultSampleRate, bufferSize, in)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio input stream: %w", err)
	}

	return &Client{
		bufferSize: bufferSize,
		log:        logger,
		input:      input,
		in:         in,
	}, nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Channels:   audio.DefaultChannels,
		Format:     audio.EncodingLinear16,
	}
}

// StartCapture reads the microphone on its own goroutine until StopCapture
// is called or ctx is done.
func (c *Client) StartCapture(ctx context.Context, onAudio func(audio []byte)) error {
	c.captureMu.Lock()
	defer c.captureMu.Unlock()

	if c.captureActive {
		c.stopCaptureLocked()
	}

	if err := c.input.Start(); err != nil {
		return fmt.Errorf("failed to start portaudio input stream: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.stopCapture = cancel
	c.captureDone = done
	c.captureActive = true

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if err := c.input.Read(); err != nil {
					c.log.Warn("failed to read from portaudio stream", "error", err)
					continue
				}

				audioBuffer := bytes.Buffer{}
				_ = binary.Write(&audioBuffer, binary.LittleEndian, c.in)
				onAudio(audioBuffer.Bytes())
			}
		}
	}()

	return nil
}

func (c *Client) StopCapture() error {
	c.captureMu.Lock()
	defer c.captureMu.Unlock()

	if !c.captureActive {
		return nil
	}
	return c.stopCaptureLocked()
}

func (c *Client) stopCaptureLocked() error {
	c.stopCapture()
	<-c.captureDone
	c.captureActive = false

	if err := c.input.Stop(); err != nil {
		return fmt.Errorf("failed to stop portaudio input stream: %w", err)
	}
	return nil
}

// Play cancels the clip currently being written and starts writing clip.
func (c *Client) Play(clip audio.Clip) error {
	if clip.Format != audio.EncodingLinear16 {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, clip.Format.Name())
	}

	c.playbackMu.Lock()
	defer c.playbackMu.Unlock()

	if c.stopPlayback != nil {
		c.stopPlayback()
		<-c.playbackDone
		c.stopPlayback = nil
	}

	if c.output == nil || c.outputEncoding != clip.EncodingInfo {
		if err := c.openOutput(clip.EncodingInfo); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.stopPlayback = cancel
	c.playbackDone = done

	go c.write(ctx, clip.Data, done)
	return nil
}

func (c *Client) openOutput(encoding audio.EncodingInfo) error {
	if c.output != nil {
		_ = c.output.Stop()
		_ = c.output.Close()
		c.output = nil
	}

	out := make([]int16, c.bufferSize*encoding.ChannelCount())
	output, err := portaudio.OpenDefaultStream(0, encoding.ChannelCount(), float64(encoding.SampleRate), c.bufferSize, out)
	if err != nil {
		return fmt.Errorf("failed to open portaudio output stream: %w", err)
	}
	if err := output.Start(); err != nil {
		_ = output.Close()
		return fmt.Errorf("failed to start portaudio output stream: %w", err)
	}

	c.output = output
	c.outputEncoding = encoding
	c.out = out
	return nil
}

func (c *Client) write(ctx context.Context, data []byte, done chan<- struct{}) {
	defer close(done)

	chunkSize := len(c.out) * 2
	for offset := 0; offset < len(data); offset += chunkSize {
		select {
		case <-ctx.Done():
			return
		default:
		}

		chunk := data[offset:min(offset+chunkSize, len(data))]
		clear(c.out)
		_ = binary.Read(bytes.NewReader(chunk[:len(chunk)/2*2]), binary.LittleEndian, c.out[:len(chunk)/2])
		if err := c.output.Write(); err != nil {
			c.log.Warn("failed to write to portaudio stream", "error", err)
			return
		}
	}
}

func (c *Client) Close() {
	_ = c.StopCapture()

	c.playbackMu.Lock()
	if c.stopPlayback != nil {
		c.stopPlayback()
		<-c.playbackDone
		c.stopPlayback = nil
	}
	if c.output != nil {
		_ = c.output.Stop()
		_ = c.output.Close()
		c.output = nil
	}
	c.playbackMu.Unlock()

	_ = c.input.Close()
	_ = portaudio.Terminate()
}
