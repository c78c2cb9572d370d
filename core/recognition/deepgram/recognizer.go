// Package deepgram implements a streaming dictation recognizer on top of the
// Deepgram listen API.
package deepgram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-dictation/core/audio"
	"github.com/koscakluka/ema-dictation/core/recognition"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const stoppedReason = "dictation stopped"

var ErrMissingAPIKey = errors.New("deepgram api key not found")

// Recognizer streams audio from an [recognition.AudioSource] to Deepgram and
// reports the transcripts through its hooks.
type Recognizer struct {
	recognition.Hooks

	source recognition.AudioSource

	apiKey       string
	listenURL    string
	model        string
	language     string
	utteranceEnd time.Duration
	stopTimeout  time.Duration
	dialer       *websocket.Dialer
	log          *slog.Logger

	connMu    sync.Mutex
	conn      *websocket.Conn
	cancel    context.CancelFunc
	done      chan struct{}
	lastMsgTs time.Time

	stopRequested atomic.Bool

	transcriptMu          sync.Mutex
	accumulatedTranscript string
	unendedSegment        bool
}

func NewRecognizer(source recognition.AudioSource, opts ...RecognizerOption) *Recognizer {
	r := &Recognizer{
		source:       source,
		listenURL:    DefaultListenURL,
		model:        DefaultModel,
		language:     DefaultLanguage,
		utteranceEnd: defaultUtteranceEnd,
		stopTimeout:  defaultStopTimeout,
		dialer:       websocket.DefaultDialer,
		log:          logger,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Recognizer) StartDictation(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "start deepgram dictation")
	defer span.End()

	conn, streamCtx, err := r.openStream(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if r.source != nil {
		if err := r.source.StartCapture(streamCtx, r.sendAudio); err != nil {
			if r.detach(conn) {
				_ = conn.Close()
			}
			err = fmt.Errorf("failed to start audio capture: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	return nil
}

// openStream dials a new stream. A stream that is still open, either draining
// after a stop or left running without subscribers, is dropped silently so
// none of its late events reach the new subscribers.
func (r *Recognizer) openStream(ctx context.Context) (*websocket.Conn, context.Context, error) {
	r.connMu.Lock()
	defer r.connMu.Unlock()

	if r.conn != nil {
		r.log.Info("replacing open deepgram stream")
		r.dropLocked()
	}

	encodingInfo := audio.GetDefaultEncodingInfo()
	if r.source != nil {
		if sourceEncoding := r.source.EncodingInfo(); !sourceEncoding.IsZero() {
			encodingInfo = sourceEncoding
		}
	}
	encoding, err := convertEncoding(encodingInfo)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid encoding: %w", err)
	}

	conn, err := r.connectWebsocket(ctx, connectionOptions{
		sampleRate: encoding.SampleRate,
		encoding:   encoding.Format.Name(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open websocket: %w", err)
	}

	r.resetTranscript()
	r.stopRequested.Store(false)
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	r.conn = conn
	r.cancel = cancel
	r.done = done
	r.lastMsgTs = time.Now()

	go r.readAndProcessMessages(streamCtx, conn, done)
	go r.generateSilence(streamCtx, encodingInfo)

	return conn, streamCtx, nil
}

// StopDictation stops capturing and asks Deepgram to flush the remaining
// results. It returns once the stream has closed and finished has been
// reported. If Deepgram does not close the stream within the stop timeout,
// or ctx is done first, the connection is dropped and finished is reported
// with whatever was transcribed so far.
func (r *Recognizer) StopDictation(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "stop deepgram dictation")
	defer span.End()

	if r.source != nil {
		if err := r.source.StopCapture(); err != nil {
			r.log.Warn("failed to stop audio capture", "error", err)
		}
	}

	r.stopRequested.Store(true)

	r.connMu.Lock()
	conn, done := r.conn, r.done
	if conn == nil {
		r.connMu.Unlock()
		return nil
	}
	err := conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)})
	r.connMu.Unlock()
	if err != nil {
		err = fmt.Errorf("failed to close deepgram stream through websocket: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.endStream(conn, err)
		return err
	}

	timer := time.NewTimer(r.stopTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		r.log.Warn("deepgram did not close the stream in time", "timeout", r.stopTimeout)
	case <-ctx.Done():
		r.log.Warn("stopped waiting for deepgram to close the stream", "error", ctx.Err())
	}
	r.endStream(conn, nil)
	<-done
	return nil
}

// Close drops the connection without reporting any further events.
func (r *Recognizer) Close() error {
	if r.source != nil {
		if err := r.source.StopCapture(); err != nil {
			r.log.Warn("failed to stop audio capture", "error", err)
		}
	}

	r.connMu.Lock()
	conn := r.conn
	r.connMu.Unlock()
	if conn == nil || !r.detach(conn) {
		return nil
	}
	return conn.Close()
}

type connectionOptions struct {
	sampleRate int
	encoding   string
}

func (r *Recognizer) connectWebsocket(ctx context.Context, options connectionOptions) (*websocket.Conn, error) {
	apiKey := r.apiKey
	if apiKey == "" {
		apiKey = os.Getenv("DEEPGRAM_API_KEY")
	}
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	listenURL, err := url.Parse(r.listenURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listen url: %w", err)
	}
	queryParams := listenURL.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", r.model)
	queryParams.Set("language", r.language)
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("utterance_end_ms", strconv.FormatInt(r.utteranceEnd.Milliseconds(), 10))
	queryParams.Set("endpointing", strconv.FormatInt(defaultEndpointing.Milliseconds(), 10))
	queryParams.Set("vad_events", "true")
	listenURL.RawQuery = queryParams.Encode()

	_, span := tracer.Start(ctx, "connect deepgram websocket")
	defer span.End()
	span.SetAttributes(
		attribute.String("deepgram.model", r.model),
		attribute.Int("audio.sample_rate", options.sampleRate),
	)

	conn, _, err := r.dialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func (r *Recognizer) sendAudio(audio []byte) {
	r.connMu.Lock()
	defer r.connMu.Unlock()

	if r.conn == nil {
		return
	}
	r.lastMsgTs = time.Now()
	if err := r.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		r.log.Warn("failed to write audio to deepgram", "error", err)
	}
}

func (r *Recognizer) readAndProcessMessages(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			r.endStream(conn, err)
			return
		}
		if msgType != websocket.BinaryMessage && r.isCurrent(conn) {
			r.processMessage(ctx, msg)
		}
	}
}

// endStream reports how the stream on conn ended, unless conn was already
// detached by Close, a replacing start or a failed start. A nil err means the
// stop timed out and the stream ends as finished.
func (r *Recognizer) endStream(conn *websocket.Conn, err error) {
	if !r.detach(conn) {
		return
	}
	_ = conn.Close()

	if err == nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) || r.stopRequested.Load() {
		r.onSpeechEnded()

		reason := stoppedReason
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) && closeErr.Text != "" {
			reason = closeErr.Text
		}
		r.Finished.Invoke(recognition.SessionEnd{Reason: reason})
		return
	}

	r.log.Error("deepgram stream failed", "error", err)
	r.Faulted.Invoke(recognition.SessionEnd{Reason: err.Error()})
}

func (r *Recognizer) detach(conn *websocket.Conn) bool {
	r.connMu.Lock()
	defer r.connMu.Unlock()

	if r.conn != conn {
		return false
	}
	r.conn = nil
	r.done = nil
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	return true
}

func (r *Recognizer) isCurrent(conn *websocket.Conn) bool {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	return r.conn == conn
}

// dropLocked detaches and closes the current connection without reporting
// anything. connMu must be held.
func (r *Recognizer) dropLocked() {
	_ = r.conn.Close()
	r.conn = nil
	r.done = nil
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}
