// Package azure implements a dictation recognizer on top of Azure Cognitive
// Services continuous speech recognition.
package azure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"
	"github.com/koscakluka/ema-dictation/core/recognition"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultLanguage = "en-US"

	stoppedReason  = "session stopped"
	canceledReason = "recognition canceled"

	defaultStopTimeout = 5 * time.Second
)

var ErrMissingCredentials = errors.New("azure speech recognition requires a subscription key and region")

type RecognizerOption func(*Recognizer)

// WithCredentials sets the subscription key and region. When unset they are
// read from AZURE_SPEECH_KEY and AZURE_SPEECH_REGION at StartDictation.
func WithCredentials(key, region string) RecognizerOption {
	return func(r *Recognizer) {
		r.key = key
		r.region = region
	}
}

func WithLanguage(language string) RecognizerOption {
	return func(r *Recognizer) {
		if language != "" {
			r.language = language
		}
	}
}

// WithStopTimeout bounds how long StopDictation waits for the SDK to report
// that the session stopped.
func WithStopTimeout(d time.Duration) RecognizerOption {
	return func(r *Recognizer) {
		if d > 0 {
			r.stopTimeout = d
		}
	}
}

func WithLogger(log *slog.Logger) RecognizerOption {
	return func(r *Recognizer) {
		if log != nil {
			r.log = log
		}
	}
}

// Recognizer feeds audio from an [recognition.AudioSource] into an Azure push
// stream. Each dictation gets its own SDK recognizer, released once the
// session stops or is canceled.
type Recognizer struct {
	recognition.Hooks

	source      recognition.AudioSource
	key         string
	region      string
	language    string
	stopTimeout time.Duration
	log         *slog.Logger

	mu     sync.Mutex
	active *run
}

// run holds the SDK objects of a single dictation.
type run struct {
	config      *speech.SpeechConfig
	format      *audio.AudioStreamFormat
	pushStream  *audio.PushAudioInputStream
	audioConfig *audio.AudioConfig
	recognizer  *speech.SpeechRecognizer

	ended     atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

func NewRecognizer(source recognition.AudioSource, opts ...RecognizerOption) *Recognizer {
	r := &Recognizer{
		source:      source,
		language:    DefaultLanguage,
		stopTimeout: defaultStopTimeout,
		log:         logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recognizer) StartDictation(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "start azure dictation")
	defer span.End()

	active, err := r.newRun()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := <-active.recognizer.StartContinuousRecognitionAsync(); err != nil {
		r.release(active)
		err = fmt.Errorf("failed to start azure recognition: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if r.source != nil {
		if err := r.source.StartCapture(context.WithoutCancel(ctx), r.writer(active)); err != nil {
			<-active.recognizer.StopContinuousRecognitionAsync()
			r.release(active)
			err = fmt.Errorf("failed to start audio capture: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	return nil
}

// StopDictation stops capturing and recognition. It returns once the SDK has
// signalled that the session stopped and the end has been reported, or
// reports finished itself when that does not happen within the stop timeout.
func (r *Recognizer) StopDictation(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "stop azure dictation")
	defer span.End()

	if r.source != nil {
		if err := r.source.StopCapture(); err != nil {
			r.log.Warn("failed to stop audio capture", "error", err)
		}
	}

	r.mu.Lock()
	active := r.active
	r.mu.Unlock()
	if active == nil {
		return nil
	}

	active.pushStream.CloseStream()
	if err := <-active.recognizer.StopContinuousRecognitionAsync(); err != nil {
		err = fmt.Errorf("failed to stop azure recognition: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	timer := time.NewTimer(r.stopTimeout)
	defer timer.Stop()
	select {
	case <-active.done:
		return nil
	case <-timer.C:
		r.log.Warn("azure did not report the session stop in time", "timeout", r.stopTimeout)
	case <-ctx.Done():
		r.log.Warn("stopped waiting for azure to report the session stop", "error", ctx.Err())
	}
	r.end(active, recognition.SessionEnd{Reason: stoppedReason}, false)
	return nil
}

// Close stops capturing and releases the active dictation without reporting
// any further events.
func (r *Recognizer) Close() error {
	if r.source != nil {
		if err := r.source.StopCapture(); err != nil {
			r.log.Warn("failed to stop audio capture", "error", err)
		}
	}

	r.mu.Lock()
	active := r.active
	r.mu.Unlock()
	if active == nil {
		return nil
	}

	active.silence()
	err := <-active.recognizer.StopContinuousRecognitionAsync()
	r.release(active)
	return err
}

func (r *Recognizer) newRun() (*run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A run that is still draining or was left without subscribers is
	// dropped without reporting its end.
	if previous := r.active; previous != nil {
		r.log.Info("replacing open azure recognition")
		r.active = nil
		previous.silence()
		go func() {
			<-previous.recognizer.StopContinuousRecognitionAsync()
			previous.close()
		}()
	}

	key, region := r.key, r.region
	if key == "" {
		key = os.Getenv("AZURE_SPEECH_KEY")
	}
	if region == "" {
		region = os.Getenv("AZURE_SPEECH_REGION")
	}
	if key == "" || region == "" {
		return nil, ErrMissingCredentials
	}

	active := &run{done: make(chan struct{})}
	var err error
	if active.config, err = speech.NewSpeechConfigFromSubscription(key, region); err != nil {
		return nil, fmt.Errorf("could not create speech config: %w", err)
	}
	if err = active.config.SetSpeechRecognitionLanguage(r.language); err != nil {
		active.close()
		return nil, fmt.Errorf("could not set recognition language: %w", err)
	}
	if active.format, err = audio.GetWaveFormatPCM(16000, 16, 1); err != nil {
		active.close()
		return nil, fmt.Errorf("could not create audio format: %w", err)
	}
	if active.pushStream, err = audio.CreatePushAudioInputStreamFromFormat(active.format); err != nil {
		active.close()
		return nil, fmt.Errorf("could not create push stream: %w", err)
	}
	if active.audioConfig, err = audio.NewAudioConfigFromStreamInput(active.pushStream); err != nil {
		active.close()
		return nil, fmt.Errorf("could not create audio config: %w", err)
	}
	if active.recognizer, err = speech.NewSpeechRecognizerFromConfig(active.config, active.audioConfig); err != nil {
		active.close()
		return nil, fmt.Errorf("could not create speech recognizer: %w", err)
	}

	active.recognizer.Recognizing(func(e speech.SpeechRecognitionEventArgs) {
		defer e.Close()
		if e.Result.Text != "" && !active.ended.Load() {
			r.Recognizing.Invoke(recognition.Result{Text: e.Result.Text})
		}
	})
	active.recognizer.Recognized(func(e speech.SpeechRecognitionEventArgs) {
		defer e.Close()
		if e.Result.Text != "" && !active.ended.Load() {
			r.Recognized.Invoke(recognition.Result{Text: e.Result.Text})
		}
	})
	active.recognizer.SessionStopped(func(e speech.SessionEventArgs) {
		defer e.Close()
		r.end(active, recognition.SessionEnd{Reason: stoppedReason}, false)
	})
	active.recognizer.Canceled(func(e speech.SpeechRecognitionCanceledEventArgs) {
		defer e.Close()
		end, faulted := canceledEnd(e.ErrorDetails)
		r.end(active, end, faulted)
	})

	r.active = active
	return active, nil
}

// canceledEnd maps a cancellation to a session end. Azure cancels with empty
// details when the input stream reaches its end.
func canceledEnd(errorDetails string) (recognition.SessionEnd, bool) {
	if errorDetails == "" {
		return recognition.SessionEnd{Reason: canceledReason}, false
	}
	return recognition.SessionEnd{Reason: errorDetails}, true
}

func (r *Recognizer) end(active *run, end recognition.SessionEnd, faulted bool) {
	if !active.ended.CompareAndSwap(false, true) {
		return
	}
	defer close(active.done)

	r.mu.Lock()
	if r.active == active {
		r.active = nil
	}
	r.mu.Unlock()

	if faulted {
		r.log.Error("azure recognition canceled", "reason", end.Reason)
		r.Faulted.Invoke(end)
	} else {
		r.Finished.Invoke(end)
	}

	// SDK objects can not be released from inside their own callbacks.
	go active.close()
}

func (r *Recognizer) release(active *run) {
	r.mu.Lock()
	if r.active == active {
		r.active = nil
	}
	r.mu.Unlock()

	active.close()
}

func (r *Recognizer) writer(active *run) func([]byte) {
	return func(audio []byte) {
		if active.ended.Load() {
			return
		}
		if err := active.pushStream.Write(audio); err != nil {
			r.log.Warn("failed to write audio to azure push stream", "error", err)
		}
	}
}

// silence marks the run as ended without reporting anything.
func (a *run) silence() {
	if a.ended.CompareAndSwap(false, true) {
		close(a.done)
	}
}

func (a *run) close() {
	a.closeOnce.Do(func() {
		if a.recognizer != nil {
			a.recognizer.Close()
		}
		if a.audioConfig != nil {
			a.audioConfig.Close()
		}
		if a.pushStream != nil {
			a.pushStream.Close()
		}
		if a.format != nil {
			a.format.Close()
		}
		if a.config != nil {
			a.config.Close()
		}
	})
}
