// Package voice talks to the remote voice service that answers a question
// with a spoken clip.
//
// Answering takes two sequential requests: the first sends the question and
// receives an audio reference (a URL to the synthesized clip), the second
// downloads that clip as WAV. The decoded clip is handed to a PlaybackSink.
// Nothing is cached and nothing is retried.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/koscakluka/ema-dictation/core/audio"
	"github.com/koscakluka/ema-dictation/internal/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	maxReferenceBytes = 8 << 10
	maxClipBytes      = 64 << 20
)

var (
	ErrUnexpectedStatus        = errors.New("unexpected response status")
	ErrEmptyAudioReference     = errors.New("voice service returned an empty audio reference")
	ErrInvalidAudioReference   = errors.New("voice service returned an invalid audio reference")
	ErrPlaybackSinkUnavailable = errors.New("no playback sink configured")
	ErrResponseTooLarge        = errors.New("response body exceeds size limit")
)

// PlaybackSink plays decoded clips. Play starts playback immediately and
// replaces whatever clip was playing before.
type PlaybackSink interface {
	Play(clip audio.Clip) error
}

type Client struct {
	endpoint       string
	character      string
	requestTimeout time.Duration

	httpClient *http.Client
	sink       PlaybackSink
	log        *slog.Logger
}

func NewClient(sink PlaybackSink, opts ...ClientOption) *Client {
	client := &Client{
		endpoint:       DefaultEndpoint,
		character:      DefaultCharacter,
		requestTimeout: DefaultRequestTimeout,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
		sink: sink,
		log:  logger,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// RequestURL builds the audio reference request for text. The question is
// query-escaped, so spaces become '+' and reserved characters are
// percent-encoded.
func (c *Client) RequestURL(text string) (string, error) {
	endpoint, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid voice endpoint %q: %w", c.endpoint, err)
	}

	query := url.Values{}
	query.Set("character", c.character)
	query.Set("question", text)
	endpoint.RawQuery = query.Encode()

	return endpoint.String(), nil
}

// SynthesizeAndPlay asks the voice service to answer text and plays the
// answer. The clip request is only issued after the reference request
// succeeded, and playback only happens after the clip was downloaded and
// decoded. Any failure ends the pipeline and is returned.
func (c *Client) SynthesizeAndPlay(ctx context.Context, text string, opts ...SynthesizeOption) error {
	options := SynthesizeOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	ctx, span := tracer.Start(ctx, "synthesize and play")
	defer span.End()
	span.SetAttributes(attribute.Int("request.text_length", len(text)))

	reference, err := c.fetchAudioReference(ctx, text)
	if err != nil {
		recordError(span, err)
		return fmt.Errorf("failed to fetch audio reference: %w", err)
	}
	span.AddEvent("audio reference received")

	if options.ResponseReceivedCallback != nil {
		options.ResponseReceivedCallback()
	}

	clip, err := c.fetchClip(ctx, reference)
	if err != nil {
		recordError(span, err)
		return fmt.Errorf("failed to fetch audio clip: %w", err)
	}
	span.SetAttributes(
		attribute.Int("clip.sample_rate", clip.SampleRate),
		attribute.Int("clip.channels", clip.ChannelCount()),
		attribute.Float64("clip.duration", clip.Duration().Seconds()),
	)

	if c.sink == nil {
		recordError(span, ErrPlaybackSinkUnavailable)
		return ErrPlaybackSinkUnavailable
	}

	if err := c.sink.Play(clip); err != nil {
		metrics.Errors.WithLabelValues(metrics.StagePlayback, "sink").Inc()
		err = fmt.Errorf("failed to play audio clip: %w", err)
		recordError(span, err)
		return err
	}
	metrics.Playbacks.Inc()

	return nil
}

func (c *Client) fetchAudioReference(ctx context.Context, text string) (string, error) {
	ctx, span := tracer.Start(ctx, "fetch audio reference")
	defer span.End()

	requestURL, err := c.RequestURL(text)
	if err != nil {
		recordError(span, err)
		return "", err
	}
	c.log.DebugContext(ctx, "requesting audio reference", "url", requestURL)

	start := time.Now()
	body, err := c.get(ctx, requestURL, "text/plain", maxReferenceBytes, metrics.StageReference)
	if err != nil {
		recordError(span, err)
		return "", err
	}
	metrics.StageDuration.WithLabelValues(metrics.StageReference).Observe(time.Since(start).Seconds())

	reference := strings.TrimSpace(string(body))
	if reference == "" {
		metrics.Errors.WithLabelValues(metrics.StageReference, "reference").Inc()
		recordError(span, ErrEmptyAudioReference)
		return "", ErrEmptyAudioReference
	}

	parsed, err := url.Parse(reference)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		metrics.Errors.WithLabelValues(metrics.StageReference, "reference").Inc()
		err = fmt.Errorf("%w: %q", ErrInvalidAudioReference, reference)
		recordError(span, err)
		return "", err
	}

	c.log.DebugContext(ctx, "received audio reference", "reference", reference)
	span.SetAttributes(attribute.String("response.reference", reference))
	return reference, nil
}

func (c *Client) fetchClip(ctx context.Context, reference string) (audio.Clip, error) {
	ctx, span := tracer.Start(ctx, "fetch audio clip")
	defer span.End()

	start := time.Now()
	body, err := c.get(ctx, reference, "audio/wav", maxClipBytes, metrics.StageClip)
	if err != nil {
		recordError(span, err)
		return audio.Clip{}, err
	}

	clip, err := audio.DecodeWAV(body)
	if err != nil {
		metrics.Errors.WithLabelValues(metrics.StageClip, "decode").Inc()
		err = fmt.Errorf("failed to decode clip: %w", err)
		recordError(span, err)
		return audio.Clip{}, err
	}
	metrics.StageDuration.WithLabelValues(metrics.StageClip).Observe(time.Since(start).Seconds())

	return clip, nil
}

func (c *Client) get(ctx context.Context, requestURL string, accept string, limit int64, stage string) ([]byte, error) {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("request.url", requestURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		metrics.Errors.WithLabelValues(stage, "request").Inc()
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues(stage, "transport").Inc()
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.Errors.WithLabelValues(stage, "status").Inc()
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		metrics.Errors.WithLabelValues(stage, "transport").Inc()
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	if int64(len(body)) > limit {
		metrics.Errors.WithLabelValues(stage, "size").Inc()
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, limit)
	}

	return body, nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
