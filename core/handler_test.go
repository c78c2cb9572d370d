package dictation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	events "github.com/koscakluka/ema-dictation/core/events"
	"github.com/koscakluka/ema-dictation/core/recognition"
	"github.com/koscakluka/ema-dictation/core/voice"
)

func TestStartWithoutRecognizerEmitsSingleFault(t *testing.T) {
	keyword := &keywordStub{}
	recorder := &eventRecorder{}
	h := NewHandler(&providerStub{keyword: keyword}, WithEventHandler(recorder.record))

	err := h.Start(context.Background())
	if !errors.Is(err, ErrRecognizerUnavailable) {
		t.Fatalf("expected ErrRecognizerUnavailable, got %v", err)
	}
	if h.IsActive() {
		t.Fatalf("expected handler to stay idle")
	}

	got := recorder.snapshot()
	if len(got) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(got))
	}
	faulted, ok := got[0].(events.RecognitionFaulted)
	if !ok {
		t.Fatalf("expected faulted event, got %T", got[0])
	}
	if faulted.Reason != RecognizerUnavailableReason {
		t.Fatalf("unexpected fault reason: %q", faulted.Reason)
	}
	if keyword.stops.Load() != 0 || keyword.starts.Load() != 0 {
		t.Fatalf("expected keyword recognizer to be left alone")
	}
}

func TestStartWithNilProviderEmitsFault(t *testing.T) {
	var reason string
	h := NewHandler(nil, WithRecognitionFaultedCallback(func(r string) { reason = r }))

	if err := h.Start(context.Background()); !errors.Is(err, ErrRecognizerUnavailable) {
		t.Fatalf("expected ErrRecognizerUnavailable, got %v", err)
	}
	if reason != RecognizerUnavailableReason {
		t.Fatalf("unexpected fault reason: %q", reason)
	}
}

func TestStartSuspendsKeywordAndSubscribes(t *testing.T) {
	recognizer := &recognizerStub{}
	keyword := &keywordStub{}
	h := NewHandler(&providerStub{recognizers: []recognition.Recognizer{recognizer}, keyword: keyword})

	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	if !h.IsActive() {
		t.Fatalf("expected handler to be active")
	}
	if got := recognizer.Subscribers(); got != 4 {
		t.Fatalf("expected 4 subscriptions, got %d", got)
	}
	if got := recognizer.starts.Load(); got != 1 {
		t.Fatalf("expected one StartDictation call, got %d", got)
	}
	if got := keyword.stops.Load(); got != 1 {
		t.Fatalf("expected keyword recognizer to be suspended once, got %d", got)
	}
	if got := keyword.starts.Load(); got != 0 {
		t.Fatalf("expected keyword recognizer to stay suspended, got %d resumes", got)
	}
}

func TestStartWhileActiveTearsDownPreviousSession(t *testing.T) {
	first := &recognizerStub{}
	second := &recognizerStub{}
	keyword := &keywordStub{}
	h := NewHandler(&providerStub{recognizers: []recognition.Recognizer{first, second}, keyword: keyword})

	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("unexpected restart error: %v", err)
	}

	if got := first.stops.Load(); got != 1 {
		t.Fatalf("expected previous recognizer to be stopped once, got %d", got)
	}
	if got := first.Subscribers(); got != 0 {
		t.Fatalf("expected previous recognizer to be unsubscribed, got %d handlers", got)
	}
	if got := second.Subscribers(); got != 4 {
		t.Fatalf("expected new recognizer to have 4 subscriptions, got %d", got)
	}
	if got := keyword.starts.Load(); got != 1 {
		t.Fatalf("expected keyword recognizer to be resumed once between sessions, got %d", got)
	}
	if got := keyword.stops.Load(); got != 2 {
		t.Fatalf("expected keyword recognizer to be suspended for each session, got %d", got)
	}
}

func TestTeardownIsIdempotent(t *testing.T) {
	recognizer := &recognizerStub{}
	keyword := &keywordStub{}
	h := NewHandler(&providerStub{recognizers: []recognition.Recognizer{recognizer}, keyword: keyword})

	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	h.Teardown()
	h.Teardown()

	if h.IsActive() {
		t.Fatalf("expected handler to be idle after teardown")
	}
	if got := recognizer.Subscribers(); got != 0 {
		t.Fatalf("expected no subscriptions after teardown, got %d", got)
	}
	if got := keyword.starts.Load(); got != 1 {
		t.Fatalf("expected keyword recognizer to be resumed exactly once, got %d", got)
	}
}

func TestTeardownWithoutSessionIsNoop(t *testing.T) {
	h := NewHandler(&providerStub{})
	h.Teardown()

	if h.IsActive() {
		t.Fatalf("expected handler to stay idle")
	}
}

func TestStopKeepsSessionUntilRecognizerFinishes(t *testing.T) {
	recognizer := &recognizerStub{}
	var reason string
	h := NewHandler(&providerStub{recognizers: []recognition.Recognizer{recognizer}},
		WithRecognitionFinishedCallback(func(r string) { reason = r }))

	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if err := h.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}

	if !h.IsActive() {
		t.Fatalf("expected session to stay active until the recognizer finishes")
	}
	if got := recognizer.Subscribers(); got != 4 {
		t.Fatalf("expected subscriptions to survive stop, got %d", got)
	}

	recognizer.Finished.Invoke(recognition.SessionEnd{Reason: "user requested stop"})

	if h.IsActive() {
		t.Fatalf("expected finished event to tear the session down")
	}
	if reason != "user requested stop" {
		t.Fatalf("unexpected finished reason: %q", reason)
	}
}

func TestStopWithoutSessionIsNoop(t *testing.T) {
	h := NewHandler(&providerStub{})
	if err := h.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}
}

func TestStopFinishingSynchronouslyTearsDown(t *testing.T) {
	recognizer := &recognizerStub{finishOnStop: true}
	keyword := &keywordStub{}
	h := NewHandler(&providerStub{recognizers: []recognition.Recognizer{recognizer}, keyword: keyword})

	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.Stop(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("stop deadlocked on a synchronously finishing recognizer")
	}

	if h.IsActive() {
		t.Fatalf("expected session to be torn down")
	}
	if got := keyword.starts.Load(); got != 1 {
		t.Fatalf("expected keyword recognizer to be resumed once, got %d", got)
	}
}

func TestFaultedEventTearsDownAndReportsReason(t *testing.T) {
	recognizer := &recognizerStub{}
	keyword := &keywordStub{}
	recorder := &eventRecorder{}
	h := NewHandler(&providerStub{recognizers: []recognition.Recognizer{recognizer}, keyword: keyword},
		WithEventHandler(recorder.record))

	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	recognizer.Faulted.Invoke(recognition.SessionEnd{Reason: "microphone disconnected"})
	recognizer.Faulted.Invoke(recognition.SessionEnd{Reason: "ignored"})

	got := recorder.snapshot()
	if len(got) != 1 {
		t.Fatalf("expected one event, got %d", len(got))
	}
	faulted, ok := got[0].(events.RecognitionFaulted)
	if !ok || faulted.Reason != "microphone disconnected" {
		t.Fatalf("unexpected event: %#v", got[0])
	}
	if h.IsActive() {
		t.Fatalf("expected faulted event to tear the session down")
	}
	if got := keyword.starts.Load(); got != 1 {
		t.Fatalf("expected keyword recognizer to be resumed once, got %d", got)
	}
}

func TestStartDictationErrorFaultsAndTearsDown(t *testing.T) {
	recognizer := &recognizerStub{startErr: errors.New("device busy")}
	keyword := &keywordStub{}
	var faults atomic.Int32
	h := NewHandler(&providerStub{recognizers: []recognition.Recognizer{recognizer}, keyword: keyword},
		WithRecognitionFaultedCallback(func(string) { faults.Add(1) }))

	err := h.Start(context.Background())
	if err == nil || !errors.Is(err, recognizer.startErr) {
		t.Fatalf("expected wrapped start error, got %v", err)
	}
	if h.IsActive() {
		t.Fatalf("expected handler to be idle after failed start")
	}
	if got := faults.Load(); got != 1 {
		t.Fatalf("expected one fault, got %d", got)
	}
	if got := recognizer.Subscribers(); got != 0 {
		t.Fatalf("expected no subscriptions after failed start, got %d", got)
	}
	if got := keyword.starts.Load(); got != 1 {
		t.Fatalf("expected keyword recognizer to be resumed, got %d", got)
	}
}

func TestRecognizedForwardsExactTextOnce(t *testing.T) {
	recognizer := &recognizerStub{}
	client := newVoiceStub()
	var partial, final string
	h := NewHandler(&providerStub{recognizers: []recognition.Recognizer{recognizer}},
		WithVoiceClient(client),
		WithRecognizingCallback(func(text string) { partial = text }),
		WithRecognizedCallback(func(text string) { final = text }),
	)
	defer h.Close()

	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	recognizer.Recognizing.Invoke(recognition.Result{Text: "what is your"})
	recognizer.Recognized.Invoke(recognition.Result{Text: "what is your favorite color"})

	if partial != "what is your" {
		t.Fatalf("unexpected partial text: %q", partial)
	}
	if final != "what is your favorite color" {
		t.Fatalf("unexpected final text: %q", final)
	}

	select {
	case text := <-client.texts:
		if text != "what is your favorite color" {
			t.Fatalf("unexpected forwarded text: %q", text)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected final result to be forwarded to the voice client")
	}

	h.Close()
	if got := client.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one voice call, got %d", got)
	}
}

func TestResponseReceivedIsReported(t *testing.T) {
	recognizer := &recognizerStub{}
	client := newVoiceStub()
	statuses := make(chan string, 1)
	h := NewHandler(&providerStub{recognizers: []recognition.Recognizer{recognizer}},
		WithVoiceClient(client),
		WithResponseReceivedCallback(func(status string) { statuses <- status }),
	)
	defer h.Close()

	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	recognizer.Recognized.Invoke(recognition.Result{Text: "hello"})

	select {
	case status := <-statuses:
		if status != events.ResponseReceivedStatus {
			t.Fatalf("unexpected status: %q", status)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected response received status")
	}
}

func TestEventsFromSupersededSessionAreDropped(t *testing.T) {
	first := &recognizerStub{}
	second := &recognizerStub{}
	recorder := &eventRecorder{}
	h := NewHandler(&providerStub{recognizers: []recognition.Recognizer{first, second}},
		WithEventHandler(recorder.record))

	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("unexpected restart error: %v", err)
	}

	first.Recognized.Invoke(recognition.Result{Text: "stale"})
	first.Finished.Invoke(recognition.SessionEnd{Reason: "stale"})

	if got := recorder.snapshot(); len(got) != 0 {
		t.Fatalf("expected stale events to be dropped, got %d", len(got))
	}
	if !h.IsActive() {
		t.Fatalf("expected new session to stay active")
	}
}

func TestTeardownDoesNotCancelInFlightResponse(t *testing.T) {
	recognizer := &recognizerStub{}
	client := newVoiceStub()
	client.block = make(chan struct{})
	h := NewHandler(&providerStub{recognizers: []recognition.Recognizer{recognizer}}, WithVoiceClient(client))

	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	recognizer.Recognized.Invoke(recognition.Result{Text: "hello"})
	<-client.texts

	h.Teardown()
	close(client.block)

	select {
	case err := <-client.results:
		if err != nil {
			t.Fatalf("expected response to survive teardown, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("voice call did not return")
	}
	h.Close()
}

func TestCloseCancelsInFlightResponses(t *testing.T) {
	recognizer := &recognizerStub{}
	client := newVoiceStub()
	client.block = make(chan struct{})
	defer close(client.block)
	h := NewHandler(&providerStub{recognizers: []recognition.Recognizer{recognizer}}, WithVoiceClient(client))

	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	recognizer.Recognized.Invoke(recognition.Result{Text: "hello"})
	<-client.texts

	h.Close()

	select {
	case err := <-client.results:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected response to be cancelled, got %v", err)
		}
	default:
		t.Fatalf("expected Close to wait for in-flight responses")
	}
	if h.IsActive() {
		t.Fatalf("expected handler to be idle after close")
	}
}

func TestCloseWaitsForResponsesStartedConcurrently(t *testing.T) {
	client := &pendingVoice{}
	h := NewHandler(&providerStub{}, WithVoiceClient(client))

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					h.respond("session", "hello")
				}
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	h.Close()

	if got := client.inFlight.Load(); got != 0 {
		t.Fatalf("expected no response in flight after close, got %d", got)
	}
	calls := client.calls.Load()
	time.Sleep(20 * time.Millisecond)
	close(done)
	wg.Wait()

	if got := client.calls.Load(); got != calls {
		t.Fatalf("expected no responses after close, got %d more", got-calls)
	}
}

type providerStub struct {
	mu          sync.Mutex
	recognizers []recognition.Recognizer
	keyword     *keywordStub
}

func (p *providerStub) DictationRecognizer() recognition.Recognizer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.recognizers) == 0 {
		return nil
	}
	recognizer := p.recognizers[0]
	if len(p.recognizers) > 1 {
		p.recognizers = p.recognizers[1:]
	}
	return recognizer
}

func (p *providerStub) KeywordRecognizer() recognition.KeywordRecognizer {
	if p.keyword == nil {
		return nil
	}
	return p.keyword
}

type recognizerStub struct {
	recognition.Hooks

	starts       atomic.Int32
	stops        atomic.Int32
	startErr     error
	finishOnStop bool
}

func (r *recognizerStub) StartDictation(context.Context) error {
	r.starts.Add(1)
	return r.startErr
}

func (r *recognizerStub) StopDictation(context.Context) error {
	r.stops.Add(1)
	if r.finishOnStop {
		r.Finished.Invoke(recognition.SessionEnd{Reason: "stopped"})
	}
	return nil
}

type keywordStub struct {
	starts atomic.Int32
	stops  atomic.Int32
}

func (k *keywordStub) Start(context.Context) error {
	k.starts.Add(1)
	return nil
}

func (k *keywordStub) Stop(context.Context) error {
	k.stops.Add(1)
	return nil
}

type voiceStub struct {
	calls   atomic.Int32
	texts   chan string
	results chan error
	block   chan struct{}
}

func newVoiceStub() *voiceStub {
	return &voiceStub{
		texts:   make(chan string, 8),
		results: make(chan error, 8),
	}
}

func (v *voiceStub) SynthesizeAndPlay(ctx context.Context, text string, opts ...voice.SynthesizeOption) error {
	v.calls.Add(1)
	options := voice.SynthesizeOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	v.texts <- text
	var err error
	if v.block != nil {
		select {
		case <-v.block:
			err = ctx.Err()
		case <-ctx.Done():
			err = ctx.Err()
		}
	}
	if err == nil && options.ResponseReceivedCallback != nil {
		options.ResponseReceivedCallback()
	}
	v.results <- err
	return err
}

// pendingVoice blocks every response until its context is cancelled.
type pendingVoice struct {
	calls    atomic.Int32
	inFlight atomic.Int32
}

func (v *pendingVoice) SynthesizeAndPlay(ctx context.Context, _ string, _ ...voice.SynthesizeOption) error {
	v.calls.Add(1)
	v.inFlight.Add(1)
	defer v.inFlight.Add(-1)
	<-ctx.Done()
	return ctx.Err()
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) record(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) snapshot() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}
