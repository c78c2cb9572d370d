package azure

import (
	"testing"

	"github.com/koscakluka/ema-dictation/core/recognition"
)

func TestEndReportsOnceAndDetachesRun(t *testing.T) {
	r := NewRecognizer(nil)
	var finished, faulted int
	r.OnFinished(func(recognition.SessionEnd) { finished++ })
	r.OnFaulted(func(recognition.SessionEnd) { faulted++ })

	active := &run{done: make(chan struct{})}
	r.active = active

	r.end(active, recognition.SessionEnd{Reason: stoppedReason}, false)
	r.end(active, recognition.SessionEnd{Reason: "late"}, true)

	if finished != 1 || faulted != 0 {
		t.Fatalf("expected a single finish, got finished=%d faulted=%d", finished, faulted)
	}
	if r.active != nil {
		t.Fatalf("expected the run to be detached")
	}
	select {
	case <-active.done:
	default:
		t.Fatalf("expected the run to be marked done")
	}
}

func TestSilencedRunReportsNothing(t *testing.T) {
	r := NewRecognizer(nil)
	var events int
	r.OnFinished(func(recognition.SessionEnd) { events++ })
	r.OnFaulted(func(recognition.SessionEnd) { events++ })

	active := &run{done: make(chan struct{})}
	active.silence()
	r.end(active, recognition.SessionEnd{Reason: stoppedReason}, false)

	if events != 0 {
		t.Fatalf("expected no events from a silenced run, got %d", events)
	}
}

func TestCanceledEnd(t *testing.T) {
	if end, faulted := canceledEnd(""); faulted || end.Reason != canceledReason {
		t.Fatalf("unexpected end for empty details: %+v faulted=%v", end, faulted)
	}
	if end, faulted := canceledEnd("quota exceeded"); !faulted || end.Reason != "quota exceeded" {
		t.Fatalf("unexpected end for error details: %+v faulted=%v", end, faulted)
	}
}
