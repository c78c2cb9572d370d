package recognition

import (
	"sync"
	"testing"
)

func TestHookInvokesHandlersInRegistrationOrder(t *testing.T) {
	var hook Hook[Result]
	received := []string{}

	hook.Add(func(result Result) { received = append(received, "first:"+result.Text) })
	hook.Add(func(result Result) { received = append(received, "second:"+result.Text) })

	hook.Invoke(Result{Text: "hello"})

	if len(received) != 2 || received[0] != "first:hello" || received[1] != "second:hello" {
		t.Fatalf("expected handlers in registration order, got %v", received)
	}
}

func TestHookUnsubscribeRemovesOnlyThatHandler(t *testing.T) {
	var hook Hook[SessionEnd]
	firstCalls := 0
	secondCalls := 0

	first := hook.Add(func(SessionEnd) { firstCalls++ })
	hook.Add(func(SessionEnd) { secondCalls++ })

	first.Unsubscribe()
	first.Unsubscribe()
	hook.Invoke(SessionEnd{Reason: "done"})

	if firstCalls != 0 {
		t.Fatalf("expected unsubscribed handler to not be called, got %d calls", firstCalls)
	}
	if secondCalls != 1 {
		t.Fatalf("expected remaining handler to be called once, got %d calls", secondCalls)
	}
	if got := hook.Len(); got != 1 {
		t.Fatalf("expected one registered handler, got %d", got)
	}
}

func TestHookHandlerCanUnsubscribeItselfDuringInvoke(t *testing.T) {
	var hook Hook[Result]
	calls := 0

	var subscription Subscription
	subscription = hook.Add(func(Result) {
		calls++
		subscription.Unsubscribe()
	})

	hook.Invoke(Result{})
	hook.Invoke(Result{})

	if calls != 1 {
		t.Fatalf("expected self-unsubscribing handler to run once, got %d", calls)
	}
}

func TestHookIgnoresNilHandler(t *testing.T) {
	var hook Hook[Result]

	subscription := hook.Add(nil)
	subscription.Unsubscribe()

	if got := hook.Len(); got != 0 {
		t.Fatalf("expected nil handler to not be registered, got %d handlers", got)
	}
}

func TestHookIsSafeForConcurrentUse(t *testing.T) {
	var hook Hook[Result]
	wg := sync.WaitGroup{}

	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			subscription := hook.Add(func(Result) {})
			hook.Invoke(Result{Text: "x"})
			subscription.Unsubscribe()
		}()
	}
	wg.Wait()

	if got := hook.Len(); got != 0 {
		t.Fatalf("expected all handlers removed, got %d", got)
	}
}
