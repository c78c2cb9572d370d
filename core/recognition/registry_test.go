package recognition

import (
	"context"
	"testing"
)

func TestRegistryReturnsNilWhenNothingRegistered(t *testing.T) {
	registry := NewRegistry()

	if registry.DictationRecognizer() != nil {
		t.Fatalf("expected no dictation recognizer")
	}
	if registry.KeywordRecognizer() != nil {
		t.Fatalf("expected no keyword recognizer")
	}
}

func TestRegistryTreatsTypedNilAsAbsent(t *testing.T) {
	registry := NewRegistry()

	var recognizer *recognizerStub
	registry.RegisterDictation(recognizer)
	var keyword *keywordStub
	registry.RegisterKeyword(keyword)

	if registry.DictationRecognizer() != nil {
		t.Fatalf("expected typed nil dictation recognizer to be treated as absent")
	}
	if registry.KeywordRecognizer() != nil {
		t.Fatalf("expected typed nil keyword recognizer to be treated as absent")
	}
}

func TestRegistryUnregisterOnlyRemovesMatchingRecognizer(t *testing.T) {
	registry := NewRegistry()
	registered := &recognizerStub{}
	other := &recognizerStub{}

	registry.RegisterDictation(registered)
	registry.UnregisterDictation(other)

	if registry.DictationRecognizer() != registered {
		t.Fatalf("expected unregistering a different recognizer to keep the registered one")
	}

	registry.UnregisterDictation(registered)
	if registry.DictationRecognizer() != nil {
		t.Fatalf("expected recognizer to be removed")
	}

	keyword := &keywordStub{}
	registry.RegisterKeyword(keyword)
	registry.UnregisterKeyword(keyword)
	if registry.KeywordRecognizer() != nil {
		t.Fatalf("expected keyword recognizer to be removed")
	}
}

type recognizerStub struct {
	Hooks
}

func (r *recognizerStub) StartDictation(context.Context) error { return nil }
func (r *recognizerStub) StopDictation(context.Context) error  { return nil }

type keywordStub struct{}

func (k *keywordStub) Start(context.Context) error { return nil }
func (k *keywordStub) Stop(context.Context) error  { return nil }
