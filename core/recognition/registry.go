package recognition

import (
	"reflect"
	"sync"
)

var _ Provider = (*Registry)(nil)

// Registry is a Provider hosts fill with the recognizers they have running.
// Nil and typed-nil registrations are treated as absent.
type Registry struct {
	mu        sync.RWMutex
	dictation Recognizer
	keyword   KeywordRecognizer
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) RegisterDictation(recognizer Recognizer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if IsNil(recognizer) {
		r.dictation = nil
		return
	}
	r.dictation = recognizer
}

// UnregisterDictation removes recognizer if it is the one registered.
func (r *Registry) UnregisterDictation(recognizer Recognizer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dictation == recognizer {
		r.dictation = nil
	}
}

func (r *Registry) RegisterKeyword(recognizer KeywordRecognizer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if IsNil(recognizer) {
		r.keyword = nil
		return
	}
	r.keyword = recognizer
}

// UnregisterKeyword removes recognizer if it is the one registered.
func (r *Registry) UnregisterKeyword(recognizer KeywordRecognizer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.keyword == recognizer {
		r.keyword = nil
	}
}

func (r *Registry) DictationRecognizer() Recognizer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dictation
}

func (r *Registry) KeywordRecognizer() KeywordRecognizer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.keyword
}

// IsNil detects nil and typed-nil interface values so providers returning a
// nil pointer wrapped in an interface are treated as unavailable.
func IsNil(value any) bool {
	if value == nil {
		return true
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}
