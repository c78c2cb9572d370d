package dictation

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-dictation/core/recognition"
)

type session struct {
	id string

	// recognizer is owned by the session while it is active.
	recognizer recognition.Recognizer
	// keyword is borrowed: suspended at start and resumed on teardown.
	keyword recognition.KeywordRecognizer

	mu            sync.Mutex
	subscriptions []recognition.Subscription

	// ended is set by the first finished or faulted event.
	ended atomic.Bool
}

func newSession(recognizer recognition.Recognizer) *session {
	return &session{
		id:         uuid.NewString(),
		recognizer: recognizer,
	}
}

func (s *session) unsubscribe() {
	s.mu.Lock()
	subscriptions := s.subscriptions
	s.subscriptions = nil
	s.mu.Unlock()

	for _, subscription := range subscriptions {
		subscription.Unsubscribe()
	}
}
