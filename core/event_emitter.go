package dictation

import events "github.com/koscakluka/ema-dictation/core/events"

type eventEmitter func(events.Event)

func newCallbackEventEmitter(opts CallbackOptions) eventEmitter {
	return func(event events.Event) {
		if opts.onEvent != nil {
			opts.onEvent(event)
		}

		switch typedEvent := event.(type) {
		case events.RecognitionRecognizing:
			if opts.onRecognizing != nil {
				opts.onRecognizing(typedEvent.Text)
			}
		case events.RecognitionRecognized:
			if opts.onRecognized != nil {
				opts.onRecognized(typedEvent.Text)
			}
		case events.RecognitionFinished:
			if opts.onRecognitionFinished != nil {
				opts.onRecognitionFinished(typedEvent.Reason)
			}
		case events.RecognitionFaulted:
			if opts.onRecognitionFaulted != nil {
				opts.onRecognitionFaulted(typedEvent.Reason)
			}
		case events.VoiceResponseReceived:
			if opts.onResponseReceived != nil {
				opts.onResponseReceived(typedEvent.Status)
			}
		}
	}
}
