package main

import (
	"fmt"
	"log/slog"

	"github.com/koscakluka/ema-dictation/core/audio"
	"github.com/koscakluka/ema-dictation/core/audio/miniaudio"
	"github.com/koscakluka/ema-dictation/core/audio/portaudio"
	"github.com/koscakluka/ema-dictation/core/recognition"
	"github.com/koscakluka/ema-dictation/core/recognition/azure"
	"github.com/koscakluka/ema-dictation/core/recognition/deepgram"
	"github.com/koscakluka/ema-dictation/internal/config"
)

// audioDevice captures the microphone and plays voice answers.
type audioDevice interface {
	recognition.AudioSource
	Play(clip audio.Clip) error
	Close()
}

type closableRecognizer interface {
	recognition.Recognizer
	Close() error
}

func newAudioDevice(cfg config.AudioConfig, log *slog.Logger) (audioDevice, error) {
	switch cfg.Backend {
	case config.BackendPortaudio:
		client, err := portaudio.NewClient(cfg.BufferSize)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.BackendMiniaudio:
		client, err := miniaudio.NewClient(miniaudio.WithLogger(log))
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", cfg.Backend)
	}
}

func newRecognizer(cfg config.RecognitionConfig, source recognition.AudioSource, log *slog.Logger) (closableRecognizer, error) {
	switch cfg.Provider {
	case config.ProviderDeepgram:
		return deepgram.NewRecognizer(source,
			deepgram.WithAPIKey(cfg.Deepgram.APIKey),
			deepgram.WithModel(cfg.Deepgram.Model),
			deepgram.WithLanguage(cfg.Deepgram.Language),
			deepgram.WithUtteranceEnd(cfg.Deepgram.UtteranceEnd),
			deepgram.WithLogger(log),
		), nil
	case config.ProviderAzure:
		return azure.NewRecognizer(source,
			azure.WithCredentials(cfg.Azure.Key, cfg.Azure.Region),
			azure.WithLanguage(cfg.Azure.Language),
			azure.WithLogger(log),
		), nil
	default:
		return nil, fmt.Errorf("unknown recognition provider %q", cfg.Provider)
	}
}
