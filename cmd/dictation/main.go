// Command dictation forwards dictated sentences to the voice service and
// plays back the answers, driven from a terminal UI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	dictation "github.com/koscakluka/ema-dictation/core"
	events "github.com/koscakluka/ema-dictation/core/events"
	"github.com/koscakluka/ema-dictation/core/recognition"
	"github.com/koscakluka/ema-dictation/core/recognition/keyword"
	"github.com/koscakluka/ema-dictation/core/voice"
	"github.com/koscakluka/ema-dictation/internal/config"
	"github.com/koscakluka/ema-dictation/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	printSchema := flag.Bool("print-config-schema", false, "print the configuration JSON schema and exit")
	flag.Parse()

	if *printSchema {
		schema, err := config.Schema()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(schema))
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	device, err := newAudioDevice(cfg.Audio, slogLogger(logger, "audio"))
	if err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}
	defer device.Close()

	dictationRecognizer, err := newRecognizer(cfg.Recognition, device, slogLogger(logger, "dictation-recognizer"))
	if err != nil {
		return err
	}
	defer func() { _ = dictationRecognizer.Close() }()

	wakeRecognizer, err := newRecognizer(cfg.Recognition, device, slogLogger(logger, "wake-recognizer"))
	if err != nil {
		return err
	}
	defer func() { _ = wakeRecognizer.Close() }()

	var program atomic.Pointer[tea.Program]
	send := func(msg tea.Msg) {
		if p := program.Load(); p != nil {
			p.Send(msg)
		}
	}

	wakeListener := keyword.NewListener(wakeRecognizer, cfg.Recognition.WakePhrases,
		keyword.WithKeywordCallback(func(phrase string) { send(wakeMsg{phrase: phrase}) }),
		keyword.WithLogger(slogLogger(logger, "keyword")),
	)

	registry := recognition.NewRegistry()
	registry.RegisterDictation(dictationRecognizer)
	registry.RegisterKeyword(wakeListener)

	voiceClient := voice.NewClient(device,
		voice.WithEndpoint(cfg.Voice.Endpoint),
		voice.WithCharacter(cfg.Voice.Character),
		voice.WithRequestTimeout(cfg.Voice.RequestTimeout),
		voice.WithLogger(slogLogger(logger, "voice")),
	)

	handler := dictation.NewHandler(registry,
		dictation.WithVoiceClient(voiceClient),
		dictation.WithLogger(slogLogger(logger, "dictation")),
		dictation.WithEventHandler(func(event events.Event) { send(eventMsg{event: event}) }),
	)
	defer handler.Close()

	if err := wakeListener.Start(ctx); err != nil {
		logger.Warn("wake phrase listener unavailable", zap.Error(err))
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Address != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			logger.Info("serving metrics", zap.String("address", cfg.Metrics.Address))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	p := tea.NewProgram(newModel(ctx, handler), tea.WithAltScreen(), tea.WithContext(ctx))
	program.Store(p)

	g.Go(func() error {
		defer stop()
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("terminal ui failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}
