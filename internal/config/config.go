// Package config loads the dictation host configuration from YAML, merged
// over defaults and overridden by environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/jinzhu/copier"
	"gopkg.in/yaml.v3"
)

const (
	ProviderDeepgram = "deepgram"
	ProviderAzure    = "azure"

	BackendMiniaudio = "miniaudio"
	BackendPortaudio = "portaudio"

	DefaultWakePhrase = "hey ema"
)

type Config struct {
	Voice       VoiceConfig       `yaml:"voice" json:"voice"`
	Recognition RecognitionConfig `yaml:"recognition" json:"recognition"`
	Audio       AudioConfig       `yaml:"audio" json:"audio"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" json:"telemetry"`
	Metrics     MetricsConfig     `yaml:"metrics" json:"metrics"`
	Log         LogConfig         `yaml:"log" json:"log"`
}

type VoiceConfig struct {
	Endpoint       string        `yaml:"endpoint" json:"endpoint" jsonschema:"description=Voice service URL answering a question with an audio reference,format=uri"`
	Character      string        `yaml:"character" json:"character" jsonschema:"description=Voice character requested from the service"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout" jsonschema:"type=string,description=Timeout of each voice service request,example=30s"`
}

type RecognitionConfig struct {
	Provider    string         `yaml:"provider" json:"provider" jsonschema:"enum=deepgram,enum=azure"`
	WakePhrases []string       `yaml:"wake_phrases" json:"wake_phrases" jsonschema:"description=Phrases that start dictation while idle"`
	Deepgram    DeepgramConfig `yaml:"deepgram" json:"deepgram"`
	Azure       AzureConfig    `yaml:"azure" json:"azure"`
}

type DeepgramConfig struct {
	APIKey       string        `yaml:"api_key" json:"api_key"`
	Model        string        `yaml:"model" json:"model"`
	Language     string        `yaml:"language" json:"language"`
	UtteranceEnd time.Duration `yaml:"utterance_end" json:"utterance_end" jsonschema:"type=string,example=1s"`
}

type AzureConfig struct {
	Key      string `yaml:"key" json:"key"`
	Region   string `yaml:"region" json:"region"`
	Language string `yaml:"language" json:"language"`
}

type AudioConfig struct {
	Backend    string `yaml:"backend" json:"backend" jsonschema:"enum=miniaudio,enum=portaudio"`
	BufferSize int    `yaml:"buffer_size" json:"buffer_size" jsonschema:"description=Frames per buffer for the portaudio backend"`
}

type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name" json:"service_name"`
	// SampleRate is nil when unset. An explicit 0 samples no traces.
	SampleRate *float64 `yaml:"sample_rate" json:"sample_rate" jsonschema:"minimum=0,maximum=1"`
}

// TraceSampleRate returns the fraction of traces to sample, 1 when unset.
func (t TelemetryConfig) TraceSampleRate() float64 {
	if t.SampleRate == nil {
		return 1
	}
	return *t.SampleRate
}

// SampleRatio wraps ratio for use as [TelemetryConfig.SampleRate].
func SampleRatio(ratio float64) *float64 {
	return &ratio
}

type MetricsConfig struct {
	Address string `yaml:"address" json:"address" jsonschema:"description=Address serving Prometheus metrics; empty disables the endpoint"`
}

type LogConfig struct {
	File  string `yaml:"file" json:"file"`
	Level string `yaml:"level" json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

func Default() *Config {
	return &Config{
		Voice: VoiceConfig{
			Endpoint:       "http://ec2-54-84-186-136.compute-1.amazonaws.com:8080/audio",
			Character:      "shaq",
			RequestTimeout: 30 * time.Second,
		},
		Recognition: RecognitionConfig{
			Provider: ProviderDeepgram,
			Deepgram: DeepgramConfig{
				Model:        "nova-3",
				Language:     "en-US",
				UtteranceEnd: time.Second,
			},
			Azure: AzureConfig{Language: "en-US"},
		},
		Audio: AudioConfig{
			Backend:    BackendMiniaudio,
			BufferSize: 512,
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "ema-dictation",
			SampleRate:   SampleRatio(1),
		},
		Log: LogConfig{
			File:  "dictation.log",
			Level: "info",
		},
	}
}

// Load reads path (when not empty) over the defaults and applies the
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		var fileConfig Config
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		if err := copier.CopyWithOption(cfg, &fileConfig, copier.Option{IgnoreEmpty: true, DeepCopy: true}); err != nil {
			return nil, fmt.Errorf("failed to merge config: %w", err)
		}
	}

	applyEnv(cfg)
	if len(cfg.Recognition.WakePhrases) == 0 {
		cfg.Recognition.WakePhrases = []string{DefaultWakePhrase}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if value, ok := os.LookupEnv("DEEPGRAM_API_KEY"); ok && value != "" {
		cfg.Recognition.Deepgram.APIKey = value
	}
	if value, ok := os.LookupEnv("AZURE_SPEECH_KEY"); ok && value != "" {
		cfg.Recognition.Azure.Key = value
	}
	if value, ok := os.LookupEnv("AZURE_SPEECH_REGION"); ok && value != "" {
		cfg.Recognition.Azure.Region = value
	}
	if value, ok := os.LookupEnv("DICTATION_VOICE_ENDPOINT"); ok && value != "" {
		cfg.Voice.Endpoint = value
	}
}

func (c *Config) Validate() error {
	var errs []error

	if endpoint, err := url.Parse(c.Voice.Endpoint); err != nil || !endpoint.IsAbs() || endpoint.Host == "" {
		errs = append(errs, fmt.Errorf("voice.endpoint must be an absolute url, got %q", c.Voice.Endpoint))
	}
	if c.Voice.RequestTimeout <= 0 {
		errs = append(errs, errors.New("voice.request_timeout must be positive"))
	}

	switch c.Recognition.Provider {
	case ProviderDeepgram, ProviderAzure:
	default:
		errs = append(errs, fmt.Errorf("unknown recognition.provider %q", c.Recognition.Provider))
	}

	switch c.Audio.Backend {
	case BackendMiniaudio:
	case BackendPortaudio:
		if c.Audio.BufferSize <= 0 {
			errs = append(errs, errors.New("audio.buffer_size must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown audio.backend %q", c.Audio.Backend))
	}

	if rate := c.Telemetry.TraceSampleRate(); rate < 0 || rate > 1 {
		errs = append(errs, errors.New("telemetry.sample_rate must be between 0 and 1"))
	}

	return errors.Join(errs...)
}

// Schema returns the JSON schema of the configuration file.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(&Config{})
	return json.MarshalIndent(schema, "", "  ")
}
