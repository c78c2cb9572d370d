package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	if cfg.Voice.Character != "shaq" {
		t.Fatalf("unexpected default character: %q", cfg.Voice.Character)
	}
	if cfg.Voice.RequestTimeout != 30*time.Second {
		t.Fatalf("unexpected default timeout: %v", cfg.Voice.RequestTimeout)
	}
	if len(cfg.Recognition.WakePhrases) != 1 || cfg.Recognition.WakePhrases[0] != DefaultWakePhrase {
		t.Fatalf("unexpected default wake phrases: %v", cfg.Recognition.WakePhrases)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
voice:
  character: snoop
  request_timeout: 5s
recognition:
  provider: azure
  wake_phrases: ["computer"]
  azure:
    region: westeurope
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	if cfg.Voice.Character != "snoop" {
		t.Fatalf("expected character from file, got %q", cfg.Voice.Character)
	}
	if cfg.Voice.RequestTimeout != 5*time.Second {
		t.Fatalf("expected timeout from file, got %v", cfg.Voice.RequestTimeout)
	}
	if cfg.Voice.Endpoint != Default().Voice.Endpoint {
		t.Fatalf("expected default endpoint to survive merge, got %q", cfg.Voice.Endpoint)
	}
	if cfg.Recognition.Provider != ProviderAzure || cfg.Recognition.Azure.Region != "westeurope" {
		t.Fatalf("unexpected recognition config: %+v", cfg.Recognition)
	}
	if cfg.Recognition.Azure.Language != "en-US" {
		t.Fatalf("expected default azure language to survive merge, got %q", cfg.Recognition.Azure.Language)
	}
	if len(cfg.Recognition.WakePhrases) != 1 || cfg.Recognition.WakePhrases[0] != "computer" {
		t.Fatalf("unexpected wake phrases: %v", cfg.Recognition.WakePhrases)
	}
}

func TestLoadKeepsExplicitZeroSampleRate(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeConfig(t, `
telemetry:
  sample_rate: 0
`))
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if got := cfg.Telemetry.TraceSampleRate(); got != 0 {
		t.Fatalf("expected explicit zero sample rate, got %v", got)
	}

	defaults, err := Load(writeConfig(t, `
telemetry:
  enabled: true
`))
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if got := defaults.Telemetry.TraceSampleRate(); got != 1 {
		t.Fatalf("expected default sample rate, got %v", got)
	}
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEEPGRAM_API_KEY", "dg-key")
	t.Setenv("DICTATION_VOICE_ENDPOINT", "http://localhost:8080/audio")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	if cfg.Recognition.Deepgram.APIKey != "dg-key" {
		t.Fatalf("expected api key from environment, got %q", cfg.Recognition.Deepgram.APIKey)
	}
	if cfg.Voice.Endpoint != "http://localhost:8080/audio" {
		t.Fatalf("expected endpoint from environment, got %q", cfg.Voice.Endpoint)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "unknown provider", content: "recognition:\n  provider: whisper\n", want: "recognition.provider"},
		{name: "unknown backend", content: "audio:\n  backend: alsa\n", want: "audio.backend"},
		{name: "relative endpoint", content: "voice:\n  endpoint: /audio\n", want: "voice.endpoint"},
		{name: "malformed yaml", content: "voice: [\n", want: "failed to parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestSchemaDescribesSections(t *testing.T) {
	data, err := Schema()
	if err != nil {
		t.Fatalf("unexpected schema error: %v", err)
	}

	var schema struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &schema); err != nil {
		t.Fatalf("schema is not valid json: %v", err)
	}
	for _, section := range []string{"voice", "recognition", "audio", "telemetry", "metrics", "log"} {
		if _, ok := schema.Properties[section]; !ok {
			t.Fatalf("expected schema to describe %q", section)
		}
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DEEPGRAM_API_KEY", "AZURE_SPEECH_KEY", "AZURE_SPEECH_REGION", "DICTATION_VOICE_ENDPOINT"} {
		t.Setenv(key, "")
	}
}
