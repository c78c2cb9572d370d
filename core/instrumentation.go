package dictation

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-dictation/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	sessionCounter, _ = meter.Int64Counter("dictation.sessions",
		metric.WithDescription("Dictation sessions started"))
	utteranceCounter, _ = meter.Int64Counter("dictation.utterances",
		metric.WithDescription("Final recognition results forwarded to the voice service"))
)
