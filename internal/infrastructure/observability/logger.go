package observability

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/zatekoja/clinicdesk/internal/domain/entities"
)

// InitLogger initializes the global zerolog logger on stdout
func InitLogger(serviceName, env string) {
	InitLoggerTo(os.Stdout, serviceName, env)
}

// InitLoggerTo initializes the global zerolog logger on w. LOG_LEVEL
// overrides the default info level.
func InitLoggerTo(w io.Writer, serviceName, env string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		level = lvl
	}
	zerolog.SetGlobalLevel(level)

	if env == "development" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Str("service", serviceName).
			Logger()
		return
	}

	log.Logger = zerolog.New(w).
		With().
		Timestamp().
		Caller().
		Str("service", serviceName).
		Logger()
}

// LoggerFromContext returns a logger carrying trace ids and the caller's user and clinic
func LoggerFromContext(ctx context.Context) *zerolog.Logger {
	fields := log.With()

	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		fields = fields.
			Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String())
	}

	if session, ok := entities.SessionFromContext(ctx); ok {
		fields = fields.
			Str("user_id", session.UserID).
			Str("role", string(session.Role))
		if clinic := session.ActiveClinicID; clinic != "" {
			fields = fields.Str("clinic_id", clinic)
		}
	}

	logger := fields.Logger()
	return &logger
}
