package logging

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/xvzc/xrayctl/internal/session"
)

const (
	// scopeFieldName defines the key for the "scope" field in structured logs.
	scopeFieldName   = "scope"
	traceIDFieldName = "trace_id"
	inboundFieldName = "inbound"
)

// NewLogger creates a console logger writing to out at the given level.
// The instance is handed to components through their constructors.
func NewLogger(out io.Writer, l zerolog.Level) zerolog.Logger {
	consoleWriter := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		// FormatPrepare renders [SCOPE] and the trace/inbound prefix before the message.
		FormatPrepare: func(m map[string]any) error {
			if v, ok := m[traceIDFieldName].(string); ok && v != "" {
				m[traceIDFieldName] = v
			} else {
				// zerolog prints <nil> for missing parts.
				m[traceIDFieldName] = ""
			}

			if v, ok := m[scopeFieldName].(string); ok && v != "" {
				m[scopeFieldName] = fmt.Sprintf("[%s]", v)
			} else {
				m[scopeFieldName] = "[app]"
			}

			if v, ok := m[inboundFieldName].(string); ok && v != "" {
				m[inboundFieldName] = fmt.Sprintf("%s;", v)
			} else {
				m[inboundFieldName] = ""
			}

			return nil
		},
		FieldsExclude: []string{
			traceIDFieldName,
			scopeFieldName,
			inboundFieldName,
		},
		PartsOrder: []string{
			zerolog.LevelFieldName,
			zerolog.TimestampFieldName,
			traceIDFieldName,
			scopeFieldName,
			inboundFieldName,
			zerolog.MessageFieldName,
		},
	}

	return zerolog.New(consoleWriter).
		Hook(ctxHook{}).
		Level(l).
		With().
		Timestamp().
		Logger()
}

// WithScope is a helper for components (like the control client or a resolver)
// to create a sub-logger with their component name.
func WithScope(logger zerolog.Logger, scope string) zerolog.Logger {
	return logger.With().Str(scopeFieldName, scope).Logger()
}

// ctxHook copies request-scoped values into every event that was given a
// context through .Ctx(ctx).
type ctxHook struct{}

func (h ctxHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	if traceID, ok := session.TraceIDFrom(ctx); ok {
		e.Str(traceIDFieldName, traceID)
	}

	if tag, ok := session.InboundFrom(ctx); ok {
		e.Str(inboundFieldName, tag)
	}
}

type joinableError interface {
	Unwrap() []error
}

// ErrorUnwrapped logs each member of a joined error as its own event.
// A plain error is logged once.
func ErrorUnwrapped(logger *zerolog.Logger, msg string, err error) {
	var joinedErrs joinableError

	if errors.As(err, &joinedErrs) {
		for _, e := range joinedErrs.Unwrap() {
			logger.Error().Err(e).Msg(msg)
		}

		return
	}

	logger.Error().Err(err).Msg(msg)
}
