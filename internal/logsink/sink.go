package logsink

import (
	"context"

	"github.com/rs/zerolog"
)

// Entry is one structured event emitted by the reconciliation flow.
// Messages must never contain a full payment token.
type Entry struct {
	Module  string
	Event   string
	Message string
	Success bool
	Context map[string]any
}

// Sink is an append-only structured event log.
type Sink interface {
	Append(ctx context.Context, e Entry)
}

// ZerologSink writes entries to the service logger.
type ZerologSink struct {
	logger zerolog.Logger
}

func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return &ZerologSink{logger: logger}
}

func (s *ZerologSink) Append(_ context.Context, e Entry) {
	var ev *zerolog.Event
	if e.Success {
		ev = s.logger.Info()
	} else {
		ev = s.logger.Error()
	}
	ev = ev.Str("module", e.Module).Str("event", e.Event).Bool("success", e.Success)
	for k, v := range e.Context {
		ev = ev.Interface(k, v)
	}
	ev.Msg(e.Message)
}

// MultiSink fans one entry out to several sinks.
type MultiSink []Sink

func (m MultiSink) Append(ctx context.Context, e Entry) {
	for _, s := range m {
		s.Append(ctx, e)
	}
}
