package logsink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const EventStream = "paygate:events"

// maxStreamLen caps the stream so unconsumed events cannot grow Redis
// without bound. Trimming is approximate (XADD MAXLEN ~).
const maxStreamLen = 100_000

// StreamSink appends entries to a Redis Stream so external consumers
// (fraud review, alerting) can tail the reconciliation event log.
// Append never fails the caller: a dropped event is logged and ignored.
type StreamSink struct {
	client *redis.Client
	logger zerolog.Logger
}

func NewStreamSink(client *redis.Client, logger zerolog.Logger) *StreamSink {
	return &StreamSink{client: client, logger: logger}
}

func (s *StreamSink) Append(ctx context.Context, e Entry) {
	payload, err := json.Marshal(e.Context)
	if err != nil {
		s.logger.Warn().Err(err).Str("event", e.Event).Msg("failed to marshal event context")
		payload = []byte("{}")
	}

	args := &redis.XAddArgs{
		Stream: EventStream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]any{
			"module":    e.Module,
			"event":     e.Event,
			"message":   e.Message,
			"success":   e.Success,
			"payload":   string(payload),
			"timestamp": time.Now().Unix(),
		},
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		s.logger.Warn().Err(err).Str("event", e.Event).Msg("failed to append event to stream")
	}
}
