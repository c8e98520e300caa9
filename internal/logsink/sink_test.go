package logsink

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologSink_Append(t *testing.T) {
	var buf bytes.Buffer
	sink := NewZerologSink(zerolog.New(&buf))

	sink.Append(context.Background(), Entry{
		Module:  "payment_reconciler",
		Event:   "finalize",
		Message: "finalize ok",
		Success: true,
		Context: map[string]any{"order_id": int64(42)},
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))

	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "payment_reconciler", line["module"])
	assert.Equal(t, "finalize", line["event"])
	assert.Equal(t, true, line["success"])
	assert.Equal(t, float64(42), line["order_id"])
	assert.Equal(t, "finalize ok", line["message"])
}

func TestZerologSink_FailureUsesErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	sink := NewZerologSink(zerolog.New(&buf))

	sink.Append(context.Background(), Entry{
		Module:  "callback_endpoint",
		Event:   "rate_limit",
		Message: "callback rejected",
		Success: false,
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "error", line["level"])
}

func TestMultiSink_FansOut(t *testing.T) {
	var a, b bytes.Buffer
	multi := MultiSink{
		NewZerologSink(zerolog.New(&a)),
		NewZerologSink(zerolog.New(&b)),
	}

	multi.Append(context.Background(), Entry{Module: "m", Event: "e", Message: "msg", Success: true})

	assert.NotEmpty(t, a.Bytes())
	assert.Equal(t, a.String(), b.String())
}
