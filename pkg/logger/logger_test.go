package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	return entry
}

func TestContextFieldsFollowTheCall(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{
		ServiceName: "api",
		Level:       ParseLevel("debug"),
		Output:      buf,
		Static:      map[string]any{"instance": "web.1"},
	})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithOrderItemID(ctx, "item-1")
	ctx = log.WithField(ctx, FieldCheckoutRequestID, "ws_CO_1")

	log.Error(ctx, "payout failed", errors.New("boom"))

	entry := decodeEntry(t, buf)
	assert.Equal(t, "api", entry["service"])
	assert.Equal(t, "web.1", entry["instance"])
	assert.Equal(t, "req-123", entry[FieldRequestID])
	assert.Equal(t, "item-1", entry[FieldOrderItemID])
	assert.Equal(t, "ws_CO_1", entry[FieldCheckoutRequestID])
	assert.Equal(t, "boom", entry["error"])
	assert.Contains(t, entry, "stack")
}

func TestDerivedContextDoesNotLeakIntoParent(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{Output: buf})

	parent := log.WithOrderID(context.Background(), "order-1")
	_ = log.WithOrderItemID(parent, "item-9")
	log.Info(parent, "order placed")

	entry := decodeEntry(t, buf)
	assert.Equal(t, "order-1", entry[FieldOrderID])
	assert.NotContains(t, entry, FieldOrderItemID)
}

func TestWarnStackToggle(t *testing.T) {
	for _, warnStack := range []bool{true, false} {
		buf := &bytes.Buffer{}
		New(Options{Output: buf, WarnStack: warnStack}).Warn(context.Background(), "courier not configured")
		assert.Equal(t, warnStack, bytes.Contains(buf.Bytes(), []byte(`"stack"`)))
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{Level: ParseLevel("warn"), Output: buf})
	log.Info(context.Background(), "hidden")
	log.Debug(context.Background(), "hidden")
	assert.Zero(t, buf.Len())

	Nop().Error(context.Background(), "discarded", errors.New("x"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("invalid"))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
}
