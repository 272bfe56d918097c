package progress

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/specialistvlad/pacforge/internal/ctxlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiAndRecorder(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	sink := Multi{a, nil, b, Nop{}}

	ev := Event{RunID: "r1", Batch: 2, Label: "yay", State: "built"}
	sink.Publish(context.Background(), ev)

	assert.Equal(t, []Event{ev}, a.Events())
	assert.Equal(t, []Event{ev}, b.Events())
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	LogSink{}.Publish(ctx, Event{RunID: "r1", Batch: 0, Label: "foo", State: "failed", Error: "boom"})

	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "label=foo")
	assert.Contains(t, out, "error=boom")
}

func TestSocketIOSink_Publish(t *testing.T) {
	var gotEvent string
	var gotData map[string]any
	closed := false
	s := &SocketIOSink{
		emit: func(event string, data any) {
			gotEvent = event
			gotData = data.(map[string]any)
		},
		close: func() { closed = true },
	}

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.Publish(context.Background(), Event{RunID: "r1", Batch: 3, Label: "paru", State: "installed", Time: ts})

	assert.Equal(t, EventName, gotEvent)
	require.NotNil(t, gotData)
	assert.Equal(t, "paru", gotData["label"])
	assert.Equal(t, 3, gotData["batch"])
	assert.Equal(t, "2026-01-02T03:04:05Z", gotData["time"])

	require.NoError(t, s.Close())
	assert.True(t, closed)
}

func TestDialSocketIO_BadURL(t *testing.T) {
	_, err := DialSocketIO(context.Background(), SocketIOConfig{URL: "://bad"})
	assert.ErrorContains(t, err, "failed to parse URL")
}

func TestConnectError(t *testing.T) {
	boom := errors.New("boom")
	assert.Same(t, boom, connectError(boom))
	assert.EqualError(t, connectError(map[string]any{"message": "refused"}), "map[message:refused]")
	assert.EqualError(t, connectError(), "connect_error without details")
	assert.EqualError(t, connectError(nil), "<nil>")
}
