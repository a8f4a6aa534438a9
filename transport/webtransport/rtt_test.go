package webtransport_test

import (
	"context"
	"testing"

	quic "github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/kodiakio/realtime-go/transport/webtransport"
)

func TestRTTSample_Unmeasured(t *testing.T) {
	_, ok := NewRTTSample().RTT()
	assert.False(t, ok)
}

func TestRTTSample_IgnoreZero(t *testing.T) {
	s := NewRTTSample()
	tracer := s.ConnectionTracer(nil)
	tracer.UpdatedMetrics(&logging.RTTStats{}, 0, 0, 0)
	_, ok := s.RTT()
	assert.False(t, ok)
}

func TestRTTTracker(t *testing.T) {
	tracker := NewRTTTracker()
	ctx := context.WithValue(context.Background(), quic.ConnectionTracingKey, quic.ConnectionTracingID(1))

	tracer := tracker.Tracer(ctx, logging.PerspectiveServer, quic.ConnectionID{})
	require.NotNil(t, tracer)
	assert.Equal(t, 1, tracker.Len())

	s, ok := tracker.Lookup(ctx)
	require.True(t, ok)
	_, measured := s.RTT()
	assert.False(t, measured)

	_, ok = tracker.Lookup(context.WithValue(context.Background(), quic.ConnectionTracingKey, quic.ConnectionTracingID(2)))
	assert.False(t, ok)
	_, ok = tracker.Lookup(context.Background())
	assert.False(t, ok)

	tracer.Close()
	assert.Equal(t, 0, tracker.Len())
	_, ok = tracker.Lookup(ctx)
	assert.False(t, ok)
}

func TestRTTTracker_Untraced(t *testing.T) {
	tracker := NewRTTTracker()
	tracer := tracker.Tracer(context.Background(), logging.PerspectiveServer, quic.ConnectionID{})
	require.NotNil(t, tracer)
	assert.Equal(t, 0, tracker.Len())
	assert.Nil(t, tracer.Close)
}
