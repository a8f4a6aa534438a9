package webtransport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	quic "github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/logging"

	"github.com/kodiakio/realtime-go/transport"
)

// RTTSource は、RTTを提供します。
type RTTSource interface {
	// RTT は、直近のRTTを返却します。まだ計測されていない場合は `false` を返却します。
	RTT() (time.Duration, bool)
}

type noRTT struct{}

func (noRTT) RTT() (time.Duration, bool) { return 0, false }

// RTTSample は、QUICの輻輳制御が計測した平滑化RTTを保持します。
type RTTSample struct {
	v atomic.Int64
}

// NewRTTSample は、未計測の RTTSample を返却します。
func NewRTTSample() *RTTSample {
	s := &RTTSample{}
	s.v.Store(-1)
	return s
}

// RTT は、直近の平滑化RTTを返却します。
func (s *RTTSample) RTT() (time.Duration, bool) {
	v := s.v.Load()
	if v < 0 {
		return 0, false
	}
	return time.Duration(v), true
}

func (s *RTTSample) update(rtt time.Duration) {
	if rtt <= 0 || rtt > transport.MaxRTTSample {
		return
	}
	s.v.Store(int64(rtt))
}

// ConnectionTracer は、 s を更新するQUICのトレーサーを返却します。
func (s *RTTSample) ConnectionTracer(onClose func()) *logging.ConnectionTracer {
	return &logging.ConnectionTracer{
		UpdatedMetrics: func(rttStats *logging.RTTStats, _, _ logging.ByteCount, _ int) {
			s.update(rttStats.SmoothedRTT())
		},
		Close: onClose,
	}
}

// Tracer は、1 コネクション用の TracerFunc を返却します。
func (s *RTTSample) Tracer() TracerFunc {
	return func(context.Context, logging.Perspective, quic.ConnectionID) *logging.ConnectionTracer {
		return s.ConnectionTracer(nil)
	}
}

// RTTTracker は、サーバーが受け付けたQUICコネクションごとの RTTSample を管理します。
//
// コネクションは quic.ConnectionTracingKey の値で識別します。
type RTTTracker struct {
	mu      sync.Mutex
	samples map[quic.ConnectionTracingID]*RTTSample
}

// NewRTTTracker は、 RTTTracker を返却します。
func NewRTTTracker() *RTTTracker {
	return &RTTTracker{samples: map[quic.ConnectionTracingID]*RTTSample{}}
}

// Tracer は、 quic.Config.Tracer に設定します。
func (t *RTTTracker) Tracer(ctx context.Context, _ logging.Perspective, _ quic.ConnectionID) *logging.ConnectionTracer {
	s := NewRTTSample()
	id, ok := ctx.Value(quic.ConnectionTracingKey).(quic.ConnectionTracingID)
	if !ok {
		return s.ConnectionTracer(nil)
	}
	t.mu.Lock()
	t.samples[id] = s
	t.mu.Unlock()
	return s.ConnectionTracer(func() {
		t.mu.Lock()
		delete(t.samples, id)
		t.mu.Unlock()
	})
}

// Lookup は、 ctx が属するコネクションの RTTSample を返却します。
//
// ctx にはHTTP/3リクエストのコンテキストを渡します。
func (t *RTTTracker) Lookup(ctx context.Context) (*RTTSample, bool) {
	id, ok := ctx.Value(quic.ConnectionTracingKey).(quic.ConnectionTracingID)
	if !ok {
		return nil, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.samples[id]
	return s, ok
}

// Len は、追跡中のコネクション数を返却します。
func (t *RTTTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.samples)
}
