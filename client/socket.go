package client

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	nwebsocket "nhooyr.io/websocket"

	"github.com/kodiakio/realtime-go/errors"
	"github.com/kodiakio/realtime-go/log"
	"github.com/kodiakio/realtime-go/message"
	"github.com/kodiakio/realtime-go/transport"
	"github.com/kodiakio/realtime-go/transport/compress"
	"github.com/kodiakio/realtime-go/transport/metrics"
	"github.com/kodiakio/realtime-go/transport/websocket"
	"github.com/kodiakio/realtime-go/transport/webtransport"
)

// socket は、接続済みのトランスポートです。
//
// Send と Recv はそれぞれ 1 つのゴルーチンから呼び出されます。
type socket interface {
	Send(ctx context.Context, m message.Message) error
	Recv(ctx context.Context) (message.Message, error)
	RTT() (time.Duration, bool)
	OutboundBacklog() int
	Drop()
	Name() transport.Name
}

var (
	_ socket = (*wsSocket)(nil)
	_ socket = (*webtransport.Transport)(nil)
)

// wsSocket は、nhooyr.io/websocket によるWebSocketのソケットです。
//
// Pingへの応答はライブラリが行います。RTTは自身が送信したPingの往復時間です。
type wsSocket struct {
	conn     *nwebsocket.Conn
	codec    compress.Codec
	stats    metrics.SocketStats
	clock    clock.Clock
	liveness transport.LivenessConfig
	logger   log.Logger
	rtt      atomic.Int64

	failMu  sync.Mutex
	failErr error

	ctx    context.Context
	cancel context.CancelFunc
}

func dialWebSocket(ctx context.Context, c Config, params transport.NegotiationParams) (*wsSocket, error) {
	u, err := params.AppendToURL(c.URL)
	if err != nil {
		return nil, errors.Errorf("append negotiation params: %w", err)
	}
	codec, err := compress.New(params.CompressConfig(c.Compress))
	if err != nil {
		return nil, errors.Errorf("create codec: %w", err)
	}

	var (
		mu       sync.Mutex
		captured net.Conn
	)
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if c.TLSConfig != nil {
		tr.TLSClientConfig = c.TLSConfig
	}
	tr.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := (&net.Dialer{}).DialContext(ctx, network, addr)
		if err == nil {
			mu.Lock()
			captured = conn
			mu.Unlock()
		}
		return conn, err
	}

	dctx, cancel := context.WithTimeout(ctx, c.dialTimeoutOrDefault())
	defer cancel()
	//nolint:bodyclose
	conn, _, err := nwebsocket.Dial(dctx, u, &nwebsocket.DialOptions{
		HTTPClient:      &http.Client{Transport: tr},
		HTTPHeader:      c.Header,
		CompressionMode: nwebsocket.CompressionDisabled,
	})
	if err != nil {
		codec.Close()
		return nil, errors.Errorf("dial websocket: %w", err)
	}
	conn.SetReadLimit(compress.DefaultMaxMessageSize)

	mu.Lock()
	stats := metrics.NewSocketStats(captured)
	mu.Unlock()

	sctx, scancel := context.WithCancel(ctx)
	s := &wsSocket{
		conn:     conn,
		codec:    codec,
		stats:    stats,
		clock:    c.clockOrDefault(),
		liveness: c.Liveness,
		logger:   c.loggerOrDefault(),
		ctx:      sctx,
		cancel:   scancel,
	}
	s.rtt.Store(-1)
	go s.keepalive()
	return s, nil
}

// keepalive は、一定間隔でPingを送信し、Pongを待ちます。
//
// UnresponsiveTimeout までにPongを受信できなかった場合はコネクションを切断します。
func (s *wsSocket) keepalive() {
	ticker := s.clock.Ticker(s.liveness.KeepaliveIntervalOrDefault())
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
		start := s.clock.Now()
		ctx, cancel := s.clock.WithTimeout(s.ctx, s.liveness.UnresponsiveTimeoutOrDefault())
		err := s.conn.Ping(ctx)
		cancel()
		if err != nil {
			if s.ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				s.abort(errors.Errorf("no pong within %v: %w", s.liveness.UnresponsiveTimeoutOrDefault(), errors.ErrUnresponsive))
			}
			return
		}
		if rtt := s.clock.Since(start); rtt <= transport.MaxRTTSample {
			s.rtt.Store(int64(rtt))
		}
	}
}

func (s *wsSocket) abort(err error) {
	s.failMu.Lock()
	if s.failErr == nil {
		s.failErr = err
	}
	s.failMu.Unlock()
	s.conn.CloseNow()
}

func (s *wsSocket) failure() error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.failErr
}

func (s *wsSocket) Send(ctx context.Context, m message.Message) error {
	switch m := m.(type) {
	case message.Reliable:
		return s.write(ctx, m.Payload)
	case message.Unreliable:
		return s.write(ctx, m.Payload)
	case message.Close:
		defer s.teardown()
		if err := s.conn.Close(nwebsocket.StatusCode(websocket.StatusFor(m)), ""); err != nil {
			return errors.Errorf("nhooyr: close: %v: %w", err, errors.ErrTransportInternal)
		}
		return nil
	}
	panic("unreachable")
}

func (s *wsSocket) write(ctx context.Context, payload []byte) error {
	bs, err := s.codec.Compress(payload)
	if err != nil {
		return errors.Errorf("compress: %w", err)
	}
	if err := s.conn.Write(ctx, nwebsocket.MessageBinary, bs); err != nil {
		return errors.Errorf("nhooyr: write: %v: %w", err, errors.ErrTransportInternal)
	}
	return nil
}

func (s *wsSocket) Recv(ctx context.Context) (message.Message, error) {
	typ, bs, err := s.conn.Read(ctx)
	if err != nil {
		if ferr := s.failure(); ferr != nil {
			return nil, ferr
		}
		if code := nwebsocket.CloseStatus(err); code != -1 {
			return websocket.CloseMessage(websocket.StatusCode(code)), nil
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errors.Errorf("nhooyr: read: %v: %w", err, errors.ErrUnexpectedClosure)
		}
		return nil, errors.Errorf("nhooyr: read: %v: %w", err, errors.ErrTransportInternal)
	}
	if typ != nwebsocket.MessageBinary {
		return nil, errors.Errorf("unexpected text frame: %w", errors.ErrProtocolViolation)
	}
	payload, err := s.codec.Decompress(bs)
	if err != nil {
		return nil, err
	}
	return message.Reliable{Payload: payload}, nil
}

func (s *wsSocket) RTT() (time.Duration, bool) {
	rtt := s.rtt.Load()
	if rtt < 0 {
		return 0, false
	}
	return time.Duration(rtt), true
}

func (s *wsSocket) OutboundBacklog() int {
	return s.stats.UnsentBytes()
}

func (s *wsSocket) Drop() {
	s.conn.CloseNow()
	s.teardown()
}

func (s *wsSocket) teardown() {
	s.cancel()
	s.codec.Close()
}

func (s *wsSocket) Name() transport.Name {
	return transport.NameWebSocket
}

func dialWebTransport(ctx context.Context, c Config) (*webtransport.Transport, error) {
	d := webtransport.NewDialer(webtransport.DialerConfig{
		CompressConfig: c.Compress,
		Liveness:       c.Liveness,
		Header:         c.Header,
		TLSConfig:      c.TLSConfig,
		DialTimeout:    c.dialTimeoutOrDefault(),
		Logger:         c.loggerOrDefault(),
	})
	return d.Dial(ctx, c.WebTransportURL, nil)
}
