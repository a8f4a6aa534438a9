package server

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync"

	"github.com/benbjohnson/clock"
	gwebsocket "github.com/gorilla/websocket"
	"github.com/quic-go/quic-go/http3"
	webtransgo "github.com/quic-go/webtransport-go"

	"github.com/kodiakio/realtime-go/admission"
	"github.com/kodiakio/realtime-go/errors"
	"github.com/kodiakio/realtime-go/log"
	"github.com/kodiakio/realtime-go/message"
	"github.com/kodiakio/realtime-go/transport"
	"github.com/kodiakio/realtime-go/transport/metrics"
	"github.com/kodiakio/realtime-go/transport/unified"
	"github.com/kodiakio/realtime-go/transport/websocket"
	"github.com/kodiakio/realtime-go/transport/websocket/gorilla"
	"github.com/kodiakio/realtime-go/transport/webtransport"
)

// Server は、コネクションを受け付けます。
type Server struct {
	config   Config
	factory  SessionFactory
	gate     admission.Gate
	logger   log.Logger
	metrics  *metrics.Collector
	clock    clock.Clock
	upgrader gwebsocket.Upgrader
	tracker  *webtransport.RTTTracker

	wtMu sync.Mutex
	wt   *webtransgo.Server

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New は、 Server を返却します。
func New(c Config, factory SessionFactory) (*Server, error) {
	if factory == nil {
		return nil, errors.New("session factory should not be nil")
	}
	if err := c.Liveness.Validate(); err != nil {
		return nil, errors.Errorf("invalid liveness config: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:  c,
		factory: factory,
		gate:    c.gateOrDefault(),
		logger:  c.loggerOrDefault(),
		metrics: c.Metrics,
		clock:   c.clockOrDefault(),
		upgrader: gwebsocket.Upgrader{
			CheckOrigin: c.CheckOrigin,
		},
		tracker: webtransport.NewRTTTracker(),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// NewWebTransportServer は、 ServeWebTransport でセッションを受け付けるためのHTTP/3サーバーを返却します。
//
// QUICのキープアライブとアイドルタイムアウトには Config.Liveness を使用します。
func (s *Server) NewWebTransportServer(addr string, tlsConfig *tls.Config, handler http.Handler) *webtransgo.Server {
	wt := &webtransgo.Server{
		CheckOrigin: s.config.CheckOrigin,
		H3: http3.Server{
			Addr:            addr,
			TLSConfig:       tlsConfig,
			QUICConfig:      webtransport.NewQUICConfig(s.config.Liveness, s.tracker.Tracer),
			Handler:         handler,
			EnableDatagrams: true,
		},
	}
	s.wtMu.Lock()
	s.wt = wt
	s.wtMu.Unlock()
	return wt
}

func (s *Server) webTransportServer() *webtransgo.Server {
	s.wtMu.Lock()
	defer s.wtMu.Unlock()
	return s.wt
}

// admit は、アップグレード前の検査を行います。
// 拒否した場合はHTTPのエラーレスポンスを返却済みです。
func (s *Server) admit(w http.ResponseWriter, r *http.Request) (Info, bool) {
	info := Info{
		ConnectionID: log.NewConnectionID(),
		RemoteIP:     RemoteIP(r),
	}
	ctx := log.WithRemoteAddr(log.WithConnectionID(r.Context(), info.ConnectionID), info.RemoteIP.String())

	if s.isClosed() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return info, false
	}
	if s.gate.ShouldLimit(info.RemoteIP, 1, admission.LabelConnect, s.clock.Now()) {
		s.metrics.Limited(admission.LabelConnect)
		s.logger.Warnf(ctx, "refuse connection: %v", errors.ErrAdmissionRefused)
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return info, false
	}
	if err := info.NegotiationParams.UnmarshalURLValues(r.URL.Query()); err != nil {
		s.logger.Infof(ctx, "invalid negotiation params: %v", err)
		http.Error(w, "invalid negotiation params", http.StatusBadRequest)
		return info, false
	}
	if err := info.NegotiationParams.Validate(); err != nil {
		s.logger.Infof(ctx, "invalid negotiation params: %v", err)
		http.Error(w, "invalid negotiation params", http.StatusBadRequest)
		return info, false
	}
	return info, true
}

// ServeWebSocket は、WebSocketのアップグレード要求を受け付けます。
//
// ハンドラーはコネクションが終了するまで戻りません。
func (s *Server) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	info, ok := s.admit(w, r)
	if !ok {
		return
	}
	info.Transport = transport.NameWebSocket

	conn, err := gorilla.Upgrade(&s.upgrader, w, r)
	if err != nil {
		s.logger.Infof(log.WithConnectionID(r.Context(), info.ConnectionID), "upgrade websocket: %v", err)
		return
	}
	obs := &sessionObserver{name: info.Transport, metrics: s.metrics}
	t, err := websocket.New(websocket.Config{
		Conn:              conn,
		QueueSize:         s.config.QueueSize,
		CompressConfig:    s.config.Compress,
		NegotiationParams: info.NegotiationParams,
		Liveness:          s.config.Liveness,
		Observer:          obs,
		ConnectionID:      info.ConnectionID,
		Clock:             s.config.Clock,
		Logger:            s.logger,
	})
	if err != nil {
		s.logger.Errorf(log.WithConnectionID(r.Context(), info.ConnectionID), "create websocket transport: %v", err)
		conn.CloseWithStatus(websocket.StatusInternalError, "")
		return
	}
	s.serve(unified.FromWebSocket(t), info, obs)
}

// ServeWebTransport は、WebTransportのセッション確立要求を受け付けます。
//
// NewWebTransportServer で生成したサーバーのハンドラーから呼び出してください。
// ハンドラーはコネクションが終了するまで戻りません。
func (s *Server) ServeWebTransport(w http.ResponseWriter, r *http.Request) {
	wt := s.webTransportServer()
	if wt == nil {
		http.Error(w, "webtransport is not enabled", http.StatusNotImplemented)
		return
	}
	info, ok := s.admit(w, r)
	if !ok {
		return
	}
	info.Transport = transport.NameWebTransport

	sess, err := wt.Upgrade(w, r)
	if err != nil {
		s.logger.Infof(log.WithConnectionID(r.Context(), info.ConnectionID), "upgrade webtransport: %v", err)
		return
	}
	obs := &sessionObserver{name: info.Transport, metrics: s.metrics}
	cfg := webtransport.Config{
		Session:           sess,
		QueueSize:         s.config.QueueSize,
		CompressConfig:    s.config.Compress,
		NegotiationParams: info.NegotiationParams,
		Observer:          obs,
		ConnectionID:      info.ConnectionID,
		Clock:             s.config.Clock,
		Logger:            s.logger,
	}
	if rtt, ok := s.tracker.Lookup(r.Context()); ok {
		cfg.RTT = rtt
	}
	t, err := webtransport.New(cfg)
	if err != nil {
		s.logger.Errorf(log.WithConnectionID(r.Context(), info.ConnectionID), "create webtransport transport: %v", err)
		sess.CloseWithError(webtransport.SessionCodeError, "")
		return
	}
	s.serve(unified.FromWebTransport(t), info, obs)
}

func (s *Server) serve(h *unified.Handle, info Info, obs *sessionObserver) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		h.Drop()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()
	defer h.Drop()

	s.metrics.Opened(string(info.Transport))
	ctx, cancel := context.WithCancel(log.WithRemoteAddr(h.Context(), info.RemoteIP.String()))
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	c := &Conn{h: h, info: info, metrics: s.metrics}
	sess, err := s.factory.NewSession(ctx, c)
	if err != nil {
		cancel()
		s.logger.Errorf(ctx, "create session: %v", err)
		h.Fail()
		return
	}
	obs.attach(sess)
	s.logger.Infof(ctx, "connection opened on %s", info.Transport)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.watchAdmission(ctx, c)
	}()
	defer func() {
		cancel()
		<-done
	}()

	for {
		m, err := h.Recv(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, errors.ErrConnectionClosed) {
				s.logger.Infof(ctx, "connection finished: %v", err)
			}
			return
		}
		if _, ok := m.(message.Close); ok {
			s.logger.Infof(ctx, "connection closed by peer in %v", h.State())
			return
		}
		p, _ := message.Payload(m)
		c.received.Add(1)
		s.metrics.Received(string(info.Transport), kindOf(m), len(p))
		sess.Received(ctx, m)
	}
}

// watchAdmission は、受信メッセージ数を定期的にゲートへ問い合わせ、拒否された場合はコネクションを異常終了します。
func (s *Server) watchAdmission(ctx context.Context, c *Conn) {
	ticker := s.clock.Ticker(s.config.admissionIntervalOrDefault())
	defer ticker.Stop()

	var last int64
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if rtt, ok := c.RTT(); ok {
				s.metrics.ObserveRTT(string(c.info.Transport), rtt)
			}
			if rtt, ok := c.KernelRTT(); ok {
				s.metrics.ObserveKernelRTT(string(c.info.Transport), rtt)
			}
			n := c.received.Load()
			cost := int(n - last)
			last = n
			if cost == 0 {
				continue
			}
			if s.gate.ShouldLimit(c.info.RemoteIP, cost, admission.LabelMessage, now) {
				s.metrics.Limited(admission.LabelMessage)
				s.logger.Warnf(ctx, "fail connection after %d messages: %v", cost, errors.ErrAdmissionRefused)
				c.Fail()
				return
			}
		}
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Shutdown は、新たな接続の受け付けを停止し、すべてのコネクションを終了して待ちます。
//
// コネクションは transport.StateDropped で終了します。
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
