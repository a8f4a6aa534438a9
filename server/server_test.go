package server_test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	gwebsocket "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodiakio/realtime-go/admission"
	"github.com/kodiakio/realtime-go/errors"
	"github.com/kodiakio/realtime-go/internal/testdata"
	"github.com/kodiakio/realtime-go/message"
	. "github.com/kodiakio/realtime-go/server"
	"github.com/kodiakio/realtime-go/transport"
	"github.com/kodiakio/realtime-go/transport/compress"
	"github.com/kodiakio/realtime-go/transport/metrics"
	"github.com/kodiakio/realtime-go/transport/websocket"
	"github.com/kodiakio/realtime-go/transport/webtransport"
)

// echoSession は、受信したメッセージをそのまま返します。
type echoSession struct {
	conn     *Conn
	received chan message.Message

	mu     sync.Mutex
	closed []transport.State
}

func (s *echoSession) Received(ctx context.Context, m message.Message) {
	s.received <- m
	s.conn.Send(ctx, m)
}

func (s *echoSession) Closed(st transport.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = append(s.closed, st)
}

func (s *echoSession) closedStates() []transport.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transport.State(nil), s.closed...)
}

type echoFactory struct {
	sessions chan *echoSession
}

func newEchoFactory() *echoFactory {
	return &echoFactory{sessions: make(chan *echoSession, 8)}
}

func (f *echoFactory) NewSession(_ context.Context, conn *Conn) (Session, error) {
	s := &echoSession{conn: conn, received: make(chan message.Message, 16)}
	f.sessions <- s
	return s, nil
}

func (f *echoFactory) next(t *testing.T) *echoSession {
	t.Helper()
	select {
	case s := <-f.sessions:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("no session created")
		return nil
	}
}

func startServer(t *testing.T, c Config, f SessionFactory) (*Server, string) {
	t.Helper()
	c.CheckOrigin = func(*http.Request) bool { return true }
	sv, err := New(c, f)
	require.NoError(t, err)
	hs := httptest.NewServer(http.HandlerFunc(sv.ServeWebSocket))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sv.Shutdown(ctx)
		hs.Close()
	})
	return sv, "ws" + strings.TrimPrefix(hs.URL, "http")
}

func dial(t *testing.T, url string, cc compress.Config) *websocket.Transport {
	t.Helper()
	d := websocket.NewDialer(websocket.DialerConfig{CompressConfig: cc})
	tr, err := d.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	t.Cleanup(tr.Drop)
	return tr
}

func recv(t *testing.T, tr *websocket.Transport) message.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m, err := tr.Recv(ctx)
	require.NoError(t, err)
	return m
}

func TestServer_WebSocketEcho(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newEchoFactory()
	_, url := startServer(t, Config{Metrics: metrics.NewCollector(reg)}, f)

	tr := dial(t, url, compress.Config{Enable: true})
	sess := f.next(t)
	assert.Equal(t, transport.NameWebSocket, sess.conn.Info().Transport)
	assert.Equal(t, netip.MustParseAddr("127.0.0.1"), sess.conn.Info().RemoteIP)
	assert.Equal(t, compress.TypeContextTakeOver, sess.conn.Info().NegotiationParams.Compress)
	assert.NotEmpty(t, sess.conn.Info().ConnectionID)

	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, tr.Send(context.Background(), message.Reliable{Payload: []byte(p)}))
		assert.Equal(t, message.Reliable{Payload: []byte(p)}, recv(t, tr))
	}

	require.NoError(t, tr.Close())
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]transport.State{transport.StateClosed}, sess.closedStates())
	}, 5*time.Second, 10*time.Millisecond)

	for name, want := range map[string]int{
		"realtime_connections_opened_total":   1,
		"realtime_connections_finished_total": 1,
		"realtime_messages_total":             2,
	} {
		n, err := testutil.GatherAndCount(reg, name)
		assert.NoError(t, err)
		assert.Equal(t, want, n, name)
	}
}

func TestServer_Handshake(t *testing.T) {
	tests := []struct {
		name       string
		gate       admission.Gate
		query      string
		wantStatus int
	}{
		{
			name:       "refused by gate",
			gate:       admission.GateFunc(func(netip.Addr, int, string, time.Time) bool { return true }),
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "unknown compress type",
			query:      "?comp=bogus",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "level without type",
			query:      "?clevel=3",
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEchoFactory()
			_, url := startServer(t, Config{Gate: tt.gate}, f)

			_, res, err := gwebsocket.DefaultDialer.Dial(url+tt.query, nil)
			require.Error(t, err)
			require.NotNil(t, res)
			defer res.Body.Close()
			assert.Equal(t, tt.wantStatus, res.StatusCode)
			assert.Empty(t, f.sessions)
		})
	}
}

func TestServer_GateLabels(t *testing.T) {
	var mu sync.Mutex
	var labels []string
	gate := admission.GateFunc(func(_ netip.Addr, cost int, label string, _ time.Time) bool {
		mu.Lock()
		defer mu.Unlock()
		labels = append(labels, fmt.Sprintf("%s:%d", label, cost))
		return label == admission.LabelMessage
	})
	mock := clock.NewMock()
	f := newEchoFactory()
	_, url := startServer(t, Config{Gate: gate, Clock: mock}, f)

	tr := dial(t, url, compress.Config{})
	sess := f.next(t)
	for range 3 {
		require.NoError(t, tr.Send(context.Background(), message.Reliable{Payload: []byte("x")}))
		<-sess.received
		recv(t, tr)
	}

	require.Eventually(t, func() bool {
		mock.Add(DefaultAdmissionInterval)
		return sess.conn.State().IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, transport.StateError, sess.conn.State())
	assert.Equal(t, message.Close{Error: true}, recv(t, tr))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"connect:1", "message:3"}, labels)
}

func TestServer_KernelRTT(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("TCP_INFO is read on linux only")
	}
	reg := prometheus.NewRegistry()
	mock := clock.NewMock()
	f := newEchoFactory()
	_, url := startServer(t, Config{Clock: mock, Metrics: metrics.NewCollector(reg)}, f)

	tr := dial(t, url, compress.Config{})
	sess := f.next(t)
	require.NoError(t, tr.Send(context.Background(), message.Reliable{Payload: []byte("x")}))
	<-sess.received
	recv(t, tr)

	if _, ok := sess.conn.KernelRTT(); !ok {
		t.Skip("kernel did not report an RTT")
	}
	require.Eventually(t, func() bool {
		mock.Add(DefaultAdmissionInterval)
		n, err := testutil.GatherAndCount(reg, "realtime_tcp_rtt_seconds")
		return err == nil && n == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServer_SessionFactoryError(t *testing.T) {
	_, url := startServer(t, Config{}, SessionFactoryFunc(func(context.Context, *Conn) (Session, error) {
		return nil, errors.New("rejected")
	}))

	tr := dial(t, url, compress.Config{})
	assert.Equal(t, message.Close{Error: true}, recv(t, tr))
	assert.Equal(t, transport.StateError, tr.State())
}

func TestServer_Shutdown(t *testing.T) {
	f := newEchoFactory()
	sv, url := startServer(t, Config{}, f)

	tr := dial(t, url, compress.Config{})
	sess := f.next(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sv.Shutdown(ctx))
	assert.Equal(t, []transport.State{transport.StateDropped}, sess.closedStates())

	assert.Equal(t, message.Close{Error: false}, recv(t, tr))

	_, res, err := gwebsocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, res)
	defer res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestServer_WebTransport(t *testing.T) {
	f := newEchoFactory()
	sv, err := New(Config{CheckOrigin: func(*http.Request) bool { return true }}, f)
	require.NoError(t, err)

	udpConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	mux := http.NewServeMux()
	mux.HandleFunc("/wt", sv.ServeWebTransport)
	wt := sv.NewWebTransportServer("", testdata.GetTLSConfig(), mux)
	go wt.Serve(udpConn)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sv.Shutdown(ctx)
		wt.Close()
		udpConn.Close()
	})

	d := webtransport.NewDialer(webtransport.DialerConfig{TLSConfig: testdata.GetClientTLSConfig()})
	url := fmt.Sprintf("https://localhost:%d/wt", udpConn.LocalAddr().(*net.UDPAddr).Port)
	tr, err := d.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	t.Cleanup(tr.Drop)

	require.NoError(t, tr.Send(context.Background(), message.Reliable{Payload: []byte("hello")}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m, err := tr.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, message.Reliable{Payload: []byte("hello")}, m)

	sess := f.next(t)
	assert.Equal(t, transport.NameWebTransport, sess.conn.Info().Transport)

	require.NoError(t, tr.Close())
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]transport.State{transport.StateClosed}, sess.closedStates())
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServer_WebTransportDisabled(t *testing.T) {
	sv, err := New(Config{}, newEchoFactory())
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	sv.ServeWebTransport(rec, httptest.NewRequest(http.MethodConnect, "/", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)
	_, err = New(Config{Liveness: transport.LivenessConfig{
		KeepaliveInterval:   time.Second,
		UnresponsiveTimeout: time.Second,
	}}, newEchoFactory())
	assert.Error(t, err)
}
