package websocket_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gwebsocket "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kodiakio/realtime-go/errors"
	"github.com/kodiakio/realtime-go/message"
	"github.com/kodiakio/realtime-go/transport"
	"github.com/kodiakio/realtime-go/transport/compress"
	. "github.com/kodiakio/realtime-go/transport/websocket"

	_ "github.com/kodiakio/realtime-go/transport/websocket/gorilla"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordObserver struct {
	mu     sync.Mutex
	states []transport.State
}

func (o *recordObserver) Closed(s transport.State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, s)
}

func (o *recordObserver) got() []transport.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]transport.State(nil), o.states...)
}

var upgrader = gwebsocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func startPeer(t testing.TB, handle func(c *gwebsocket.Conn)) string {
	t.Helper()
	var wg sync.WaitGroup
	s := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			c, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			wg.Add(1)
			defer wg.Done()
			defer c.Close()
			handle(c)
		},
	))
	t.Cleanup(func() {
		s.Close()
		wg.Wait()
	})
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func echo(c *gwebsocket.Conn) {
	for {
		tp, bs, err := c.ReadMessage()
		if err != nil {
			return
		}
		if err := c.WriteMessage(tp, bs); err != nil {
			return
		}
	}
}

func dial(t *testing.T, url string, cc compress.Config, observer transport.Observer) *Transport {
	t.Helper()
	d := NewDialer(DialerConfig{
		CompressConfig: cc,
		Liveness: transport.LivenessConfig{
			KeepaliveInterval:   20 * time.Millisecond,
			UnresponsiveTimeout: 5 * time.Second,
		},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tr, err := d.Dial(ctx, url, observer)
	require.NoError(t, err)
	return tr
}

func recv(t *testing.T, tr *Transport) (message.Message, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return tr.Recv(ctx)
}

func TestTransport_SendRecv(t *testing.T) {
	url := startPeer(t, echo)

	cfgs := []compress.Config{
		{},
		{Enable: true, DisableContextTakeover: true},
		{Enable: true, Level: 9},
		{Enable: true, Level: 1, WindowBits: 8},
		{Enable: true, Algorithm: compress.AlgorithmZstd},
	}
	inputs := []message.Message{
		message.Reliable{Payload: []byte{1, 2, 3, 4, 5}},
		message.Unreliable{Payload: []byte{2, 2, 3, 4, 5}},
		message.Reliable{Payload: []byte(strings.Repeat("state ", 100))},
		message.Reliable{Payload: []byte{4, 2, 3, 4, 5}},
	}

	for _, cc := range cfgs {
		name := "disabled"
		if cc.Enable {
			name = fmt.Sprintf("%s/level:%d", cc.Type(), cc.Level)
		}
		t.Run(name, func(t *testing.T) {
			testee := dial(t, url, cc, nil)
			defer testee.Drop()
			assert.Equal(t, transport.StateOpen, testee.State())
			assert.Equal(t, transport.NameWebSocket, testee.Name())

			for _, m := range inputs {
				require.NoError(t, testee.Send(context.Background(), m))
			}
			for _, m := range inputs {
				got, err := recv(t, testee)
				require.NoError(t, err)
				want, _ := message.Payload(m)
				assert.Equal(t, message.Reliable{Payload: want}, got)
			}
			assert.Equal(t, testee.TxBytesCounterValue(), testee.RxBytesCounterValue())
			assert.NotZero(t, testee.RxBytesCounterValue())
			assert.GreaterOrEqual(t, testee.OutboundBacklog(), 0)
		})
	}
}

func TestTransport_RTT(t *testing.T) {
	url := startPeer(t, echo)

	testee := dial(t, url, compress.Config{}, nil)
	defer testee.Drop()

	_, ok := testee.RTT()
	assert.False(t, ok)

	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		if _, err := testee.Recv(ctx); !errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		_, ok := testee.RTT()
		return ok
	}, 5*time.Second, time.Millisecond)

	rtt, _ := testee.RTT()
	assert.Less(t, rtt, time.Second)
	assert.Equal(t, transport.StateOpen, testee.State())
}

func TestTransport_RecvCloseFrame(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		want      message.Close
		wantState transport.State
	}{
		{name: "normal", code: gwebsocket.CloseNormalClosure, want: message.Close{Error: false}, wantState: transport.StateClosed},
		{name: "going away", code: gwebsocket.CloseGoingAway, want: message.Close{Error: false}, wantState: transport.StateClosed},
		{name: "no status", code: gwebsocket.CloseNoStatusReceived, want: message.Close{Error: false}, wantState: transport.StateClosed},
		{name: "protocol error", code: gwebsocket.CloseProtocolError, want: message.Close{Error: true}, wantState: transport.StateError},
		{name: "invalid payload", code: gwebsocket.CloseInvalidFramePayloadData, want: message.Close{Error: true}, wantState: transport.StateError},
		{name: "message too big", code: gwebsocket.CloseMessageTooBig, want: message.Close{Error: true}, wantState: transport.StateError},
		{name: "unsupported data", code: gwebsocket.CloseUnsupportedData, want: message.Close{Error: true}, wantState: transport.StateError},
		{name: "policy violation", code: gwebsocket.ClosePolicyViolation, want: message.Close{Error: true}, wantState: transport.StateError},
		{name: "internal", code: gwebsocket.CloseInternalServerErr, want: message.Close{Error: true}, wantState: transport.StateError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := startPeer(t, func(c *gwebsocket.Conn) {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
				_ = c.WriteControl(gwebsocket.CloseMessage, gwebsocket.FormatCloseMessage(tt.code, ""), time.Now().Add(time.Second))
				_, _, _ = c.ReadMessage()
			})
			o := &recordObserver{}
			testee := dial(t, url, compress.Config{}, o)
			defer testee.Drop()

			require.NoError(t, testee.Send(context.Background(), message.Reliable{Payload: []byte("hello")}))
			got, err := recv(t, testee)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantState, testee.State())
			assert.True(t, testee.TakeUpdated())

			_, err = recv(t, testee)
			assert.ErrorIs(t, err, errors.ErrConnectionClosed)
			assert.ErrorIs(t, testee.Send(context.Background(), message.Reliable{Payload: []byte("late")}), errors.ErrConnectionClosed)

			testee.Drop()
			assert.Equal(t, []transport.State{tt.wantState}, o.got())
		})
	}
}

// 伸長できないメッセージはエラーではなく Closed で終了します。
func TestTransport_RecvDecodeFailure(t *testing.T) {
	url := startPeer(t, func(c *gwebsocket.Conn) {
		_ = c.WriteMessage(gwebsocket.BinaryMessage, []byte{0xff, 0xfe, 0xfd, 0xfc})
		_, _, _ = c.ReadMessage()
	})
	o := &recordObserver{}
	testee := dial(t, url, compress.Config{Enable: true, DisableContextTakeover: true}, o)
	defer testee.Drop()

	_, err := recv(t, testee)
	assert.ErrorIs(t, err, errors.ErrDecodeFailure)
	assert.Equal(t, transport.StateClosed, testee.State())
	testee.Drop()
	assert.Equal(t, []transport.State{transport.StateClosed}, o.got())
}

func TestTransport_RecvTextFrame(t *testing.T) {
	url := startPeer(t, func(c *gwebsocket.Conn) {
		_ = c.WriteMessage(gwebsocket.TextMessage, []byte("hello"))
		_, _, _ = c.ReadMessage()
	})
	o := &recordObserver{}
	testee := dial(t, url, compress.Config{}, o)
	defer testee.Drop()

	_, err := recv(t, testee)
	assert.ErrorIs(t, err, errors.ErrProtocolViolation)
	assert.Equal(t, transport.StateError, testee.State())
	assert.Equal(t, []transport.State{transport.StateError}, o.got())
}

func TestTransport_RecvUnexpectedClosure(t *testing.T) {
	url := startPeer(t, func(c *gwebsocket.Conn) {
		c.NetConn().Close()
	})
	o := &recordObserver{}
	testee := dial(t, url, compress.Config{}, o)
	defer testee.Drop()

	_, err := recv(t, testee)
	assert.ErrorIs(t, err, errors.ErrUnexpectedClosure)
	assert.Equal(t, transport.StateError, testee.State())
	assert.Equal(t, []transport.State{transport.StateError}, o.got())
}

func TestTransport_Close(t *testing.T) {

	tests := []struct {
		name     string
		close    func(tr *Transport)
		want     transport.State
		wantCode int
	}{
		{name: "close", close: func(tr *Transport) { tr.Close() }, want: transport.StateClosed, wantCode: gwebsocket.CloseNormalClosure},
		{name: "fail", close: func(tr *Transport) { tr.Fail() }, want: transport.StateError, wantCode: gwebsocket.CloseInternalServerErr},
		{
			name:     "send close error",
			close:    func(tr *Transport) { tr.Send(context.Background(), message.Close{Error: true}) },
			want:     transport.StateError,
			wantCode: gwebsocket.CloseInternalServerErr,
		},
		{
			name:     "send close",
			close:    func(tr *Transport) { tr.Send(context.Background(), message.Close{}) },
			want:     transport.StateClosed,
			wantCode: gwebsocket.CloseNormalClosure,
		},
		{name: "drop", close: func(tr *Transport) { tr.Drop() }, want: transport.StateDropped, wantCode: gwebsocket.CloseGoingAway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codeC := make(chan int, 1)
			url := startPeer(t, func(c *gwebsocket.Conn) {
				_, _, err := c.ReadMessage()
				var ce *gwebsocket.CloseError
				if errors.As(err, &ce) {
					codeC <- ce.Code
				}
			})
			o := &recordObserver{}
			testee := dial(t, url, compress.Config{}, o)

			tt.close(testee)
			testee.Close()
			testee.Fail()
			testee.Drop()

			assert.Equal(t, tt.want, testee.State())
			assert.Equal(t, []transport.State{tt.want}, o.got())
			select {
			case got := <-codeC:
				assert.Equal(t, tt.wantCode, got)
			case <-time.After(5 * time.Second):
				t.Fatal("peer did not receive close frame")
			}
		})
	}
}
