package server

import (
	"context"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kodiakio/realtime-go/message"
	"github.com/kodiakio/realtime-go/transport"
	"github.com/kodiakio/realtime-go/transport/metrics"
	"github.com/kodiakio/realtime-go/transport/unified"
)

// Session は、アプリケーションが実装する 1 コネクション分の処理です。
type Session interface {
	// Received は、受信したメッセージごとにコネクションのゴルーチンから呼び出されます。
	Received(ctx context.Context, m message.Message)

	// Closed は、コネクションが終端状態に遷移した時に 1 度だけ呼び出されます。
	Closed(state transport.State)
}

// SessionFactory は、受け付けたコネクションの Session を生成します。
type SessionFactory interface {
	// NewSession がエラーを返却した場合、コネクションは異常終了します。
	NewSession(ctx context.Context, conn *Conn) (Session, error)
}

// SessionFactoryFunc は、関数を SessionFactory として扱うためのアダプタです。
type SessionFactoryFunc func(ctx context.Context, conn *Conn) (Session, error)

// NewSession は f(ctx, conn) を呼び出します。
func (f SessionFactoryFunc) NewSession(ctx context.Context, conn *Conn) (Session, error) {
	return f(ctx, conn)
}

// Info は、受け付けたコネクションの情報です。
type Info struct {
	ConnectionID      string
	RemoteIP          netip.Addr
	Transport         transport.Name
	NegotiationParams transport.NegotiationParams
}

// Conn は、 Session に渡されるコネクションです。並行に使用できます。
type Conn struct {
	h        *unified.Handle
	info     Info
	metrics  *metrics.Collector
	received atomic.Int64
}

// Info は、コネクションの情報を返却します。
func (c *Conn) Info() Info {
	return c.info
}

// Handle は、コネクションのトランスポートを返却します。
func (c *Conn) Handle() *unified.Handle {
	return c.h
}

// Send は、１メッセージを送信します。
func (c *Conn) Send(ctx context.Context, m message.Message) error {
	if err := c.h.Send(ctx, m); err != nil {
		return err
	}
	if p, ok := message.Payload(m); ok {
		c.metrics.Sent(string(c.info.Transport), kindOf(m), len(p))
	}
	return nil
}

// RTT は、直近のRTTを返却します。
func (c *Conn) RTT() (time.Duration, bool) {
	return c.h.RTT()
}

// KernelRTT は、カーネルが計測したTCPのRTTを返却します。WebTransportでは false を返却します。
func (c *Conn) KernelRTT() (time.Duration, bool) {
	return c.h.KernelRTT()
}

// State は、コネクションの状態を返却します。
func (c *Conn) State() transport.State {
	return c.h.State()
}

// OutboundBacklog は、送信待ちのメッセージ数とソケットの未送信バイト数の合計を返却します。
func (c *Conn) OutboundBacklog() int {
	return c.h.OutboundBacklog()
}

// Close は、コネクションを正常終了します。
func (c *Conn) Close() error {
	return c.h.Close()
}

// Fail は、コネクションを異常終了します。
func (c *Conn) Fail() error {
	return c.h.Fail()
}

func kindOf(m message.Message) string {
	if message.IsReliable(m) {
		return "reliable"
	}
	return "unreliable"
}

// sessionObserver は、 Session が生成される前に終端した場合に通知を保留します。
type sessionObserver struct {
	name    transport.Name
	metrics *metrics.Collector

	mu      sync.Mutex
	session Session
	pending *transport.State
}

func (o *sessionObserver) Closed(st transport.State) {
	o.metrics.Finished(string(o.name), st.String())

	o.mu.Lock()
	s := o.session
	if s == nil {
		o.pending = &st
	}
	o.mu.Unlock()

	if s != nil {
		s.Closed(st)
	}
}

func (o *sessionObserver) attach(s Session) {
	o.mu.Lock()
	o.session = s
	pending := o.pending
	o.mu.Unlock()

	if pending != nil {
		s.Closed(*pending)
	}
}
