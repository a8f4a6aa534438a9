package client

import (
	"context"
	"sync"
	"time"

	"github.com/kodiakio/realtime-go/errors"
	"github.com/kodiakio/realtime-go/log"
	"github.com/kodiakio/realtime-go/message"
	"github.com/kodiakio/realtime-go/transport"
	"github.com/kodiakio/realtime-go/transport/unified"
)

// event は、バックグラウンドのゴルーチンから Dispatch を呼び出すゴルーチンへ渡すコールバックです。
type event func(c *Conn)

// Conn は、接続を開始する側のコネクションです。
//
// 接続処理と送受信はバックグラウンドで行われ、その結果はイベントとして蓄積されます。
// イベントは Dispatch を呼び出したゴルーチンで順番に処理されます。
// Dispatch を含むすべてのメソッドは同じ 1 つのゴルーチンから呼び出してください。
type Conn struct {
	config Config
	logger log.Logger
	state  *transport.StateMachine
	ctx    context.Context
	cancel context.CancelFunc

	// 以下は Dispatch を呼び出すゴルーチンのみが参照します。
	sock    socket
	out     *outbox
	pending []message.Message
	inbox   []message.Message

	evMu   sync.Mutex
	events []event
	ready  chan struct{}
}

// Dial は、 StateOpening の Conn を返却し、バックグラウンドで接続を開始します。
//
// 接続の結果は Dispatch を呼び出すと State に反映されます。
func Dial(c Config) (*Conn, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(log.WithConnectionID(context.Background(), log.NewConnectionID()))
	conn := &Conn{
		config: c,
		logger: c.loggerOrDefault(),
		state:  transport.NewStateMachine(transport.StateOpening, c.Observer),
		ctx:    ctx,
		cancel: cancel,
		ready:  make(chan struct{}, 1),
	}
	go conn.connect()
	return conn, nil
}

func (c *Conn) connect() {
	sock, err := c.dial(c.ctx)
	if err != nil {
		c.post(func(c *Conn) {
			if c.ctx.Err() == nil {
				c.logger.Warnf(c.ctx, "connect: %v", err)
			}
			c.state.Finalize(transport.StateError)
			c.teardown()
		})
		return
	}
	c.post(func(c *Conn) {
		c.opened(sock)
	})
}

// dial は、WebTransportを優先する場合はWebTransportで接続を試み、失敗した場合はWebSocketで接続します。
func (c *Conn) dial(ctx context.Context) (socket, error) {
	var datagram func(context.Context) (socket, error)
	if c.config.PreferDatagrams {
		datagram = func(ctx context.Context) (socket, error) {
			t, err := dialWebTransport(ctx, c.config)
			if err != nil {
				return nil, err
			}
			return t, nil
		}
	}
	return unified.DialPreferred(ctx, c.logger, datagram, func(ctx context.Context) (socket, error) {
		s, err := dialWebSocket(ctx, c.config, transport.NegotiationParamsFor(c.config.Compress))
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

func (c *Conn) opened(sock socket) {
	if c.state.Current().IsTerminal() {
		sock.Drop()
		return
	}
	c.sock = sock
	c.out = newOutbox()
	c.logger.Infof(c.ctx, "connected on %s", sock.Name())

	go c.writeLoop(sock, c.out)
	go c.readLoop(sock)

	c.state.Open()
	for _, m := range c.pending {
		c.out.push(m)
	}
	c.pending = nil
}

func (c *Conn) writeLoop(sock socket, out *outbox) {
	for {
		m, ok := out.pop(c.ctx)
		if !ok {
			return
		}
		err := sock.Send(c.ctx, m)
		out.done()
		if _, ok := m.(message.Close); ok {
			c.cancel()
			return
		}
		if err != nil {
			c.post(func(c *Conn) {
				c.failed(err)
			})
			return
		}
	}
}

func (c *Conn) readLoop(sock socket) {
	for {
		m, err := sock.Recv(c.ctx)
		if err != nil {
			c.post(func(c *Conn) {
				c.failed(err)
			})
			return
		}
		if cm, ok := m.(message.Close); ok {
			c.post(func(c *Conn) {
				c.logger.Infof(c.ctx, "closed by peer with error=%v", cm.Error)
				c.state.Finalize(closeState(cm))
				c.teardown()
			})
			return
		}
		c.post(func(c *Conn) {
			c.inbox = append(c.inbox, m)
		})
	}
}

func (c *Conn) failed(err error) {
	if c.ctx.Err() != nil {
		return
	}
	c.logger.Infof(c.ctx, "connection failed: %v", err)
	c.state.Finalize(transport.StateForError(err))
	c.teardown()
}

func (c *Conn) teardown() {
	c.cancel()
	if c.sock != nil {
		c.sock.Drop()
	}
}

func (c *Conn) post(ev event) {
	c.evMu.Lock()
	c.events = append(c.events, ev)
	c.evMu.Unlock()
	select {
	case c.ready <- struct{}{}:
	default:
	}
}

// Ready は、未処理のイベントがある時に値を受信できるチャンネルを返却します。
func (c *Conn) Ready() <-chan struct{} {
	return c.ready
}

// Dispatch は、未処理のイベントを発生順に処理し、処理したイベントの数を返却します。
//
// 状態の変化を取りこぼさないよう、一定間隔（例えばフレームごと）に呼び出してください。
func (c *Conn) Dispatch() int {
	c.evMu.Lock()
	events := c.events
	c.events = nil
	c.evMu.Unlock()

	for _, ev := range events {
		ev(c)
	}
	return len(events)
}

// Receive は、受信済みのメッセージを 1 つ取り出します。無い場合は `false` を返却します。
func (c *Conn) Receive() (message.Message, bool) {
	if len(c.inbox) == 0 {
		return nil, false
	}
	m := c.inbox[0]
	c.inbox[0] = nil
	c.inbox = c.inbox[1:]
	return m, true
}

// Send は、メッセージを送信キューに追加します。
//
// StateOpening の間、 message.Reliable は接続後に順番に送信されます。 message.Unreliable は破棄します。
// message.Close を渡した場合は Close または Fail と同じです。
func (c *Conn) Send(m message.Message) error {
	if cm, ok := m.(message.Close); ok {
		c.finish(cm)
		return nil
	}
	switch c.state.Current() {
	case transport.StateOpening:
		if _, ok := m.(message.Reliable); ok {
			c.pending = append(c.pending, m)
		}
		return nil
	case transport.StateOpen:
		c.out.push(m)
		return nil
	default:
		return errors.ErrConnectionClosed
	}
}

// finish は、終端状態へ遷移し、接続済みの場合はキューに残っているメッセージに続けてクローズを送信します。
func (c *Conn) finish(m message.Close) {
	switch c.state.Current() {
	case transport.StateOpening:
		c.pending = nil
		c.state.Finalize(closeState(m))
		c.teardown()
	case transport.StateOpen:
		c.state.Finalize(closeState(m))
		c.out.push(m)
	}
}

// Close は、コネクションを正常終了します。
func (c *Conn) Close() {
	c.finish(message.Close{Error: false})
}

// Fail は、コネクションを異常終了します。
func (c *Conn) Fail() {
	c.finish(message.Close{Error: true})
}

// Drop は、送信キューを破棄してコネクションを直ちに切断します。
func (c *Conn) Drop() {
	c.pending = nil
	c.state.Finalize(transport.StateDropped)
	c.teardown()
}

// State は、現在の状態を返却します。
func (c *Conn) State() transport.State {
	return c.state.Current()
}

// TakeUpdated は、前回の呼び出し以降に状態が遷移したかどうかを返却します。
func (c *Conn) TakeUpdated() bool {
	return c.state.TakeUpdated()
}

// IsOpen は、 StateOpen かどうかを返却します。
func (c *Conn) IsOpen() bool {
	return c.State() == transport.StateOpen
}

// IsClosed は、 StateClosed かどうかを返却します。
func (c *Conn) IsClosed() bool {
	return c.State() == transport.StateClosed
}

// IsError は、 StateError かどうかを返却します。
func (c *Conn) IsError() bool {
	return c.State() == transport.StateError
}

// OutboundBacklog は、未送信のメッセージ数とソケットに残っている未送信のバイト数の合計を返却します。
func (c *Conn) OutboundBacklog() int {
	n := len(c.pending)
	if c.out != nil {
		n += c.out.len()
	}
	if c.sock != nil && !c.state.Current().IsTerminal() {
		n += c.sock.OutboundBacklog()
	}
	return n
}

// RTT は、直近のラウンドトリップタイムを返却します。計測されていない場合は `false` を返却します。
func (c *Conn) RTT() (time.Duration, bool) {
	if c.sock == nil {
		return 0, false
	}
	return c.sock.RTT()
}

// Name は、接続したトランスポートの名前を返却します。接続前は空文字列です。
func (c *Conn) Name() transport.Name {
	if c.sock == nil {
		return ""
	}
	return c.sock.Name()
}

func closeState(m message.Close) transport.State {
	if m.Error {
		return transport.StateError
	}
	return transport.StateClosed
}
