package websocket

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/kodiakio/realtime-go/errors"
	"github.com/kodiakio/realtime-go/internal/ch"
	"github.com/kodiakio/realtime-go/log"
	"github.com/kodiakio/realtime-go/message"
	"github.com/kodiakio/realtime-go/transport"
	"github.com/kodiakio/realtime-go/transport/compress"
	"github.com/kodiakio/realtime-go/transport/metrics"
)

const pingPayloadSize = 8

type readResult struct {
	typ     MessageType
	payload []byte
	pong    bool
	err     error
}

// Transportは、WebSocketトランスポートです。
//
// Recv は 1 つのゴルーチンから呼び出してください。
// その他のメソッドは並行に呼び出すことができます。
type Transport struct {
	conn   Conn
	state  *transport.StateMachine
	codec  compress.Codec
	logger log.Logger
	socket metrics.SocketStats

	clock               clock.Clock
	keepaliveInterval   time.Duration
	unresponsiveTimeout time.Duration
	timer               *clock.Timer
	// lastPong は Recv を呼び出すゴルーチンのみが参照します。
	lastPong time.Time
	rtt      atomic.Int64

	readC   chan readResult
	writeMu sync.Mutex
	pending atomic.Int64

	rxBytesCounter atomic.Uint64
	txBytesCounter atomic.Uint64

	negotiationParams transport.NegotiationParams
	ctx               context.Context
	cancel            context.CancelFunc
	teardownOnce      sync.Once
}

// Newは、WebSocketトランスポートを返却します。
//
// トランスポートは StateOpen で生成され、受信ゴルーチンを開始します。
func New(config Config) (*Transport, error) {
	conn := config.webSocketConnOrPanic()
	if err := config.Liveness.Validate(); err != nil {
		return nil, errors.Errorf("invalid liveness config: %w", err)
	}
	codec, err := compress.New(config.NegotiationParams.CompressConfig(config.CompressConfig))
	if err != nil {
		return nil, errors.Errorf("create codec: %w", err)
	}

	ctx, cancel := context.WithCancel(log.WithConnectionID(context.Background(), config.ConnectionID))
	clk := config.clockOrDefault()
	t := &Transport{
		conn:                conn,
		state:               transport.NewStateMachine(transport.StateOpen, config.Observer),
		codec:               codec,
		logger:              config.loggerOrDefault(),
		socket:              config.socketStatsOrDefault(),
		clock:               clk,
		keepaliveInterval:   config.Liveness.KeepaliveIntervalOrDefault(),
		unresponsiveTimeout: config.Liveness.UnresponsiveTimeoutOrDefault(),
		lastPong:            clk.Now(),
		readC:               make(chan readResult, config.queueSizeOrDefault()),
		negotiationParams:   config.NegotiationParams,
		ctx:                 ctx,
		cancel:              cancel,
	}
	t.rtt.Store(-1)
	t.timer = clk.Timer(t.keepaliveInterval)
	conn.SetPongHandler(t.onPong)

	go t.readLoop()
	return t, nil
}

// Contextは、コネクションIDがセットされたトランスポートのコンテキストを返却します。
//
// コンテキストはトランスポートが終了するとキャンセルされます。
func (t *Transport) Context() context.Context {
	return t.ctx
}

// Recvは、１メッセージを受信します。
//
// 受信待ちの間、一定間隔でPingを送信してピアの生存確認を行います。
// クローズフレームを受信した場合は message.Close を返却し、トランスポートは終端状態になります。
// エラーを返却した場合もトランスポートは終端状態になります。
func (t *Transport) Recv(ctx context.Context) (message.Message, error) {
	for {
		if t.state.Current().IsTerminal() {
			return nil, errors.ErrConnectionClosed
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.ctx.Done():
			return nil, errors.ErrConnectionClosed
		case res, ok := <-t.readC:
			if t.state.Current().IsTerminal() {
				return nil, errors.ErrConnectionClosed
			}
			if !ok {
				return nil, t.fail(errors.ErrUnexpectedClosure)
			}
			m, err := t.handleRead(res)
			if err != nil {
				return nil, t.fail(err)
			}
			if m == nil {
				continue
			}
			return m, nil
		case <-t.timer.C:
			if err := t.keepalive(ctx); err != nil {
				return nil, t.fail(err)
			}
		}
	}
}

func (t *Transport) handleRead(res readResult) (message.Message, error) {
	if res.err != nil {
		var closeErr *CloseError
		if errors.As(res.err, &closeErr) {
			m := CloseMessage(closeErr.Code)
			t.logger.Debugf(t.ctx, "received close frame: %v", closeErr)
			t.finish(closeState(m), closeErr.Code)
			return m, nil
		}
		if errors.Is(res.err, errors.ErrTransport) {
			return nil, res.err
		}
		return nil, errors.Errorf("read: %v: %w", res.err, errors.ErrTransportInternal)
	}
	if res.pong {
		t.handlePong(res.payload)
		return nil, nil
	}
	if res.typ != MessageBinary {
		return nil, errors.Errorf("message type %d: %w", res.typ, errors.ErrProtocolViolation)
	}
	m, err := t.codec.Decompress(res.payload)
	if err != nil {
		return nil, err
	}
	t.rxBytesCounter.Add(uint64(len(res.payload)))
	return message.Reliable{Payload: m}, nil
}

// keepalive は、ピアが応答しなくなっていなければPingを送信します。
func (t *Transport) keepalive(ctx context.Context) error {
	now := t.clock.Now()
	if silence := now.Sub(t.lastPong); silence >= t.unresponsiveTimeout {
		return errors.Errorf("no pong for %v: %w", silence, errors.ErrUnresponsive)
	}
	t.timer.Reset(t.keepaliveInterval)

	payload := make([]byte, pingPayloadSize)
	binary.NativeEndian.PutUint64(payload, uint64(now.UnixMilli()))
	if err := t.conn.Ping(ctx, payload); err != nil {
		if errors.Is(err, errors.ErrTransport) {
			return err
		}
		return errors.Errorf("ping: %v: %w", err, errors.ErrTransportInternal)
	}
	return nil
}

func (t *Transport) handlePong(payload []byte) {
	now := t.clock.Now()
	t.lastPong = now
	if len(payload) != pingPayloadSize {
		t.logger.Debugf(t.ctx, "ignore pong with %d bytes payload", len(payload))
		return
	}
	sent := int64(binary.NativeEndian.Uint64(payload))
	rtt := time.Duration(now.UnixMilli()-sent) * time.Millisecond
	if rtt < 0 || rtt > transport.MaxRTTSample {
		t.logger.Debugf(t.ctx, "discard rtt sample %v", rtt)
		return
	}
	t.rtt.Store(int64(rtt))
}

func (t *Transport) onPong(payload []byte) {
	bs := make([]byte, len(payload))
	copy(bs, payload)
	ch.WriteOrDone(t.ctx, readResult{payload: bs, pong: true}, t.readC)
}

func (t *Transport) readLoop() {
	defer close(t.readC)
	for {
		tp, rd, err := t.conn.Reader(t.ctx)
		if err != nil {
			ch.WriteOrDone(t.ctx, readResult{err: err}, t.readC)
			return
		}
		bs, err := readAll(rd)
		if err != nil {
			ch.WriteOrDone(t.ctx, readResult{err: err}, t.readC)
			return
		}
		select {
		case t.readC <- readResult{typ: tp, payload: bs}:
		case <-t.ctx.Done():
			return
		}
	}
}

func readAll(rd io.Reader) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		bufferPool.Put(buf)
	}()
	if _, err := io.Copy(buf, rd); err != nil {
		return nil, err
	}
	res := make([]byte, buf.Len())
	copy(res, buf.Bytes())
	return res, nil
}

// Sendは、１メッセージを送信します。
//
// message.Unreliable は message.Reliable と同様に送信します。
// message.Close を送信するとトランスポートは終端状態になります。
func (t *Transport) Send(ctx context.Context, m message.Message) error {
	switch m := m.(type) {
	case message.Reliable:
		return t.write(ctx, m.Payload)
	case message.Unreliable:
		return t.write(ctx, m.Payload)
	case message.Close:
		if t.state.Current().IsTerminal() {
			return errors.ErrConnectionClosed
		}
		t.finish(closeState(m), StatusFor(m))
		return nil
	default:
		return errors.Errorf("unknown message type %T", m)
	}
}

func (t *Transport) write(ctx context.Context, bs []byte) error {
	if t.state.Current().IsTerminal() {
		return errors.ErrConnectionClosed
	}
	t.pending.Add(1)
	defer t.pending.Add(-1)

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	compressed, err := t.codec.Compress(bs)
	if err != nil {
		return errors.Errorf("compress: %v: %w", err, errors.ErrMalformedMessage)
	}
	wr, err := t.conn.Writer(ctx, MessageBinary)
	if err != nil {
		return t.writeFailed(err)
	}
	if _, err := wr.Write(compressed); err != nil {
		wr.Close()
		return t.writeFailed(err)
	}
	if err := wr.Close(); err != nil {
		return t.writeFailed(err)
	}
	t.txBytesCounter.Add(uint64(len(compressed)))
	return nil
}

func (t *Transport) writeFailed(err error) error {
	if t.state.Current().IsTerminal() {
		return errors.ErrConnectionClosed
	}
	if !errors.Is(err, errors.ErrTransport) {
		err = errors.Errorf("write: %v: %w", err, errors.ErrTransportInternal)
	}
	return t.fail(err)
}

// RTTは、直近のPingとPongから計測したラウンドトリップタイムを返却します。
//
// まだ計測されていない場合は `false` を返却します。
func (t *Transport) RTT() (time.Duration, bool) {
	v := t.rtt.Load()
	if v < 0 {
		return 0, false
	}
	return time.Duration(v), true
}

// KernelRTTは、カーネルが計測したTCPのRTTを返却します。
//
// 取得できないプラットフォームでは false を返却します。
func (t *Transport) KernelRTT() (time.Duration, bool) {
	return t.socket.RTT()
}

// Stateは、トランスポートの状態を返却します。
func (t *Transport) State() transport.State {
	return t.state.Current()
}

// TakeUpdatedは、前回の呼び出し以降に状態が遷移したかどうかを返却します。
func (t *Transport) TakeUpdated() bool {
	return t.state.TakeUpdated()
}

// OutboundBacklogは、送信中のメッセージ数とカーネルの未送信バイト数の合計を返却します。
func (t *Transport) OutboundBacklog() int {
	return int(t.pending.Load()) + t.socket.UnsentBytes()
}

// TxBytesCounterValueは、書き込んだ総バイト数を返却します。
func (t *Transport) TxBytesCounterValue() uint64 {
	return t.txBytesCounter.Load()
}

// RxBytesCounterValueは、読み込んだ総バイト数を返却します。
func (t *Transport) RxBytesCounterValue() uint64 {
	return t.rxBytesCounter.Load()
}

// NegotiationParamsは、ネゴシエーションパラメータを返却します。
func (t *Transport) NegotiationParams() transport.NegotiationParams {
	return t.negotiationParams
}

// Nameはトランスポート名を返却します。
func (t *Transport) Name() transport.Name {
	return Name
}

// Closeは、トランスポートを正常終了します。
func (t *Transport) Close() error {
	t.finish(transport.StateClosed, StatusNormalClosure)
	return nil
}

// Failは、トランスポートを異常終了します。
func (t *Transport) Fail() error {
	t.finish(transport.StateError, StatusInternalError)
	return nil
}

// Dropは、所有者がトランスポートを破棄したことを記録して終了します。
//
// 既に終端状態の場合も資源を解放します。 defer での呼び出しを想定しています。
func (t *Transport) Drop() {
	t.finish(transport.StateDropped, StatusGoingAway)
	t.teardown(StatusGoingAway)
}

func (t *Transport) fail(err error) error {
	st := transport.StateForError(err)
	t.logger.Infof(t.ctx, "connection finished with %v: %v", st, err)
	t.finish(st, statusForError(err))
	return err
}

func (t *Transport) finish(st transport.State, code StatusCode) {
	if t.state.Finalize(st) {
		t.teardown(code)
	}
}

func (t *Transport) teardown(code StatusCode) {
	t.teardownOnce.Do(func() {
		t.cancel()
		t.timer.Stop()
		if err := t.conn.CloseWithStatus(code, ""); err != nil {
			t.logger.Debugf(t.ctx, "close websocket: %v", err)
		}
		if err := t.codec.Close(); err != nil {
			t.logger.Debugf(t.ctx, "close codec: %v", err)
		}
	})
}

func closeState(m message.Close) transport.State {
	if m.Error {
		return transport.StateError
	}
	return transport.StateClosed
}

func statusForError(err error) StatusCode {
	switch {
	case errors.Is(err, errors.ErrProtocolViolation):
		return StatusProtocolError
	case errors.Is(err, errors.ErrDecodeFailure):
		return StatusInvalidFramePayloadData
	case errors.Is(err, errors.ErrUnexpectedClosure):
		return StatusAbnormalClosure
	default:
		return StatusInternalError
	}
}
