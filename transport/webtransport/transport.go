package webtransport

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	quic "github.com/quic-go/quic-go"
	webtransgo "github.com/quic-go/webtransport-go"

	"github.com/kodiakio/realtime-go/errors"
	"github.com/kodiakio/realtime-go/internal/ch"
	"github.com/kodiakio/realtime-go/internal/segment"
	"github.com/kodiakio/realtime-go/log"
	"github.com/kodiakio/realtime-go/message"
	"github.com/kodiakio/realtime-go/transport"
	"github.com/kodiakio/realtime-go/transport/compress"
)

// for test
var clearReadBufferInterval = time.Second

// セッションのクローズコードです。 0 以外はピアにエラーとして扱われます。
const (
	SessionCodeNormal            webtransgo.SessionErrorCode = 0
	SessionCodeError             webtransgo.SessionErrorCode = 1
	SessionCodeProtocolViolation webtransgo.SessionErrorCode = 2
	SessionCodeDecodeFailure     webtransgo.SessionErrorCode = 3
)

type readResult struct {
	msg message.Message
	err error
}

// Transportは、WebTransportのトランスポートです。
//
// message.Reliable は単方向ストリームで、 message.Unreliable はDATAGRAMで送受信します。
// Recv は 1 つのゴルーチンから呼び出してください。
// その他のメソッドは並行に呼び出すことができます。
type Transport struct {
	sess   *webtransgo.Session
	state  *transport.StateMachine
	logger log.Logger
	rtt    RTTSource
	clock  clock.Clock

	// codec はストリーム用です。送信は sendMu で直列化され、受信は streamLoop のみが行います。
	codec      compress.Codec
	sendMu     sync.Mutex
	sendStream webtransgo.SendStream

	dgMu      sync.Mutex
	dgCodec   compress.Codec
	seqNum    atomic.Uint32
	dgBuffers *segment.ReadBuffers

	readC   chan readResult
	pending atomic.Int64

	rxBytesCounter atomic.Uint64
	txBytesCounter atomic.Uint64

	negotiationParams transport.NegotiationParams
	ctx               context.Context
	cancel            context.CancelFunc
	teardownOnce      sync.Once
}

/*
New は、 WebTransport 向けのトランスポートを生成します。

トランスポートは StateOpen で生成され、受信ゴルーチンを開始します。
*/
func New(config Config) (*Transport, error) {
	sess := config.sessionOrPanic()
	compressConfig := config.NegotiationParams.CompressConfig(config.CompressConfig)
	codec, err := compress.New(compressConfig)
	if err != nil {
		return nil, errors.Errorf("create codec: %w", err)
	}
	dgCodec, err := compress.New(compressConfig.Stateless())
	if err != nil {
		codec.Close()
		return nil, errors.Errorf("create datagram codec: %w", err)
	}
	sendStream, err := sess.OpenUniStream()
	if err != nil {
		codec.Close()
		dgCodec.Close()
		return nil, errors.Errorf("open stream: %v: %w", err, errors.ErrTransportInternal)
	}

	ctx, cancel := context.WithCancel(log.WithConnectionID(context.Background(), config.ConnectionID))
	clk := config.clockOrDefault()
	t := &Transport{
		sess:              sess,
		state:             transport.NewStateMachine(transport.StateOpen, config.Observer),
		logger:            config.loggerOrDefault(),
		rtt:               config.rttOrDefault(),
		clock:             clk,
		codec:             codec,
		sendStream:        sendStream,
		dgCodec:           dgCodec,
		dgBuffers:         segment.NewReadBuffers(config.readBufferExpiryOrDefault(), clk, config.ReadBufferMaxPending),
		readC:             make(chan readResult, config.queueSizeOrDefault()),
		negotiationParams: config.NegotiationParams,
		ctx:               ctx,
		cancel:            cancel,
	}

	go t.streamLoop()
	go t.datagramLoop()
	go t.expiryLoop()
	return t, nil
}

// Contextは、コネクションIDがセットされたトランスポートのコンテキストを返却します。
//
// コンテキストはトランスポートが終了するとキャンセルされます。
func (t *Transport) Context() context.Context {
	return t.ctx
}

func (t *Transport) streamLoop() {
	rcv, err := t.sess.AcceptUniStream(t.ctx)
	if err != nil {
		ch.WriteOrDone(t.ctx, readResult{err: err}, t.readC)
		return
	}
	for {
		bs, err := ReadFrame(rcv, compress.DefaultMaxMessageSize)
		if err != nil {
			if errors.Is(err, errors.ErrMalformedMessage) {
				err = errors.Errorf("%v: %w", err, errors.ErrProtocolViolation)
			}
			ch.WriteOrDone(t.ctx, readResult{err: err}, t.readC)
			return
		}
		t.rxBytesCounter.Add(uint64(frameHeaderSize + len(bs)))
		m, err := t.codec.Decompress(bs)
		if err != nil {
			ch.WriteOrDone(t.ctx, readResult{err: err}, t.readC)
			return
		}
		select {
		case t.readC <- readResult{msg: message.Reliable{Payload: m}}:
		case <-t.ctx.Done():
			return
		}
	}
}

func (t *Transport) datagramLoop() {
	for {
		bs, err := t.sess.ReceiveDatagram(t.ctx)
		if err != nil {
			ch.WriteOrDone(t.ctx, readResult{err: err}, t.readC)
			return
		}
		t.rxBytesCounter.Add(uint64(len(bs)))
		m, finished, err := t.dgBuffers.Receive(bs)
		if err != nil {
			t.logger.Debugf(t.ctx, "discard datagram: %v", err)
			continue
		}
		if !finished {
			continue
		}
		m, err = t.decompressDatagram(m)
		if err != nil {
			ch.WriteOrDone(t.ctx, readResult{err: err}, t.readC)
			return
		}
		select {
		case t.readC <- readResult{msg: message.Unreliable{Payload: m}}:
		case <-t.ctx.Done():
			return
		}
	}
}

func (t *Transport) expiryLoop() {
	ticker := t.clock.Ticker(clearReadBufferInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
		}
		t.dgBuffers.RemoveExpired()
	}
}

func (t *Transport) decompressDatagram(bs []byte) ([]byte, error) {
	t.dgMu.Lock()
	defer t.dgMu.Unlock()
	return t.dgCodec.Decompress(bs)
}

// Recvは、１メッセージを受信します。
//
// ピアがセッションを閉じた場合は message.Close を返却し、トランスポートは終端状態になります。
// エラーを返却した場合もトランスポートは終端状態になります。
func (t *Transport) Recv(ctx context.Context) (message.Message, error) {
	if t.state.Current().IsTerminal() {
		return nil, errors.ErrConnectionClosed
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.ctx.Done():
		return nil, errors.ErrConnectionClosed
	case res := <-t.readC:
		if t.state.Current().IsTerminal() {
			return nil, errors.ErrConnectionClosed
		}
		if res.err != nil {
			return t.handleReadError(res.err)
		}
		return res.msg, nil
	}
}

func (t *Transport) handleReadError(err error) (message.Message, error) {
	var ierr *quic.IdleTimeoutError
	if errors.As(err, &ierr) {
		return nil, t.fail(wrapReadError(err))
	}
	var serr *webtransgo.SessionError
	if errors.As(err, &serr) && serr.Remote {
		m := message.Close{Error: serr.ErrorCode != SessionCodeNormal}
		t.logger.Debugf(t.ctx, "session closed by peer: %v", serr)
		t.finish(closeState(m), SessionCodeNormal)
		return m, nil
	}
	return nil, t.fail(wrapReadError(err))
}

func wrapReadError(err error) error {
	var ierr *quic.IdleTimeoutError
	switch {
	case errors.Is(err, errors.ErrTransport):
		return err
	case errors.As(err, &ierr):
		return errors.Errorf("%v: %w", err, errors.ErrUnresponsive)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return errors.Errorf("%v: %w", err, errors.ErrUnexpectedClosure)
	default:
		return errors.Errorf("read: %v: %w", err, errors.ErrTransportInternal)
	}
}

// Sendは、１メッセージを送信します。
//
// message.Close を送信するとトランスポートは終端状態になります。
func (t *Transport) Send(ctx context.Context, m message.Message) error {
	switch m := m.(type) {
	case message.Reliable:
		return t.writeReliable(ctx, m.Payload)
	case message.Unreliable:
		return t.writeUnreliable(m.Payload)
	case message.Close:
		if t.state.Current().IsTerminal() {
			return errors.ErrConnectionClosed
		}
		code := SessionCodeNormal
		if m.Error {
			code = SessionCodeError
		}
		t.finish(closeState(m), code)
		return nil
	default:
		return errors.Errorf("unknown message type %T", m)
	}
}

func (t *Transport) writeReliable(ctx context.Context, bs []byte) error {
	if t.state.Current().IsTerminal() {
		return errors.ErrConnectionClosed
	}
	t.pending.Add(1)
	defer t.pending.Add(-1)

	n, err := t.writeFrame(ctx, bs)
	if err != nil {
		if errors.Is(err, errors.ErrMalformedMessage) {
			return err
		}
		if t.state.Current().IsTerminal() {
			return errors.ErrConnectionClosed
		}
		return t.fail(errors.Errorf("write: %v: %w", err, errors.ErrTransportInternal))
	}
	t.txBytesCounter.Add(uint64(n))
	return nil
}

func (t *Transport) writeFrame(ctx context.Context, bs []byte) (int, error) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	compressed, err := t.codec.Compress(bs)
	if err != nil {
		return 0, errors.Errorf("compress: %v: %w", err, errors.ErrMalformedMessage)
	}
	if deadline, ok := ctx.Deadline(); ok {
		t.sendStream.SetWriteDeadline(deadline)
		defer t.sendStream.SetWriteDeadline(time.Time{})
	}
	return WriteFrame(t.sendStream, compressed)
}

func (t *Transport) writeUnreliable(bs []byte) error {
	if t.state.Current().IsTerminal() {
		return errors.ErrConnectionClosed
	}
	t.dgMu.Lock()
	compressed, err := t.dgCodec.Compress(bs)
	t.dgMu.Unlock()
	if err != nil {
		return errors.Errorf("compress: %v: %w", err, errors.ErrMalformedMessage)
	}
	n, err := segment.SendTo(t.sess, t.seqNum.Add(1), compressed)
	if err != nil {
		if errors.Is(err, errors.ErrMessageTooLarge) {
			return err
		}
		// 送信できなかったDATAGRAMは失われたものとして扱います。
		t.logger.Debugf(t.ctx, "send datagram: %v", err)
		return nil
	}
	t.txBytesCounter.Add(uint64(n))
	return nil
}

// RTTは、QUICが計測した平滑化RTTを返却します。
//
// まだ計測されていない場合は `false` を返却します。
func (t *Transport) RTT() (time.Duration, bool) {
	return t.rtt.RTT()
}

// Stateは、トランスポートの状態を返却します。
func (t *Transport) State() transport.State {
	return t.state.Current()
}

// TakeUpdatedは、前回の呼び出し以降に状態が遷移したかどうかを返却します。
func (t *Transport) TakeUpdated() bool {
	return t.state.TakeUpdated()
}

// OutboundBacklogは、送信中のメッセージ数を返却します。
//
// QUICの送信バッファはカーネルの外にあるため、ソケットの未送信バイト数は含みません。
func (t *Transport) OutboundBacklog() int {
	return int(t.pending.Load())
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
	return transport.NameWebTransport
}

// Closeは、トランスポートを正常終了します。
func (t *Transport) Close() error {
	t.finish(transport.StateClosed, SessionCodeNormal)
	return nil
}

// Failは、トランスポートを異常終了します。
func (t *Transport) Fail() error {
	t.finish(transport.StateError, SessionCodeError)
	return nil
}

// Dropは、所有者がトランスポートを破棄したことを記録して終了します。
//
// 既に終端状態の場合も資源を解放します。 defer での呼び出しを想定しています。
func (t *Transport) Drop() {
	t.finish(transport.StateDropped, SessionCodeNormal)
	t.teardown(SessionCodeNormal)
}

func (t *Transport) fail(err error) error {
	st := transport.StateForError(err)
	t.logger.Infof(t.ctx, "connection finished with %v: %v", st, err)
	t.finish(st, codeForError(err))
	return err
}

func (t *Transport) finish(st transport.State, code webtransgo.SessionErrorCode) {
	if t.state.Finalize(st) {
		t.teardown(code)
	}
}

func (t *Transport) teardown(code webtransgo.SessionErrorCode) {
	t.teardownOnce.Do(func() {
		t.cancel()
		if err := t.sess.CloseWithError(code, ""); err != nil {
			t.logger.Debugf(t.ctx, "close session: %v", err)
		}
		if err := t.codec.Close(); err != nil {
			t.logger.Debugf(t.ctx, "close codec: %v", err)
		}
		if err := t.dgCodec.Close(); err != nil {
			t.logger.Debugf(t.ctx, "close datagram codec: %v", err)
		}
	})
}

func closeState(m message.Close) transport.State {
	if m.Error {
		return transport.StateError
	}
	return transport.StateClosed
}

func codeForError(err error) webtransgo.SessionErrorCode {
	switch {
	case errors.Is(err, errors.ErrProtocolViolation):
		return SessionCodeProtocolViolation
	case errors.Is(err, errors.ErrDecodeFailure):
		return SessionCodeDecodeFailure
	default:
		return SessionCodeError
	}
}
