/*
Package unified は、WebSocketとWebTransportのトランスポートを 1 つのハンドルとして扱うパッケージです。

Handle はどちらか一方のトランスポートを保持し、すべての操作を保持しているトランスポートに委譲します。
*/
package unified

import (
	"context"
	"time"

	"github.com/kodiakio/realtime-go/message"
	"github.com/kodiakio/realtime-go/transport"
	"github.com/kodiakio/realtime-go/transport/websocket"
	"github.com/kodiakio/realtime-go/transport/webtransport"
)

// Kind は、 Handle が保持しているトランスポートの種類です。
type Kind uint8

const (
	// KindStream は、WebSocketトランスポートです。
	KindStream Kind = iota + 1
	// KindDatagram は、WebTransportトランスポートです。
	KindDatagram
)

func (k Kind) String() string {
	switch k {
	case KindStream:
		return "stream"
	case KindDatagram:
		return "datagram"
	default:
		return "unknown"
	}
}

// Handle は、トランスポートのハンドルです。
//
// ゼロ値は使用できません。 FromWebSocket または FromWebTransport で生成してください。
type Handle struct {
	kind Kind
	ws   *websocket.Transport
	wt   *webtransport.Transport
}

// FromWebSocket は、WebSocketトランスポートのハンドルを返却します。
func FromWebSocket(t *websocket.Transport) *Handle {
	return &Handle{kind: KindStream, ws: t}
}

// FromWebTransport は、WebTransportトランスポートのハンドルを返却します。
func FromWebTransport(t *webtransport.Transport) *Handle {
	return &Handle{kind: KindDatagram, wt: t}
}

// Kind は、保持しているトランスポートの種類を返却します。
func (h *Handle) Kind() Kind {
	return h.kind
}

// Send は、１メッセージを送信します。
//
// WebSocketトランスポートでは message.Unreliable も信頼性のある経路で送信します。
func (h *Handle) Send(ctx context.Context, m message.Message) error {
	switch h.kind {
	case KindStream:
		return h.ws.Send(ctx, m)
	case KindDatagram:
		return h.wt.Send(ctx, m)
	default:
		panic("unreachable")
	}
}

// Recv は、１メッセージを受信します。 1 つのゴルーチンから呼び出してください。
func (h *Handle) Recv(ctx context.Context) (message.Message, error) {
	switch h.kind {
	case KindStream:
		return h.ws.Recv(ctx)
	case KindDatagram:
		return h.wt.Recv(ctx)
	default:
		panic("unreachable")
	}
}

// RTT は、直近のRTTを返却します。まだ計測されていない場合は `false` を返却します。
func (h *Handle) RTT() (time.Duration, bool) {
	switch h.kind {
	case KindStream:
		return h.ws.RTT()
	case KindDatagram:
		return h.wt.RTT()
	default:
		panic("unreachable")
	}
}

// KernelRTT は、ストリームトランスポートの場合にカーネルが計測したTCPのRTTを返却します。
//
// データグラムトランスポートでは常に false を返却します。
func (h *Handle) KernelRTT() (time.Duration, bool) {
	switch h.kind {
	case KindStream:
		return h.ws.KernelRTT()
	case KindDatagram:
		return 0, false
	default:
		panic("unreachable")
	}
}

// State は、トランスポートの状態を返却します。
func (h *Handle) State() transport.State {
	switch h.kind {
	case KindStream:
		return h.ws.State()
	case KindDatagram:
		return h.wt.State()
	default:
		panic("unreachable")
	}
}

// TakeUpdated は、前回の呼び出し以降に状態が遷移したかどうかを返却します。
func (h *Handle) TakeUpdated() bool {
	switch h.kind {
	case KindStream:
		return h.ws.TakeUpdated()
	case KindDatagram:
		return h.wt.TakeUpdated()
	default:
		panic("unreachable")
	}
}

// OutboundBacklog は、送信待ちのメッセージ数とソケットの未送信バイト数の合計を返却します。
func (h *Handle) OutboundBacklog() int {
	switch h.kind {
	case KindStream:
		return h.ws.OutboundBacklog()
	case KindDatagram:
		return h.wt.OutboundBacklog()
	default:
		panic("unreachable")
	}
}

// IsOpen は、送受信が可能な状態かどうかを返却します。
func (h *Handle) IsOpen() bool {
	return h.State() == transport.StateOpen
}

// IsClosed は、正常終了した状態かどうかを返却します。
func (h *Handle) IsClosed() bool {
	return h.State() == transport.StateClosed
}

// IsError は、異常終了した状態かどうかを返却します。
func (h *Handle) IsError() bool {
	return h.State() == transport.StateError
}

// Close は、トランスポートを正常終了します。
func (h *Handle) Close() error {
	switch h.kind {
	case KindStream:
		return h.ws.Close()
	case KindDatagram:
		return h.wt.Close()
	default:
		panic("unreachable")
	}
}

// Fail は、トランスポートを異常終了します。
func (h *Handle) Fail() error {
	switch h.kind {
	case KindStream:
		return h.ws.Fail()
	case KindDatagram:
		return h.wt.Fail()
	default:
		panic("unreachable")
	}
}

// Drop は、ハンドルを破棄します。 defer での呼び出しを想定しています。
func (h *Handle) Drop() {
	switch h.kind {
	case KindStream:
		h.ws.Drop()
	case KindDatagram:
		h.wt.Drop()
	default:
		panic("unreachable")
	}
}

// Name は、トランスポート名を返却します。
func (h *Handle) Name() transport.Name {
	switch h.kind {
	case KindStream:
		return h.ws.Name()
	case KindDatagram:
		return h.wt.Name()
	default:
		panic("unreachable")
	}
}

// Context は、トランスポートのコンテキストを返却します。
func (h *Handle) Context() context.Context {
	switch h.kind {
	case KindStream:
		return h.ws.Context()
	case KindDatagram:
		return h.wt.Context()
	default:
		panic("unreachable")
	}
}

// TxBytesCounterValue は、書き込んだ総バイト数を返却します。
func (h *Handle) TxBytesCounterValue() uint64 {
	switch h.kind {
	case KindStream:
		return h.ws.TxBytesCounterValue()
	case KindDatagram:
		return h.wt.TxBytesCounterValue()
	default:
		panic("unreachable")
	}
}

// RxBytesCounterValue は、読み込んだ総バイト数を返却します。
func (h *Handle) RxBytesCounterValue() uint64 {
	switch h.kind {
	case KindStream:
		return h.ws.RxBytesCounterValue()
	case KindDatagram:
		return h.wt.RxBytesCounterValue()
	default:
		panic("unreachable")
	}
}
