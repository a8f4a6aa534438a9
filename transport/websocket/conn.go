package websocket

import (
	"context"
	"fmt"
	"io"
	"net"
)

// MessageTypeは、WebSocketのメッセージタイプを表します。
type MessageType int

const (
	MessageText   MessageType = iota + 1 // テキストメッセージ
	MessageBinary                        // バイナリメッセージ
)

//go:generate mockgen -destination=websocketmock/conn.go -package=websocketmock . Conn

// Connは、WebSocketのコネクションインターフェースです。
//
// Reader は同時に 1 つのゴルーチンからのみ呼び出されます。
// Writer も同時に 1 つのゴルーチンからのみ呼び出されますが、 Ping と CloseWithStatus は Writer と並行に呼び出されます。
type Conn interface {
	// Readerは、WebSocketメッセージのReaderを返却します。
	//
	// クローズフレームを受信した場合は *CloseError を返します。
	// クローズフレーム無しでストリームが終了した場合は errors.ErrUnexpectedClosure をラップしたエラーを返します。
	Reader(context.Context) (MessageType, io.Reader, error)

	// Writerは、WebSocketメッセージのWriterを返却します。
	Writer(context.Context, MessageType) (io.WriteCloser, error)

	// Pingは、ペイロードを格納したPingを送信します。
	Ping(ctx context.Context, payload []byte) error

	// SetPongHandlerは、Pongを受信した時に呼び出されるハンドラーを設定します。
	//
	// ハンドラーは Reader を呼び出しているゴルーチンから呼び出されます。
	SetPongHandler(func(payload []byte))

	// CloseWithStatusは、クローズフレームを送信してコネクションをクローズします。
	CloseWithStatus(code StatusCode, reason string) error

	// Closeは、コネクションをクローズします。
	Close() error

	// NetConnは、下位のネットワークコネクションを返却します。取得できない場合は nil を返却します。
	NetConn() net.Conn
}

// CloseErrorは、ピアからクローズフレームを受信したことを表すエラーです。
type CloseError struct {
	Code   StatusCode
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("websocket closed: status=%d reason=%q", int(e.Code), e.Reason)
}
