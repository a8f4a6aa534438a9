package gorilla

import (
	"context"
	"io"
	"net"
	"time"

	gwebsocket "github.com/gorilla/websocket"

	"github.com/kodiakio/realtime-go/errors"
	"github.com/kodiakio/realtime-go/transport/websocket"
)

var _ websocket.Conn = (*Conn)(nil)

const writeWait = 10 * time.Second

// Connは、 gorilla/websocketのConnのラッパーです。
type Conn struct {
	wsconn *gwebsocket.Conn
}

// Newは、Connを返却します。
func New(wsconn *gwebsocket.Conn) *Conn {
	return &Conn{
		wsconn: wsconn,
	}
}

// Pingは、ペイロードを格納したWebSocketのPingを送信します。
func (c *Conn) Ping(ctx context.Context, payload []byte) error {
	return wrapWriteError(c.wsconn.WriteControl(gwebsocket.PingMessage, payload, deadline(ctx)))
}

// SetPongHandlerは、Pongを受信した時のハンドラーを設定します。
func (c *Conn) SetPongHandler(f func(payload []byte)) {
	c.wsconn.SetPongHandler(func(appData string) error {
		f([]byte(appData))
		return nil
	})
}

// Readerは、WebSocketのReaderを取得します。
func (c *Conn) Reader(ctx context.Context) (websocket.MessageType, io.Reader, error) {
	tp, rd, err := c.wsconn.NextReader()
	if err != nil {
		return 0, nil, wrapReadError(err)
	}
	switch tp {
	case gwebsocket.BinaryMessage:
		return websocket.MessageBinary, rd, nil
	case gwebsocket.TextMessage:
		return websocket.MessageText, rd, nil
	}
	panic("unreachable")
}

// Writerは、WebSocketのWriterを取得します。
func (c *Conn) Writer(ctx context.Context, tp websocket.MessageType) (io.WriteCloser, error) {
	if dl, ok := ctx.Deadline(); ok {
		if err := c.wsconn.SetWriteDeadline(dl); err != nil {
			return nil, wrapWriteError(err)
		}
	} else if err := c.wsconn.SetWriteDeadline(time.Time{}); err != nil {
		return nil, wrapWriteError(err)
	}

	var gtp int
	switch tp {
	case websocket.MessageBinary:
		gtp = gwebsocket.BinaryMessage
	case websocket.MessageText:
		gtp = gwebsocket.TextMessage
	default:
		panic("unreachable")
	}
	res, err := c.wsconn.NextWriter(gtp)
	if err != nil {
		return nil, wrapWriteError(err)
	}
	return res, nil
}

// Closeは、WebSocketを正常終了のステータスでクローズします。
func (c *Conn) Close() error {
	return c.CloseWithStatus(websocket.StatusNormalClosure, "")
}

// CloseWithStatusは、WebSocketを指定したステータスでクローズします。
//
// 1005 と 1006 はクローズフレームに含められないため、フレームを送信せずにクローズします。
func (c *Conn) CloseWithStatus(code websocket.StatusCode, reason string) error {
	if code != websocket.StatusNoStatusReceived && code != websocket.StatusAbnormalClosure {
		err := c.wsconn.WriteControl(gwebsocket.CloseMessage,
			gwebsocket.FormatCloseMessage(int(code), reason), time.Now().Add(writeWait))
		if err != nil && !errors.Is(err, gwebsocket.ErrCloseSent) && !isErrTransportClosed(err) {
			c.wsconn.Close()
			return wrapWriteError(err)
		}
	}
	return wrapWriteError(c.wsconn.Close())
}

// NetConnは、下位のネットワークコネクションを返却します。
func (c *Conn) NetConn() net.Conn {
	return c.wsconn.NetConn()
}

func deadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		return dl
	}
	return time.Now().Add(writeWait)
}
