package gorilla

import (
	"context"
	"net/http/httputil"

	gwebsocket "github.com/gorilla/websocket"

	"github.com/kodiakio/realtime-go/errors"
	"github.com/kodiakio/realtime-go/transport/websocket"
)

func init() {
	websocket.RegisterDialFunc(Dial)
}

// Dialは、WebSocketのコネクションを開きます。
func Dial(ctx context.Context, c websocket.DialConfig) (websocket.Conn, error) {
	d := gwebsocket.Dialer{
		Proxy:            c.Proxy,
		TLSClientConfig:  c.TLSConfig,
		HandshakeTimeout: c.DialTimeout,
		NetDialContext:   c.DialContext,
	}
	wsconn, resp, err := d.DialContext(ctx, c.URL, c.Header)
	if err != nil {
		if resp == nil {
			return nil, err
		}
		dump, _ := httputil.DumpResponse(resp, true)
		return nil, errors.Errorf("dial failed with error response[%s]: %w", dump, err)
	}
	return New(wsconn), nil
}
