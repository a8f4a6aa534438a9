package unified

import (
	"context"

	"github.com/kodiakio/realtime-go/errors"
	"github.com/kodiakio/realtime-go/log"
	"github.com/kodiakio/realtime-go/transport"
	"github.com/kodiakio/realtime-go/transport/websocket"
	"github.com/kodiakio/realtime-go/transport/webtransport"
)

// StreamDialer は、WebSocketトランスポートを接続します。 *websocket.Dialer が実装します。
type StreamDialer interface {
	Dial(ctx context.Context, rawURL string, observer transport.Observer) (*websocket.Transport, error)
}

// DatagramDialer は、WebTransportトランスポートを接続します。 *webtransport.Dialer が実装します。
type DatagramDialer interface {
	Dial(ctx context.Context, rawURL string, observer transport.Observer) (*webtransport.Transport, error)
}

// Target は、接続先です。
type Target struct {
	// StreamURL は、WebSocketの接続先URL（ws または wss）です。
	StreamURL string

	// DatagramURL は、WebTransportの接続先URL（https）です。空の場合はWebTransportを使用しません。
	DatagramURL string

	// PreferDatagrams が `true` の場合、WebTransportでの接続を先に試みます。
	PreferDatagrams bool
}

// Dialer は、 Handle を接続します。
//
// WebTransportでの接続に失敗した場合は、アプリケーションに通知せずWebSocketで接続し直します。
type Dialer struct {
	Stream   StreamDialer
	Datagram DatagramDialer
	Logger   log.Logger
}

// Dial は、 target に接続した Handle を返却します。 observer は nil でも構いません。
func (d *Dialer) Dial(ctx context.Context, target Target, observer transport.Observer) (*Handle, error) {
	var datagram func(context.Context) (*Handle, error)
	if target.PreferDatagrams && target.DatagramURL != "" && d.Datagram != nil {
		datagram = func(ctx context.Context) (*Handle, error) {
			t, err := d.Datagram.Dial(ctx, target.DatagramURL, observer)
			if err != nil {
				return nil, err
			}
			return FromWebTransport(t), nil
		}
	}
	var stream func(context.Context) (*Handle, error)
	if target.StreamURL != "" && d.Stream != nil {
		stream = func(ctx context.Context) (*Handle, error) {
			t, err := d.Stream.Dial(ctx, target.StreamURL, observer)
			if err != nil {
				return nil, err
			}
			return FromWebSocket(t), nil
		}
	}
	return DialPreferred(ctx, d.Logger, datagram, stream)
}

// DialPreferred は、 datagram で接続を試み、失敗した場合は stream で接続し直します。
//
// datagram が nil の場合は stream のみを使用します。
// datagram の失敗はログに出力するだけで、呼び出し元には stream の結果のみを返却します。
// ただし ctx が終了している場合は、 stream を試みずに datagram のエラーを返却します。
func DialPreferred[T any](ctx context.Context, logger log.Logger, datagram, stream func(context.Context) (T, error)) (T, error) {
	var zero T
	if logger == nil {
		logger = log.NewNop()
	}

	var datagramErr error
	if datagram != nil {
		t, err := datagram(ctx)
		if err == nil {
			return t, nil
		}
		if ctx.Err() != nil {
			return zero, err
		}
		datagramErr = err
		logger.Infof(ctx, "webtransport unavailable, fall back to websocket: %v", err)
	}

	if stream == nil {
		if datagramErr != nil {
			return zero, datagramErr
		}
		return zero, errors.New("no transport available for target")
	}
	return stream(ctx)
}
