package websocket

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/kodiakio/realtime-go/errors"
	"github.com/kodiakio/realtime-go/log"
	"github.com/kodiakio/realtime-go/transport"
	"github.com/kodiakio/realtime-go/transport/compress"
)

// DialConfigは、DialFuncに渡す接続設定です。
type DialConfig struct {
	// URLは、接続先URLです。
	URL string
	// Headerは、接続時に送信するHTTPヘッダーです。
	Header http.Header
	// TLSConfigは、TLS設定です。
	TLSConfig *tls.Config

	// DialContextはWebSocketトランスポートの内部で使用するDialContextを設定します。
	DialContext func(ctx context.Context, network, addr string) (net.Conn, error)

	// Proxyは、HTTPプロキシを設定します。
	//
	// http.Transport.Proxyを参照してください。
	Proxy func(*http.Request) (*url.URL, error)

	// DialTimeoutは、WebSocket接続のタイムアウトです。
	// 0に設定された場合、タイムアウトは設定されません。
	DialTimeout time.Duration
}

// DialFunc はConnを返却する関数です。
//
// 実装したDialFuncは、RegisterDialFuncを使用して登録します。
type DialFunc func(ctx context.Context, c DialConfig) (Conn, error)

var dialFunc DialFunc

// RegisterDialFuncは、DialFuncを登録します。
//
// DialFuncを登録すると、WebSocketトランスポートはライブラリ内で登録されたDialFuncを使用します。
func RegisterDialFunc(f DialFunc) {
	if dialFunc != nil {
		panic("already registered dialFunc")
	}
	dialFunc = f
}

var defaultDialerConfig = DialerConfig{
	QueueSize:   DefaultQueueSize,
	DialTimeout: 10 * time.Second,
}

// DialerConfigはDialerの設定です。
type DialerConfig struct {
	// QueueSize は、受信したフレームを保持するキューの長さです。
	// 0 に設定された場合は、 DefaultQueueSize の値が使用されます。
	QueueSize int

	// CompressConfig は、ピアに提案する圧縮設定です。
	CompressConfig compress.Config

	// Liveness は、ピアの生存確認に関する設定です。
	Liveness transport.LivenessConfig

	// Headerは、接続時に送信するHTTPヘッダーです。
	Header http.Header

	// TLSConfigは、TLS設定です。
	TLSConfig *tls.Config

	// DialContextはWebSocketトランスポートの内部で使用するDialContextを設定します。
	DialContext func(ctx context.Context, network, addr string) (net.Conn, error)

	// Proxyは、HTTPプロキシを設定します。
	Proxy func(*http.Request) (*url.URL, error)

	// DialTimeoutは、WebSocket接続のタイムアウトです。
	// 0に設定された場合は、デフォルト値(10秒)が使用されます。
	DialTimeout time.Duration

	// Clock は、生存確認に使用する時計です。
	Clock clock.Clock

	// Logger は、ロガーです。
	Logger log.Logger
}

// Dialerは、トランスポート接続を開始します。
type Dialer struct {
	DialerConfig
}

// NewDefaultDialerは、デフォルト設定のDialerを返却します。
func NewDefaultDialer() *Dialer {
	return NewDialer(defaultDialerConfig)
}

// NewDialerは、Dialerを返却します。
func NewDialer(c DialerConfig) *Dialer {
	return &Dialer{DialerConfig: c}
}

// Dialは、トランスポート接続を開始します。
//
// 圧縮設定はネゴシエーションパラメーターとしてURLのクエリに付与します。
// observer は nil でも構いません。
func (d *Dialer) Dial(ctx context.Context, rawURL string, observer transport.Observer) (*Transport, error) {
	if dialFunc == nil {
		return nil, errors.New("no websocket dial func registered")
	}
	dialTimeout := d.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = defaultDialerConfig.DialTimeout
	}
	queueSize := d.QueueSize
	if queueSize == 0 {
		queueSize = defaultDialerConfig.QueueSize
	}

	params := transport.NegotiationParamsFor(d.CompressConfig)
	u, err := params.AppendToURL(rawURL)
	if err != nil {
		return nil, errors.Errorf("append negotiation params: %w", err)
	}

	connID := log.NewConnectionID()
	logger := d.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	logger.Debugf(log.WithConnectionID(ctx, connID), "dial websocket %s", u)

	wsconn, err := dialFunc(ctx, DialConfig{
		URL:         u,
		Header:      d.Header,
		TLSConfig:   d.TLSConfig,
		DialContext: d.DialContext,
		Proxy:       d.Proxy,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, errors.Errorf("dial websocket: %w", err)
	}

	t, err := New(Config{
		Conn:              wsconn,
		QueueSize:         queueSize,
		CompressConfig:    d.CompressConfig,
		NegotiationParams: params,
		Liveness:          d.Liveness,
		Observer:          observer,
		ConnectionID:      connID,
		Clock:             d.Clock,
		Logger:            logger,
	})
	if err != nil {
		wsconn.Close()
		return nil, err
	}
	return t, nil
}
