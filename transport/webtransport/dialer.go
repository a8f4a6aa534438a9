package webtransport

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	webtransgo "github.com/quic-go/webtransport-go"

	"github.com/kodiakio/realtime-go/errors"
	"github.com/kodiakio/realtime-go/log"
	"github.com/kodiakio/realtime-go/transport"
	"github.com/kodiakio/realtime-go/transport/compress"
)

var defaultDialerConfig = DialerConfig{
	QueueSize:   DefaultQueueSize,
	DialTimeout: 10 * time.Second,
}

// DialerConfigは、Dialerの設定です。
type DialerConfig struct {
	// QueueSize は、受信したメッセージを保持するキューの長さです。
	// 0 に設定された場合は、 DefaultQueueSize の値が使用されます。
	QueueSize int

	// CompressConfig は、ピアに提案する圧縮設定です。
	CompressConfig compress.Config

	// Liveness は、QUICのキープアライブとアイドルタイムアウトに使用します。
	Liveness transport.LivenessConfig

	// Headerは、接続時に送信するHTTPヘッダーです。
	Header http.Header

	// TLSConfigは TLSの設定です。
	TLSConfig *tls.Config

	// DialTimeoutは、QUICハンドシェイクのタイムアウトです。
	// 0に設定された場合は、デフォルト値(10秒)が使用されます。
	DialTimeout time.Duration

	// Clock は、DATAGRAMバッファの期限切れ判定に使用する時計です。
	Clock clock.Clock

	// Logger は、ロガーです。
	Logger log.Logger
}

// Dialerは、WebTransportのトランスポートを接続します。
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

// Dialは、トランスポートを接続します。
//
// rawURL には https スキームのURLを指定します。
// ctx のキャンセルはセッションを終了させるため、接続中は有効なコンテキストを渡してください。
// 圧縮設定はネゴシエーションパラメーターとしてURLのクエリに付与します。
// observer は nil でも構いません。
func (d *Dialer) Dial(ctx context.Context, rawURL string, observer transport.Observer) (*Transport, error) {
	if err := d.Liveness.Validate(); err != nil {
		return nil, errors.Errorf("invalid liveness config: %w", err)
	}
	dialTimeout := d.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = defaultDialerConfig.DialTimeout
	}
	tlsConfig := d.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{}
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
	logger.Debugf(log.WithConnectionID(ctx, connID), "dial webtransport %s", u)

	rtt := NewRTTSample()
	quicConfig := NewQUICConfig(d.Liveness, rtt.Tracer())
	quicConfig.HandshakeIdleTimeout = dialTimeout
	dialer := &webtransgo.Dialer{
		TLSClientConfig: tlsConfig,
		QUICConfig:      quicConfig,
	}
	_, sess, err := dialer.Dial(ctx, u, d.Header)
	if err != nil {
		return nil, errors.Errorf("webtransport dialing failed on [%s]: %w", u, err)
	}

	t, err := New(Config{
		Session:           sess,
		QueueSize:         d.QueueSize,
		CompressConfig:    d.CompressConfig,
		NegotiationParams: params,
		Observer:          observer,
		ConnectionID:      connID,
		RTT:               rtt,
		Clock:             d.Clock,
		Logger:            logger,
	})
	if err != nil {
		sess.CloseWithError(SessionCodeError, "")
		return nil, err
	}
	return t, nil
}
