package client

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/kodiakio/realtime-go/errors"
	"github.com/kodiakio/realtime-go/log"
	"github.com/kodiakio/realtime-go/transport"
	"github.com/kodiakio/realtime-go/transport/compress"
)

// DefaultDialTimeout は、 Config.DialTimeout のデフォルト値です。
const DefaultDialTimeout = 10 * time.Second

// Config は、 Conn の設定です。
type Config struct {
	// URL は、WebSocketの接続先（ws または wss）です。
	URL string

	// WebTransportURL は、WebTransportの接続先（https）です。
	// PreferDatagrams が `true` の場合のみ使用します。
	WebTransportURL string

	// PreferDatagrams が `true` の場合、WebTransportでの接続を先に試みます。
	// 失敗した場合はアプリケーションに通知せずWebSocketで接続します。
	PreferDatagrams bool

	// Compress は、ピアに提案する圧縮設定です。
	Compress compress.Config

	// Liveness は、WebSocketのPing間隔とWebTransportのアイドルタイムアウトに使用します。
	Liveness transport.LivenessConfig

	// Header は、接続時に送信するHTTPヘッダーです。
	Header http.Header

	// TLSConfig は、TLSの設定です。
	TLSConfig *tls.Config

	// DialTimeout は、接続のタイムアウトです。
	// 0 に設定された場合は、 DefaultDialTimeout の値が使用されます。
	DialTimeout time.Duration

	// Observer は、終端状態への遷移を受け取ります。 nil でも構いません。
	//
	// Observer は Dispatch または Close などのメソッドを呼び出したゴルーチンから呼び出されます。
	Observer transport.Observer

	// Clock は、Ping間隔の計測に使用する時計です。
	Clock clock.Clock

	// Logger は、ロガーです。
	Logger log.Logger
}

func (c Config) validate() error {
	if c.URL == "" {
		return errors.New("websocket url is required")
	}
	if c.PreferDatagrams && c.WebTransportURL == "" {
		return errors.New("webtransport url is required when datagrams are preferred")
	}
	if err := c.Liveness.Validate(); err != nil {
		return errors.Errorf("invalid liveness config: %w", err)
	}
	return nil
}

func (c Config) dialTimeoutOrDefault() time.Duration {
	if c.DialTimeout == 0 {
		return DefaultDialTimeout
	}
	return c.DialTimeout
}

func (c Config) clockOrDefault() clock.Clock {
	if c.Clock == nil {
		return clock.New()
	}
	return c.Clock
}

func (c Config) loggerOrDefault() log.Logger {
	if c.Logger == nil {
		return log.NewNop()
	}
	return c.Logger
}
