package websocket

import (
	"github.com/benbjohnson/clock"

	"github.com/kodiakio/realtime-go/log"
	"github.com/kodiakio/realtime-go/transport"
	"github.com/kodiakio/realtime-go/transport/compress"
	"github.com/kodiakio/realtime-go/transport/metrics"
)

/*
Config は、トランスポートに関する設定です。
*/
type Config struct {
	// Conn は、WebSocketのコネクションです。
	// このフィールドを nil にすることはできません。
	Conn Conn

	// QueueSize は、受信したフレームを保持するキューの長さです。
	// 0 に設定された場合は、 DefaultQueueSize の値が使用されます。
	QueueSize int

	// CompressConfig は、圧縮に関する設定です。
	CompressConfig compress.Config

	// NegotiationParams は、このトランスポートで事前ネゴシエーションされたパラメーターです。
	NegotiationParams transport.NegotiationParams

	// Liveness は、ピアの生存確認に関する設定です。
	Liveness transport.LivenessConfig

	// Observer は、終端状態への遷移を通知する先です。 nil でも構いません。
	Observer transport.Observer

	// ConnectionID は、ログ出力に使用するコネクションIDです。空の場合は採番します。
	ConnectionID string

	// Clock は、生存確認とRTT計測に使用する時計です。 nil の場合は実時間を使用します。
	Clock clock.Clock

	// Logger は、ロガーです。 nil の場合は何も出力しません。
	Logger log.Logger

	// SocketStats は、送信バックログの計算に使用するソケット統計です。
	// nil の場合は Conn.NetConn から生成します。
	SocketStats metrics.SocketStats
}

/*
Config のデフォルト値は以下のように定義されています。
*/
const (
	DefaultQueueSize = 32
)

func (c Config) webSocketConnOrPanic() Conn {
	if c.Conn == nil {
		panic("WebSocketConn should not be nil")
	}
	return c.Conn
}

func (c Config) queueSizeOrDefault() int {
	if c.QueueSize == 0 {
		return DefaultQueueSize
	}
	return c.QueueSize
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

func (c Config) socketStatsOrDefault() metrics.SocketStats {
	if c.SocketStats != nil {
		return c.SocketStats
	}
	if nc := c.Conn.NetConn(); nc != nil {
		return metrics.NewSocketStats(nc)
	}
	return metrics.NewNopSocketStats()
}
