package webtransport

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	quic "github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/logging"
	webtransgo "github.com/quic-go/webtransport-go"

	"github.com/kodiakio/realtime-go/internal/segment"
	"github.com/kodiakio/realtime-go/log"
	"github.com/kodiakio/realtime-go/transport"
	"github.com/kodiakio/realtime-go/transport/compress"
)

/*
Config は、トランスポートに関する設定です。
*/
type Config struct {
	// Session は、WebTransportのセッションです。
	// このフィールドを nil にすることはできません。
	Session *webtransgo.Session

	// QueueSize は、受信したメッセージを保持するキューの長さです。
	// 0 に設定された場合は、 DefaultQueueSize の値が使用されます。
	QueueSize int

	// CompressConfig は、圧縮に関する設定です。
	CompressConfig compress.Config

	// NegotiationParams は、このトランスポートで事前ネゴシエーションされたパラメーターです。
	NegotiationParams transport.NegotiationParams

	// ReadBufferExpiry は DATAGRAMメッセージのバッファ有効期限です。
	// 0 に設定された場合は、 segment.DefaultReadBufferExpiry が使用されます。
	ReadBufferExpiry time.Duration

	// ReadBufferMaxPending は、同時に保持する受信途中のDATAGRAMメッセージ数の上限です。
	// 上限を超えた場合は最も古いメッセージを破棄します。
	// 0 に設定された場合は、 segment.DefaultMaxPending が使用されます。
	ReadBufferMaxPending int

	// Observer は、終端状態への遷移を通知する先です。 nil でも構いません。
	Observer transport.Observer

	// ConnectionID は、ログ出力に使用するコネクションIDです。空の場合は採番します。
	ConnectionID string

	// RTT は、QUICコネクションのRTTを提供します。 nil の場合、 RTT は計測されません。
	RTT RTTSource

	// Clock は、DATAGRAMバッファの期限切れ判定に使用する時計です。
	Clock clock.Clock

	// Logger は、ロガーです。 nil の場合は何も出力しません。
	Logger log.Logger
}

/*
Config のデフォルト値は以下のように定義されています。
*/
const (
	DefaultQueueSize = 32
)

func (c Config) sessionOrPanic() *webtransgo.Session {
	if c.Session == nil {
		panic("Session should not be nil")
	}
	return c.Session
}

func (c Config) queueSizeOrDefault() int {
	if c.QueueSize == 0 {
		return DefaultQueueSize
	}
	return c.QueueSize
}

func (c Config) readBufferExpiryOrDefault() time.Duration {
	if c.ReadBufferExpiry == 0 {
		return segment.DefaultReadBufferExpiry
	}
	return c.ReadBufferExpiry
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

func (c Config) rttOrDefault() RTTSource {
	if c.RTT == nil {
		return noRTT{}
	}
	return c.RTT
}

// TracerFunc は、 quic.Config.Tracer に設定する関数です。
type TracerFunc func(context.Context, logging.Perspective, quic.ConnectionID) *logging.ConnectionTracer

// NewQUICConfig は、WebTransportで使用するQUICの設定を返却します。
//
// 生存確認はQUICのキープアライブとアイドルタイムアウトに委ねます。
// アイドルタイムアウトで切断された場合、トランスポートは errors.ErrUnresponsive で異常終了します。
func NewQUICConfig(l transport.LivenessConfig, tracer TracerFunc) *quic.Config {
	return &quic.Config{
		EnableDatagrams: true,
		KeepAlivePeriod: l.KeepaliveIntervalOrDefault(),
		MaxIdleTimeout:  l.UnresponsiveTimeoutOrDefault(),
		Tracer:          tracer,
	}
}
