package server

import (
	"net/http"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/kodiakio/realtime-go/admission"
	"github.com/kodiakio/realtime-go/log"
	"github.com/kodiakio/realtime-go/transport"
	"github.com/kodiakio/realtime-go/transport/compress"
	"github.com/kodiakio/realtime-go/transport/metrics"
)

/*
Config は、 Server の設定です。
*/
type Config struct {
	// Liveness は、ピアの生存確認に関する設定です。
	Liveness transport.LivenessConfig

	// Compress は、圧縮の基本設定です。
	// 圧縮の有無と形式は、接続要求のネゴシエーションパラメーターで決まります。
	Compress compress.Config

	// QueueSize は、受信したメッセージを保持するキューの長さです。
	QueueSize int

	// Gate は、接続と受信メッセージ量を制限するアドミッションゲートです。
	// nil の場合は制限しません。
	Gate admission.Gate

	// AdmissionInterval は、受信メッセージ量をゲートへ問い合わせる間隔です。
	// 0 に設定された場合は、 DefaultAdmissionInterval の値が使用されます。
	AdmissionInterval time.Duration

	// CheckOrigin は、Originヘッダーを検証します。 nil の場合は同一オリジンのみ許可します。
	CheckOrigin func(r *http.Request) bool

	// Logger は、ロガーです。 nil の場合は何も出力しません。
	Logger log.Logger

	// Metrics は、メトリクスの記録先です。 nil の場合は記録しません。
	Metrics *metrics.Collector

	// Clock は、生存確認とアドミッションの間隔に使用する時計です。
	Clock clock.Clock
}

/*
Config のデフォルト値は以下のように定義されています。
*/
const (
	DefaultAdmissionInterval = time.Second
)

func (c Config) gateOrDefault() admission.Gate {
	if c.Gate == nil {
		return admission.Allow
	}
	return c.Gate
}

func (c Config) admissionIntervalOrDefault() time.Duration {
	if c.AdmissionInterval == 0 {
		return DefaultAdmissionInterval
	}
	return c.AdmissionInterval
}

func (c Config) loggerOrDefault() log.Logger {
	if c.Logger == nil {
		return log.NewNop()
	}
	return c.Logger
}

func (c Config) clockOrDefault() clock.Clock {
	if c.Clock == nil {
		return clock.New()
	}
	return c.Clock
}
