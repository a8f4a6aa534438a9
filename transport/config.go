package transport

import (
	"time"

	"github.com/kodiakio/realtime-go/errors"
)

// LivenessConfig は、ピアの生存確認に関する設定です。
type LivenessConfig struct {
	// KeepaliveInterval は、受信が無い場合にプローブを送信する間隔です。
	// 0 に設定された場合は、 DefaultKeepaliveInterval の値が使用されます。
	KeepaliveInterval time.Duration

	// UnresponsiveTimeout は、ピアからの応答が無い場合にコネクションを異常終了するまでの時間です。
	// 0 に設定された場合は、 DefaultUnresponsiveTimeout の値が使用されます。
	UnresponsiveTimeout time.Duration
}

/*
LivenessConfig のデフォルト値は以下のように定義されています。
*/
const (
	DefaultKeepaliveInterval   = 10 * time.Second
	DefaultUnresponsiveTimeout = 30 * time.Second

	// MaxRTTSample は、採用する RTT サンプルの上限です。これを超えるサンプルは破棄します。
	MaxRTTSample = 10 * time.Second
)

// Validate は、 UnresponsiveTimeout が KeepaliveInterval の 2 倍以上であることを検証します。
func (c LivenessConfig) Validate() error {
	if c.KeepaliveIntervalOrDefault() <= 0 {
		return errors.Errorf("keepalive interval must be positive: %v", c.KeepaliveInterval)
	}
	if c.UnresponsiveTimeoutOrDefault() < 2*c.KeepaliveIntervalOrDefault() {
		return errors.Errorf("unresponsive timeout %v must be at least twice the keepalive interval %v",
			c.UnresponsiveTimeoutOrDefault(), c.KeepaliveIntervalOrDefault())
	}
	return nil
}

func (c LivenessConfig) KeepaliveIntervalOrDefault() time.Duration {
	if c.KeepaliveInterval == 0 {
		return DefaultKeepaliveInterval
	}
	return c.KeepaliveInterval
}

func (c LivenessConfig) UnresponsiveTimeoutOrDefault() time.Duration {
	if c.UnresponsiveTimeout == 0 {
		return DefaultUnresponsiveTimeout
	}
	return c.UnresponsiveTimeout
}
