package metrics

import "time"

var _ SocketStats = nopSocketStats{}

// nopSocketStats は SocketStats の何もしない実装です。
// 統計が取得できない環境（非Linux、TCP接続なし等）で使用されます。
type nopSocketStats struct{}

// NewNopSocketStats は、常にゼロ値を返す SocketStats を返します。
func NewNopSocketStats() SocketStats {
	return nopSocketStats{}
}

func (nopSocketStats) UnsentBytes() int { return 0 }

func (nopSocketStats) RTT() (time.Duration, bool) { return 0, false }
