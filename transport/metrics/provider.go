package metrics

import (
	"crypto/tls"
	"net"
	"time"
)

// SocketStats は、ソケットのカーネル統計を取得するインターフェースです。
//
// 実装は並行アクセスに対して安全である必要があります。
type SocketStats interface {
	// UnsentBytes は、カーネルの送信キューに残っているまだ送信されていないバイト数を返します。
	UnsentBytes() int

	// RTT は、カーネルが計測した平滑化ラウンドトリップタイム (SRTT) を返します。
	// 取得できない場合は `false` を返します。
	RTT() (time.Duration, bool)
}

// NewSocketStats は、コネクションに応じた SocketStats を返します。
//
// TLS コネクションの場合は下位のコネクションを参照します。
// TCP 以外のコネクションの場合は常にゼロ値を返す実装を返します。
func NewSocketStats(conn net.Conn) SocketStats {
	for {
		tc, ok := conn.(*tls.Conn)
		if !ok {
			break
		}
		conn = tc.NetConn()
	}
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return NewNopSocketStats()
	}
	return newTCPSocketStats(tcpConn)
}
