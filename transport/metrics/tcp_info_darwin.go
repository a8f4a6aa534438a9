//go:build darwin

package metrics

import (
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// tcpSocketStats は、TCP_CONNECTION_INFO を介してカーネルから統計を取得します。
type tcpSocketStats struct {
	conn *net.TCPConn
}

func newTCPSocketStats(conn *net.TCPConn) SocketStats {
	return &tcpSocketStats{conn: conn}
}

func (s *tcpSocketStats) info() (*unix.TCPConnectionInfo, bool) {
	raw, err := s.conn.SyscallConn()
	if err != nil {
		return nil, false
	}
	var (
		info   *unix.TCPConnectionInfo
		sysErr error
	)
	if err := raw.Control(func(fd uintptr) {
		info, sysErr = unix.GetsockoptTCPConnectionInfo(int(fd), unix.IPPROTO_TCP, unix.TCP_CONNECTION_INFO)
	}); err != nil || sysErr != nil {
		return nil, false
	}
	return info, true
}

// UnsentBytes は、送信バッファのバイト数を返します。
func (s *tcpSocketStats) UnsentBytes() int {
	info, ok := s.info()
	if !ok {
		return 0
	}
	return int(info.Snd_sbbytes)
}

// RTT は、平滑化 RTT を返します。Darwin では RTT はマイクロ秒単位です。
func (s *tcpSocketStats) RTT() (time.Duration, bool) {
	info, ok := s.info()
	if !ok || info.Srtt == 0 {
		return 0, false
	}
	return time.Duration(info.Srtt) * time.Microsecond, true
}
