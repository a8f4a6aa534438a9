//go:build linux

package metrics

import (
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// tcpSocketStats retrieves socket statistics from the kernel on demand.
type tcpSocketStats struct {
	conn *net.TCPConn
}

func newTCPSocketStats(conn *net.TCPConn) SocketStats {
	return &tcpSocketStats{conn: conn}
}

// UnsentBytes returns SIOCOUTQ, the bytes in the send queue not yet sent.
// Any syscall failure reports zero.
func (s *tcpSocketStats) UnsentBytes() int {
	var n int
	s.control(func(fd int) {
		v, err := unix.IoctlGetInt(fd, unix.SIOCOUTQ)
		if err == nil {
			n = v
		}
	})
	return n
}

// RTT returns the smoothed RTT from TCP_INFO.
func (s *tcpSocketStats) RTT() (time.Duration, bool) {
	var (
		rtt time.Duration
		ok  bool
	)
	s.control(func(fd int) {
		ti, err := unix.GetsockoptTCPInfo(fd, unix.IPPROTO_TCP, unix.TCP_INFO)
		if err != nil || ti.Rtt == 0 {
			return
		}
		rtt, ok = time.Duration(ti.Rtt)*time.Microsecond, true
	})
	return rtt, ok
}

func (s *tcpSocketStats) control(f func(fd int)) {
	raw, err := s.conn.SyscallConn()
	if err != nil {
		return
	}
	_ = raw.Control(func(fd uintptr) { f(int(fd)) })
}
