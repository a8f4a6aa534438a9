//go:build !linux && !darwin

package metrics

import "net"

func newTCPSocketStats(*net.TCPConn) SocketStats {
	return NewNopSocketStats()
}
