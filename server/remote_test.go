package server_test

import (
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/kodiakio/realtime-go/server"
)

func TestRemoteIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		realIP     string
		want       netip.Addr
	}{
		{name: "remote addr", remoteAddr: "192.0.2.1:1234", want: netip.MustParseAddr("192.0.2.1")},
		{name: "ipv6 remote addr", remoteAddr: "[2001:db8::1]:1234", want: netip.MustParseAddr("2001:db8::1")},
		{name: "mapped", remoteAddr: "[::ffff:192.0.2.1]:1234", want: netip.MustParseAddr("192.0.2.1")},
		{name: "without port", remoteAddr: "192.0.2.1", want: netip.MustParseAddr("192.0.2.1")},
		{name: "real ip", remoteAddr: "10.0.0.1:1234", realIP: " 198.51.100.7 ", want: netip.MustParseAddr("198.51.100.7")},
		{name: "invalid real ip", remoteAddr: "10.0.0.1:1234", realIP: "unknown", want: netip.MustParseAddr("10.0.0.1")},
		{name: "unparsable", remoteAddr: "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, RemoteIP(r))
		})
	}
}
