package server

import (
	"net/http"
	"net/netip"
	"strings"
)

// RemoteIP は、リクエスト元のIPアドレスを返却します。
//
// リバースプロキシが設定した X-Real-IP ヘッダーが有効なアドレスであればそれを優先し、
// そうでなければ RemoteAddr を使用します。どちらも解析できない場合はゼロ値を返却します。
func RemoteIP(r *http.Request) netip.Addr {
	if v := strings.TrimSpace(r.Header.Get("X-Real-IP")); v != "" {
		if ip, err := netip.ParseAddr(v); err == nil {
			return ip.Unmap()
		}
	}
	if ap, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return ap.Addr().Unmap()
	}
	if ip, err := netip.ParseAddr(r.RemoteAddr); err == nil {
		return ip.Unmap()
	}
	return netip.Addr{}
}
