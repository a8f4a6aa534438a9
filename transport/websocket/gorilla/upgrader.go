package gorilla

import (
	"net/http"

	gwebsocket "github.com/gorilla/websocket"
)

// Upgradeは、HTTPリクエストをWebSocketにアップグレードします。
//
// 失敗した場合、 Upgrader がHTTPのエラーレスポンスを返却済みです。
func Upgrade(u *gwebsocket.Upgrader, w http.ResponseWriter, r *http.Request) (*Conn, error) {
	wsconn, err := u.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return New(wsconn), nil
}
