/*
Package websocket は、 WebSocket を使用したトランスポートを提供するパッケージです。

バイナリフレーム 1 つがメッセージ 1 つに対応します。
Unreliable メッセージも Reliable と同じく順序付きで送信します。
ピアの生存確認には、送信時刻を格納した Ping フレームを使用します。
*/
package websocket

import (
	"bytes"
	"sync"

	"github.com/kodiakio/realtime-go/transport"
)

/*
Name は、本トランスポートの名称です。
*/
const Name = transport.NameWebSocket

const (
	bufferSize = 4096
)

var bufferPool = sync.Pool{New: func() interface{} {
	return bytes.NewBuffer(make([]byte, 0, bufferSize))
}}
