/*
Package transport は、リアルタイム通信のトランスポート層で共通して使用する型をまとめたパッケージです。

コネクションの状態遷移は StateMachine で管理します。
終端状態への遷移は Finalize のみが行い、 Observer への終端通知はコネクションごとに必ず 1 回です。
*/
package transport

// Nameは、トランスポート名です。
type Name string

const (
	// WebSocketトランスポート
	NameWebSocket Name = "websocket"
	// WebTransportトランスポート
	NameWebTransport Name = "webtransport"
)
