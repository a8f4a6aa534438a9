/*
Package client は、接続を開始する側のコネクションを提供するパッケージです。

Conn はイベント駆動で動作します。
接続処理や受信はバックグラウンドのゴルーチンで行われますが、状態の変更はすべて Dispatch を呼び出したゴルーチンで行われるため、
アプリケーションはロックを意識する必要がありません。

	conn, err := client.Dial(client.Config{URL: "ws://localhost:8080/ws"})
	if err != nil {
		return err
	}
	defer conn.Drop()
	conn.Send(message.Reliable{Payload: []byte("hello")}) // 接続後に送信されます
	for range ticker.C {
		conn.Dispatch()
		for m, ok := conn.Receive(); ok; m, ok = conn.Receive() {
			// ...
		}
		if conn.TakeUpdated() && conn.State().IsTerminal() {
			break
		}
	}
*/
package client
