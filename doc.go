/*
Package realtime は、ゲームサーバー向けのリアルタイム通信トランスポート層のパッケージ群です。

WebSocket（順序保証あり・信頼性あり）とWebTransport（ストリームとデータグラム）の 2 つのプロトコルを、
同じメッセージモデル（ message.Reliable 、 message.Unreliable 、 message.Close ）と
同じ状態遷移（ transport.StateMachine ）で扱います。

ここでは接続を受け付ける側と開始する側の一連の流れについて説明します。

# Accept Connections

受信したメッセージをそのまま返すサーバーのサンプルです。

	package main

	import (
		"context"
		"log"
		"net/http"

		"github.com/kodiakio/realtime-go/message"
		"github.com/kodiakio/realtime-go/server"
		"github.com/kodiakio/realtime-go/transport"
	)

	type echo struct {
		conn *server.Conn
	}

	func (e *echo) Received(ctx context.Context, m message.Message) {
		e.conn.Send(ctx, m)
	}

	func (e *echo) Closed(st transport.State) {
		log.Printf("closed in %v", st)
	}

	func main() {
		sv, err := server.New(server.Config{}, server.SessionFactoryFunc(
			func(_ context.Context, conn *server.Conn) (server.Session, error) {
				return &echo{conn: conn}, nil
			}))
		if err != nil {
			log.Fatal(err)
		}
		http.HandleFunc("/ws", sv.ServeWebSocket)
		log.Fatal(http.ListenAndServe(":8080", nil))
	}

WebTransportで受け付ける場合は、 Server.NewWebTransportServer で生成したHTTP/3サーバーのハンドラーから
Server.ServeWebTransport を呼び出します。

# Dial

client.Conn はイベント駆動で動作します。接続処理はバックグラウンドで行われ、
Dispatch を呼び出したゴルーチンで状態が更新されます。
接続中に送信した message.Reliable は接続後に順番に送信され、 message.Unreliable は破棄されます。

接続が完了するまで待つ場合は、 unified.Dialer で unified.Handle を取得します。
どちらも unified.DialPreferred により、WebTransportでの接続に失敗するとWebSocketで接続し直します。

	package main

	import (
		"log"
		"time"

		"github.com/kodiakio/realtime-go/client"
		"github.com/kodiakio/realtime-go/message"
	)

	func main() {
		conn, err := client.Dial(client.Config{URL: "ws://127.0.0.1:8080/ws"})
		if err != nil {
			log.Fatal(err)
		}
		defer conn.Drop()

		conn.Send(message.Reliable{Payload: []byte("hello")})

		frame := time.NewTicker(16 * time.Millisecond)
		defer frame.Stop()
		for range frame.C {
			conn.Dispatch()
			if m, ok := conn.Receive(); ok {
				log.Printf("received %v", m)
				conn.Close()
				return
			}
			if conn.State().IsTerminal() {
				return
			}
		}
	}
*/
package realtime
