/*
Package server は、リアルタイム通信のコネクションを受け付けるパッケージです。

Server は WebSocket と WebTransport のアップグレード要求を http.Handler として受け付けます。
アップグレード前にアドミッションゲートへ問い合わせ、拒否された場合は HTTP 429 を返却します。
受け付けたコネクションごとに 1 つのゴルーチンがメッセージを受信し、 Session へ渡します。
*/
package server
