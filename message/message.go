/*
Package message は、トランスポート層で送受信するメッセージを定義するパッケージです。

メッセージは Reliable 、 Unreliable 、 Close のいずれかです。
ペイロードはアプリケーション層でエンコードされた不透明なバイト列として扱います。
*/
package message

// Messageは、トランスポート層で送受信するメッセージです。
type Message interface {
	isMessage()
}

// Reliableは、順序と到達が保証されるメッセージです。
type Reliable struct {
	Payload []byte
}

// Unreliableは、ベストエフォートで送信されるメッセージです。
//
// データグラムを扱えないトランスポートでは Reliable と同じ経路で送信されます。
type Unreliable struct {
	Payload []byte
}

// Closeは、コネクションの終了を表すメッセージです。
type Close struct {
	// Error は、異常終了かどうかを表します。
	Error bool
}

func (Reliable) isMessage()   {}
func (Unreliable) isMessage() {}
func (Close) isMessage()      {}

// Payloadは、メッセージのペイロードを返します。
//
// Close メッセージの場合は `false` を返します。
func Payload(m Message) ([]byte, bool) {
	switch m := m.(type) {
	case Reliable:
		return m.Payload, true
	case Unreliable:
		return m.Payload, true
	default:
		return nil, false
	}
}

// IsReliableは、メッセージが Reliable かどうかを返します。
func IsReliable(m Message) bool {
	_, ok := m.(Reliable)
	return ok
}
