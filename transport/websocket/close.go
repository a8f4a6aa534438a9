package websocket

import "github.com/kodiakio/realtime-go/message"

// StatusCode は、WebSocketのクローズステータスコードです。
type StatusCode int

// RFC 6455 7.4.1
const (
	StatusNormalClosure           StatusCode = 1000
	StatusGoingAway               StatusCode = 1001
	StatusProtocolError           StatusCode = 1002
	StatusUnsupportedData         StatusCode = 1003
	StatusNoStatusReceived        StatusCode = 1005
	StatusAbnormalClosure         StatusCode = 1006
	StatusInvalidFramePayloadData StatusCode = 1007
	StatusPolicyViolation         StatusCode = 1008
	StatusMessageTooBig           StatusCode = 1009
	StatusMandatoryExtension      StatusCode = 1010
	StatusInternalError           StatusCode = 1011
)

// IsErrorStatus は、ステータスコードが異常終了を表すかどうかを返します。
func IsErrorStatus(code StatusCode) bool {
	switch code {
	case StatusProtocolError,
		StatusInvalidFramePayloadData,
		StatusUnsupportedData,
		StatusMessageTooBig,
		StatusPolicyViolation,
		StatusInternalError:
		return true
	default:
		return false
	}
}

// CloseMessage は、受信したクローズステータスコードに対応する Close メッセージを返します。
func CloseMessage(code StatusCode) message.Close {
	return message.Close{Error: IsErrorStatus(code)}
}

// StatusFor は、 Close メッセージを送信する時のステータスコードを返します。
func StatusFor(m message.Close) StatusCode {
	if m.Error {
		return StatusInternalError
	}
	return StatusNormalClosure
}
