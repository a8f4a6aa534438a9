package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrTransportは、realtime-go で定義されている基底エラーです。
	ErrTransport = errors.New("realtime")
	// ErrConnectionClosedは、コネクションが終端状態になった後に読み書きをした場合のエラーです。
	ErrConnectionClosed = fmt.Errorf("closed connection: %w", ErrTransport)
	// ErrTransportInternalは、下位のソケットやセッションで発生したエラーです。
	ErrTransportInternal = fmt.Errorf("transport internal: %w", ErrTransport)
	// ErrUnresponsiveは、一定時間ピアから応答が無かった場合のエラーです。
	ErrUnresponsive = fmt.Errorf("peer unresponsive: %w", ErrTransport)
	// ErrUnexpectedClosureは、クローズフレームもエラーも無く受信ストリームが終了した場合のエラーです。
	ErrUnexpectedClosure = fmt.Errorf("unexpected closure: %w", ErrTransport)
	// ErrProtocolViolationは、ピアが許可されていない種別のフレームを送信した場合のエラーです。
	ErrProtocolViolation = fmt.Errorf("protocol violation: %w", ErrTransport)
	// ErrMalformedMessageは、メッセージのエンコードやデコードに失敗した時のエラーです。
	ErrMalformedMessage = fmt.Errorf("malformed message: %w", ErrTransport)
	// ErrDecodeFailureは、受信したペイロードの伸長に失敗した場合のエラーです。
	//
	// このエラーで終了したコネクションは Error ではなく Closed になります。
	ErrDecodeFailure = fmt.Errorf("decode failure: %w", ErrMalformedMessage)
	// ErrMessageTooLargeは、メッセージが大きすぎる場合のエラーです。
	ErrMessageTooLarge = fmt.Errorf("message is too large: %w", ErrMalformedMessage)
	// ErrAdmissionRefusedは、アドミッションゲートによって接続やメッセージが拒否された場合のエラーです。
	ErrAdmissionRefused = fmt.Errorf("admission refused: %w", ErrTransport)
)

func New(text string) error {
	return errors.New(text)
}

func Errorf(format string, a ...any) error {
	return fmt.Errorf(format, a...)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}
