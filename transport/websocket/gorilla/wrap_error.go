package gorilla

import (
	"io"
	"net"
	"os"
	"syscall"

	gwebsocket "github.com/gorilla/websocket"

	"github.com/kodiakio/realtime-go/errors"
	"github.com/kodiakio/realtime-go/transport/websocket"
)

// wrapReadError は、受信時のエラーを websocket.Conn の規約に沿ったエラーに変換します。
func wrapReadError(err error) error {
	if err == nil {
		return nil
	}
	var closeErr *gwebsocket.CloseError
	if errors.As(err, &closeErr) {
		if closeErr.Code == gwebsocket.CloseAbnormalClosure {
			return errors.Errorf("gorilla: %v: %w", err, errors.ErrUnexpectedClosure)
		}
		return &websocket.CloseError{Code: websocket.StatusCode(closeErr.Code), Reason: closeErr.Text}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || isErrTransportClosed(err) {
		return errors.Errorf("gorilla: %v: %w", err, errors.ErrUnexpectedClosure)
	}
	return errors.Errorf("gorilla: %v: %w", err, errors.ErrTransportInternal)
}

func wrapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gwebsocket.ErrCloseSent) || isErrTransportClosed(err) {
		return errors.Errorf("gorilla: %v: %w", err, errors.ErrConnectionClosed)
	}
	return errors.Errorf("gorilla: %v: %w", err, errors.ErrTransportInternal)
}

func isErrTransportClosed(err error) bool {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		var sysErr *os.SyscallError
		if errors.As(opErr.Err, &sysErr) {
			return sysErr.Err.Error() == "connection reset by peer"
		}
	}
	return false
}
