package log

import (
	"context"

	"github.com/google/uuid"
)

// Loggerは、realtime-go 内で使用するロガーインターフェースです。
type Logger interface {
	Infof(context.Context, string, ...interface{})
	Warnf(context.Context, string, ...interface{})
	Errorf(context.Context, string, ...interface{})
	Debugf(context.Context, string, ...interface{})
}

var (
	connectionIDKey = "connectionIDKey"
	remoteAddrKey   = "remoteAddrKey"
)

// WithConnectionIDは、コネクションIDをコンテキストにセットします。
//
// コネクションIDはコネクションが生成されたタイミングでセットします。
// ここで設定されたコネクションIDは常にログ出力します。
// idが空の場合は新たに採番します。
func WithConnectionID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = NewConnectionID()
	}
	return context.WithValue(ctx, &connectionIDKey, id)
}

// ConnectionIDは、コンテキストにセットされたコネクションIDを取得します。
func ConnectionID(ctx context.Context) string {
	v, ok := ctx.Value(&connectionIDKey).(string)
	if !ok {
		return ""
	}
	return v
}

// WithRemoteAddrは、ピアのアドレスをコンテキストにセットします。
func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, &remoteAddrKey, addr)
}

// RemoteAddrは、コンテキストにセットされたピアのアドレスを取得します。
func RemoteAddr(ctx context.Context) string {
	v, ok := ctx.Value(&remoteAddrKey).(string)
	if !ok {
		return ""
	}
	return v
}

// NewConnectionIDは、新たなコネクションIDを採番します。
func NewConnectionID() string {
	return uuid.NewString()
}
