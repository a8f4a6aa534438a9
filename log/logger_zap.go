package log

import (
	"context"

	"go.uber.org/zap"
)

type zapLogger struct {
	l *zap.SugaredLogger
}

func (l *zapLogger) with(ctx context.Context) *zap.SugaredLogger {
	lg := l.l
	if id := ConnectionID(ctx); id != "" {
		lg = lg.With("conn_id", id)
	}
	if addr := RemoteAddr(ctx); addr != "" {
		lg = lg.With("remote", addr)
	}
	return lg
}

func (l *zapLogger) Infof(ctx context.Context, format string, args ...any) {
	l.with(ctx).Infof(format, args...)
}

func (l *zapLogger) Warnf(ctx context.Context, format string, args ...any) {
	l.with(ctx).Warnf(format, args...)
}

func (l *zapLogger) Errorf(ctx context.Context, format string, args ...any) {
	l.with(ctx).Errorf(format, args...)
}

func (l *zapLogger) Debugf(ctx context.Context, format string, args ...any) {
	l.with(ctx).Debugf(format, args...)
}

// NewZapは、zap のロガーへ出力するロガーを返却します。
//
// コンテキストにセットされたコネクションIDとピアのアドレスは構造化フィールドとして出力します。
func NewZap(l *zap.Logger) Logger {
	return &zapLogger{
		l: l.WithOptions(zap.AddCallerSkip(1)).Sugar(),
	}
}
