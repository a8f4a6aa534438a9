// Package ch は、コンテキストでキャンセルできるチャンネル操作をまとめたパッケージです。
package ch

import "context"

// WriteOrDone は、 c へ v を送信します。送信前に ctx が終了した場合は v を破棄します。
//
// 送信できた場合は `true` を返します。
func WriteOrDone[T any](ctx context.Context, v T, c chan<- T) bool {
	select {
	case c <- v:
		return true
	case <-ctx.Done():
		return false
	}
}
