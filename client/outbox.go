package client

import (
	"context"
	"sync"

	"github.com/kodiakio/realtime-go/message"
)

// outbox は、送信ゴルーチンへ渡すメッセージのキューです。
type outbox struct {
	mu       sync.Mutex
	items    []message.Message
	inflight int
	notify   chan struct{}
}

func newOutbox() *outbox {
	return &outbox{notify: make(chan struct{}, 1)}
}

func (o *outbox) push(m message.Message) {
	o.mu.Lock()
	o.items = append(o.items, m)
	o.mu.Unlock()
	select {
	case o.notify <- struct{}{}:
	default:
	}
}

// pop は、先頭のメッセージを取り出します。キューが空の場合は追加されるまで待ちます。
//
// 取り出したメッセージは done を呼び出すまで len に含まれます。
func (o *outbox) pop(ctx context.Context) (message.Message, bool) {
	for {
		o.mu.Lock()
		if len(o.items) > 0 {
			m := o.items[0]
			o.items[0] = nil
			o.items = o.items[1:]
			o.inflight++
			o.mu.Unlock()
			return m, true
		}
		o.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case <-o.notify:
		}
	}
}

func (o *outbox) done() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inflight--
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items) + o.inflight
}
