package client

import (
	"context"

	"github.com/kodiakio/realtime-go/message"
)

type Outbox = outbox

var NewOutbox = newOutbox

func (o *outbox) Push(m message.Message)                          { o.push(m) }
func (o *outbox) Pop(ctx context.Context) (message.Message, bool) { return o.pop(ctx) }
func (o *outbox) Done()                                           { o.done() }
func (o *outbox) Len() int                                        { return o.len() }
