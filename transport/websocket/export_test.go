package websocket

// HandlePong processes a pong payload as if it had been received by Recv.
func (t *Transport) HandlePong(payload []byte) {
	t.handlePong(payload)
}
