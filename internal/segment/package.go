// Package segment splits unreliable payloads into QUIC datagrams and
// reassembles them on receipt.
//
// Every datagram carries an 8-byte big-endian header: sequence number
// (uint32), index of the last segment (uint16) and segment index (uint16).
package segment

const (
	headerSize = 8

	// MaxDatagramFrameSize is the largest datagram this package emits.
	MaxDatagramFrameSize = 1196
)

var maxPayloadSize = MaxDatagramFrameSize - headerSize
