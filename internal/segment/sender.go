package segment

import (
	"encoding/binary"
	"math"

	"github.com/kodiakio/realtime-go/errors"
)

// Sender は、データグラムを 1 つ送信します。 *webtransport.Session が実装します。
type Sender interface {
	SendDatagram([]byte) error
}

// SendTo は、 payload を 1 つ以上のセグメントに分割して送信し、ヘッダーを含む送信バイト数を返します。
//
// セグメント数が 65536 を超える場合は errors.ErrMessageTooLarge を返し、何も送信しません。
func SendTo(s Sender, seq uint32, payload []byte) (int, error) {
	last := 0
	if len(payload) > 0 {
		last = (len(payload) - 1) / maxPayloadSize
	}
	if last > math.MaxUint16 {
		return 0, errors.Errorf("%d segments exceed %d: %w", last+1, math.MaxUint16+1, errors.ErrMessageTooLarge)
	}

	var total int
	for idx := 0; idx <= last; idx++ {
		chunk := payload[idx*maxPayloadSize : min((idx+1)*maxPayloadSize, len(payload))]
		n, err := sendSegment(s, header{seq: seq, maxIndex: uint16(last), index: uint16(idx)}, chunk)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

type header struct {
	seq      uint32
	maxIndex uint16
	index    uint16
}

func (h header) put(bs []byte) {
	binary.BigEndian.PutUint32(bs[0:4], h.seq)
	binary.BigEndian.PutUint16(bs[4:6], h.maxIndex)
	binary.BigEndian.PutUint16(bs[6:8], h.index)
}

func parseHeader(bs []byte) header {
	return header{
		seq:      binary.BigEndian.Uint32(bs[0:4]),
		maxIndex: binary.BigEndian.Uint16(bs[4:6]),
		index:    binary.BigEndian.Uint16(bs[6:8]),
	}
}

func sendSegment(s Sender, h header, chunk []byte) (int, error) {
	bs := make([]byte, headerSize+len(chunk))
	h.put(bs)
	copy(bs[headerSize:], chunk)
	if err := s.SendDatagram(bs); err != nil {
		return 0, err
	}
	return len(bs), nil
}
