package webtransport

import (
	"encoding/binary"
	"io"

	"github.com/kodiakio/realtime-go/errors"
)

const frameHeaderSize = 4

// WriteFrame は、長さプレフィックス付きのフレームを書き込み、書き込んだバイト数を返却します。
func WriteFrame(wr io.Writer, payload []byte) (int, error) {
	bs := make([]byte, frameHeaderSize, frameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(bs, uint32(len(payload)))
	bs = append(bs, payload...)
	if _, err := wr.Write(bs); err != nil {
		return 0, err
	}
	return len(bs), nil
}

// ReadFrame は、長さプレフィックス付きのフレームを 1 つ読み込みます。
//
// ペイロードが maxSize を超える場合は errors.ErrMessageTooLarge をラップしたエラーを返却します。
func ReadFrame(rd io.Reader, maxSize int) ([]byte, error) {
	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(rd, hdr[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(hdr[:])
	if int64(size) > int64(maxSize) {
		return nil, errors.Errorf("frame of %d bytes exceeds %d: %w", size, maxSize, errors.ErrMessageTooLarge)
	}
	bs := make([]byte, size)
	if _, err := io.ReadFull(rd, bs); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return bs, nil
}
