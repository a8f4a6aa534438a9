package compress

import (
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/kodiakio/realtime-go/errors"
)

type zstdCodec struct {
	encMu sync.Mutex
	enc   *zstd.Encoder

	decMu sync.Mutex
	dec   *zstd.Decoder
}

func newZstdCodec(level int) (*zstdCodec, error) {
	lv := zstd.SpeedDefault
	if level != 0 {
		lv = zstd.EncoderLevel(level)
		if lv < zstd.SpeedFastest || lv > zstd.SpeedBestCompression {
			return nil, errors.Errorf("invalid zstd level %d", level)
		}
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(lv), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(DefaultMaxMessageSize),
	)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &zstdCodec{enc: enc, dec: dec}, nil
}

func (c *zstdCodec) Compress(bs []byte) ([]byte, error) {
	c.encMu.Lock()
	defer c.encMu.Unlock()
	if c.enc == nil {
		return nil, errors.ErrConnectionClosed
	}
	return c.enc.EncodeAll(bs, nil), nil
}

func (c *zstdCodec) Decompress(bs []byte) ([]byte, error) {
	c.decMu.Lock()
	defer c.decMu.Unlock()
	if c.dec == nil {
		return nil, errors.ErrConnectionClosed
	}
	m, err := c.dec.DecodeAll(bs, nil)
	if err != nil {
		return nil, errors.Errorf("zstd: %v: %w", err, errors.ErrDecodeFailure)
	}
	return m, nil
}

func (c *zstdCodec) Close() error {
	c.decMu.Lock()
	if c.dec != nil {
		c.dec.Close()
		c.dec = nil
	}
	c.decMu.Unlock()

	c.encMu.Lock()
	defer c.encMu.Unlock()
	if c.enc == nil {
		return nil
	}
	err := c.enc.Close()
	c.enc = nil
	return err
}
