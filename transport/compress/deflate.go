package compress

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/kodiakio/realtime-go/errors"
)

// deflateCodec は DEFLATE のコーデックです。
//
// windowSize が 0 より大きい場合は直近 windowSize バイトの平文を辞書として引き継ぎます。
type deflateCodec struct {
	level      int
	windowSize int

	writeBuf    bytes.Buffer
	writeWindow bytes.Buffer
	readWindow  bytes.Buffer
	fw          *flate.Writer
}

func newDeflateCodec(level, windowSize int) (*deflateCodec, error) {
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		return nil, errors.Errorf("invalid deflate level %d", level)
	}
	c := &deflateCodec{level: level, windowSize: windowSize}
	if windowSize == 0 {
		fw, err := flate.NewWriter(&c.writeBuf, level)
		if err != nil {
			return nil, err
		}
		c.fw = fw
	}
	return c, nil
}

func (c *deflateCodec) Compress(bs []byte) ([]byte, error) {
	c.writeBuf.Reset()

	fw := c.fw
	if c.windowSize > 0 {
		var err error
		fw, err = flate.NewWriterDict(&c.writeBuf, c.level, c.writeWindow.Bytes())
		if err != nil {
			return nil, err
		}
	} else {
		fw.Reset(&c.writeBuf)
	}
	if _, err := fw.Write(bs); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	if c.windowSize > 0 {
		slide(&c.writeWindow, bs, c.windowSize)
	}

	res := make([]byte, c.writeBuf.Len())
	copy(res, c.writeBuf.Bytes())
	return res, nil
}

func (c *deflateCodec) Decompress(bs []byte) ([]byte, error) {
	var fr io.ReadCloser
	if c.windowSize > 0 {
		fr = flate.NewReaderDict(bytes.NewReader(bs), c.readWindow.Bytes())
	} else {
		fr = flate.NewReader(bytes.NewReader(bs))
	}
	defer fr.Close()

	m, err := readLimited(fr)
	if err != nil {
		return nil, err
	}
	if c.windowSize > 0 {
		slide(&c.readWindow, m, c.windowSize)
	}
	return m, nil
}

func (c *deflateCodec) Close() error {
	return nil
}

// slide は、ウィンドウに平文を追記し、末尾 size バイトだけを残します。
func slide(window *bytes.Buffer, bs []byte, size int) {
	window.Write(bs)
	if size < window.Len() {
		window.Next(window.Len() - size)
	}
	// Next は先頭を読み捨てるだけなので、詰め直して容量の増加を抑える
	if window.Cap() > 4*size {
		rest := append([]byte(nil), window.Bytes()...)
		window.Reset()
		window.Write(rest)
	}
}

func readLimited(rd io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(rd, DefaultMaxMessageSize+1))
	if err != nil {
		return nil, errors.Errorf("inflate: %v: %w", err, errors.ErrDecodeFailure)
	}
	if n > DefaultMaxMessageSize {
		return nil, errors.Errorf("inflated size exceeds %d bytes: %w", DefaultMaxMessageSize, errors.ErrDecodeFailure)
	}
	return buf.Bytes(), nil
}
