package compress

import (
	"github.com/kodiakio/realtime-go/errors"
)

// Compressor は、送信するペイロードを圧縮します。
type Compressor interface {
	Compress([]byte) ([]byte, error)
}

// Decompressor は、受信したペイロードを伸長します。
//
// 伸長に失敗した場合は errors.ErrDecodeFailure をラップしたエラーを返します。
type Decompressor interface {
	Decompress([]byte) ([]byte, error)
}

// Codec は、コネクションごとに生成される圧縮コーデックです。
//
// Compress 同士、 Decompress 同士は並行に呼び出してはいけません。
// コンテキスト引き継ぎを行う場合、ペイロードは送信順に Decompress する必要があります。
type Codec interface {
	Compressor
	Decompressor

	// Close は、コーデックが保持しているリソースを解放します。
	Close() error
}

// New は、設定に応じた Codec を生成します。
func New(c Config) (Codec, error) {
	if !c.Enable {
		return nopCodec{}, nil
	}
	switch c.Type() {
	case TypePerMessage:
		return newDeflateCodec(c.levelOrDefault(), 0)
	case TypeContextTakeOver:
		return newDeflateCodec(c.levelOrDefault(), c.WindowSize())
	case TypeZstd:
		return newZstdCodec(c.Level)
	default:
		return nil, errors.Errorf("unknown compress type %q", c.Type())
	}
}

type nopCodec struct{}

func (nopCodec) Compress(bs []byte) ([]byte, error)   { return bs, nil }
func (nopCodec) Decompress(bs []byte) ([]byte, error) { return bs, nil }
func (nopCodec) Close() error                         { return nil }
