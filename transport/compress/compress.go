/*
Package compress は、トランスポート層で使用する圧縮コーデックを提供するパッケージです。

コーデックはコネクションごとに 1 つ生成し、 送信側の圧縮状態と受信側の伸長状態を保持します。
*/
package compress

/*
Config は、 トランスポート層での圧縮に関する設定です。
*/
type Config struct {
	// Enableは圧縮の有効化です。
	//
	// Enableが `false` の場合、その他すべての圧縮設定が無視されます。
	Enable bool

	// Algorithm は、圧縮アルゴリズムです。
	// 空の場合は AlgorithmDeflate が使用されます。
	Algorithm Algorithm

	// Level は、圧縮レベルです。
	// DEFLATE の場合は 0 から 9 、 Zstandard の場合は 1 から 4 （ zstd.EncoderLevel ）です。
	// 0 の場合は DefaultLevel が使用されます。
	Level int

	// DisableContextTakeover は、 DEFLATE 圧縮のコンテキスト引き継ぎ（Context Takeover）の有効無効を設定します。
	DisableContextTakeover bool

	// WindowBits は、DEFLATE 圧縮のコンテキスト引き継ぎ（Context Takeover）におけるウィンドウサイズを表すビット数です。
	// 0 の場合は DefaultWindowBits が使用されます。
	WindowBits int
}

/*
Config のデフォルト値は以下のように定義されています。
*/
const (
	DefaultLevel      = 6
	DefaultWindowBits = 15

	// DefaultMaxMessageSize は、伸長後のメッセージの最大サイズです。
	DefaultMaxMessageSize = 16 << 20
)

// Algorithm は、圧縮アルゴリズムを表します。
type Algorithm string

const (
	// AlgorithmDeflate は、 DEFLATE 圧縮です。
	AlgorithmDeflate Algorithm = "deflate"
	// AlgorithmZstd は、 Zstandard 圧縮です。
	AlgorithmZstd Algorithm = "zstd"
)

// Type は、圧縮の形式を返します。
func (c Config) Type() Type {
	if c.Algorithm == AlgorithmZstd {
		return TypeZstd
	}
	if c.DisableContextTakeover {
		return TypePerMessage
	}

	return TypeContextTakeOver
}

// Type は、圧縮の形式を表します。
type Type string

const (
	// TypePerMessage は、メッセージごとに圧縮することを表します。
	TypePerMessage Type = "per-message"

	// TypeContextTakeOver は、DEFLATE 圧縮のコンテキスト引き継ぎ（Context Takeover）で圧縮することを表します。
	TypeContextTakeOver Type = "context-takeover"

	// TypeZstd は、 Zstandard でメッセージごとに圧縮することを表します。
	TypeZstd Type = "zstd"
)

// WindowSize は、DEFLATE 圧縮のコンテキスト引き継ぎ（Context Takeover）におけるウィンドウサイズを返します。 ( WindowSize = 2 ^ WindowBits )
func (c Config) WindowSize() int {
	return 1 << c.windowBitsOrDefault()
}

// Stateless は、メッセージ間で状態を持たない設定を返します。
//
// 欠落や順序の入れ替わりが起こり得るデータグラムにはこの設定のコーデックを使用します。
func (c Config) Stateless() Config {
	c.DisableContextTakeover = true
	return c
}

func (c Config) levelOrDefault() int {
	if c.Level == 0 {
		return DefaultLevel
	}
	return c.Level
}

func (c Config) windowBitsOrDefault() int {
	if c.WindowBits == 0 {
		return DefaultWindowBits
	}
	return c.WindowBits
}
