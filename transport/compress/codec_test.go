package compress_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodiakio/realtime-go/errors"
	. "github.com/kodiakio/realtime-go/transport/compress"
)

var testConfigs = []struct {
	name   string
	config Config
}{
	{name: "disabled", config: Config{}},
	{name: "per-message", config: Config{Enable: true, DisableContextTakeover: true}},
	{name: "per-message best speed", config: Config{Enable: true, Level: 1, DisableContextTakeover: true}},
	{name: "context-takeover", config: Config{Enable: true, Level: 9}},
	{name: "context-takeover small window", config: Config{Enable: true, WindowBits: 8}},
	{name: "zstd", config: Config{Enable: true, Algorithm: AlgorithmZstd}},
	{name: "zstd fastest", config: Config{Enable: true, Algorithm: AlgorithmZstd, Level: 1}},
}

func TestCodec_RoundTrip(t *testing.T) {
	for _, tt := range testConfigs {
		t.Run(tt.name, func(t *testing.T) {
			sender, err := New(tt.config)
			require.NoError(t, err)
			defer sender.Close()
			receiver, err := New(tt.config)
			require.NoError(t, err)
			defer receiver.Close()

			for i := 0; i < 50; i++ {
				want := []byte(fmt.Sprintf("player %d moved to %d,%d %s", i%4, i*3, i*7, bytes.Repeat([]byte("x"), i)))
				compressed, err := sender.Compress(want)
				require.NoError(t, err)
				got, err := receiver.Decompress(compressed)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestCodec_ContextTakeoverShrinksRepeats(t *testing.T) {
	takeover, err := New(Config{Enable: true})
	require.NoError(t, err)
	perMessage, err := New(Config{Enable: true, DisableContextTakeover: true})
	require.NoError(t, err)

	payload := []byte("the quick brown fox jumps over the lazy dog 0123456789")
	var takeoverSize, perMessageSize int
	for i := 0; i < 10; i++ {
		a, err := takeover.Compress(payload)
		require.NoError(t, err)
		b, err := perMessage.Compress(payload)
		require.NoError(t, err)
		takeoverSize, perMessageSize = len(a), len(b)
	}
	assert.Less(t, takeoverSize, perMessageSize)
}

func TestCodec_DecompressGarbage(t *testing.T) {
	for _, tt := range testConfigs {
		if !tt.config.Enable {
			continue
		}
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)
			require.NoError(t, err)
			defer c.Close()

			_, err = c.Decompress([]byte{0xff, 0xfe, 0xfd, 0xfc, 0xfb, 0xfa})
			assert.ErrorIs(t, err, errors.ErrDecodeFailure)
			if tt.config.Algorithm != AlgorithmZstd {
				_, err = c.Decompress(nil)
				assert.ErrorIs(t, err, errors.ErrDecodeFailure)
			}
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Enable: true, Level: 12})
	assert.Error(t, err)
	_, err = New(Config{Enable: true, Algorithm: AlgorithmZstd, Level: 9})
	assert.Error(t, err)
}

func TestConfig_Type(t *testing.T) {
	assert.Equal(t, TypeContextTakeOver, Config{Enable: true}.Type())
	assert.Equal(t, TypePerMessage, Config{Enable: true}.Stateless().Type())
	assert.Equal(t, TypeZstd, Config{Enable: true, Algorithm: AlgorithmZstd}.Type())
	assert.Equal(t, 1<<15, Config{}.WindowSize())
	assert.Equal(t, 1<<10, Config{WindowBits: 10}.WindowSize())
}
