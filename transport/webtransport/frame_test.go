package webtransport_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodiakio/realtime-go/errors"
	. "github.com/kodiakio/realtime-go/transport/webtransport"
)

func TestWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteFrame(&buf, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, []byte{0, 0, 0, 3, 1, 2, 3}, buf.Bytes())
}

func TestReadFrame(t *testing.T) {
	tests := []struct {
		name    string
		in      []byte
		max     int
		want    []byte
		wantErr error
	}{
		{name: "success", in: []byte{0, 0, 0, 2, 9, 8}, max: 10, want: []byte{9, 8}},
		{name: "empty payload", in: []byte{0, 0, 0, 0}, max: 10, want: []byte{}},
		{name: "eof", in: []byte{}, max: 10, wantErr: io.EOF},
		{name: "truncated header", in: []byte{0, 0}, max: 10, wantErr: io.ErrUnexpectedEOF},
		{name: "truncated payload", in: []byte{0, 0, 0, 3, 1}, max: 10, wantErr: io.ErrUnexpectedEOF},
		{name: "too large", in: []byte{0, 0, 0, 11}, max: 10, wantErr: errors.ErrMessageTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadFrame(bytes.NewReader(tt.in), tt.max)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFrame_Sequence(t *testing.T) {
	var buf bytes.Buffer
	for _, p := range []string{"a", "bb", "ccc"} {
		_, err := WriteFrame(&buf, []byte(p))
		require.NoError(t, err)
	}
	for _, p := range []string{"a", "bb", "ccc"} {
		got, err := ReadFrame(&buf, 10)
		require.NoError(t, err)
		assert.Equal(t, p, string(got))
	}
	_, err := ReadFrame(&buf, 10)
	assert.ErrorIs(t, err, io.EOF)
}
