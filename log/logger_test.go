package log_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	. "github.com/kodiakio/realtime-go/log"
)

func TestConnectionID(t *testing.T) {
	ctx := context.Background()
	require.Empty(t, ConnectionID(ctx))

	ctx = WithConnectionID(ctx, "conn-1")
	require.Equal(t, "conn-1", ConnectionID(ctx))

	ctx = WithConnectionID(context.Background(), "")
	_, err := uuid.Parse(ConnectionID(ctx))
	require.NoError(t, err)
}

func TestRemoteAddr(t *testing.T) {
	ctx := context.Background()
	require.Empty(t, RemoteAddr(ctx))
	ctx = WithRemoteAddr(ctx, "192.0.2.1")
	require.Equal(t, "192.0.2.1", RemoteAddr(ctx))
}
