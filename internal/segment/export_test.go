package segment

import (
	"testing"
)

func SetMaxPayloadSize(t *testing.T, size int) {
	t.Helper()
	org := maxPayloadSize
	maxPayloadSize = size
	t.Cleanup(func() { maxPayloadSize = org })
}
