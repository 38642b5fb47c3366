// AngelaMos | 2026
// local_test.go

package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRoundTrip(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	key := RecordingKey("u1", time.Date(2025, 1, 17, 9, 0, 0, 0, time.UTC), "audio/webm;codecs=opus")

	assert.True(t, strings.HasPrefix(key, "recordings/u1/2025-01-17/"))
	assert.True(t, strings.HasSuffix(key, ".webm"))

	require.NoError(t, store.Put(ctx, key, "audio/webm", strings.NewReader("voice-bytes")))

	rc, err := store.Get(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "voice-bytes", string(data))

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key))

	_, err = store.Get(ctx, key)
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../outside.webm", "recordings/../../etc/passwd", ""} {
		err := store.Put(context.Background(), key, "audio/webm", strings.NewReader("x"))
		assert.Error(t, err, key)
	}
}

func TestExtensionFor(t *testing.T) {
	tests := map[string]string{
		"audio/webm":             ".webm",
		"audio/ogg; codecs=opus": ".ogg",
		"AUDIO/MPEG":             ".mp3",
		"audio/x-m4a":            ".m4a",
		"audio/wav":              ".wav",
		"application/json":       ".bin",
	}

	for contentType, want := range tests {
		assert.Equal(t, want, extensionFor(contentType), contentType)
	}
}

func TestDiscard(t *testing.T) {
	var store Store = Discard{}

	require.NoError(t, store.Put(context.Background(), "k", "audio/webm", strings.NewReader("x")))
	_, err := store.Get(context.Background(), "k")
	require.ErrorIs(t, err, ErrObjectNotFound)
}
