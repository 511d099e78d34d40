package gateway

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnwrapRawPassthrough(t *testing.T) {
	require.Equal(t, "991130", unwrapRaw("991130"))
	require.Equal(t, convUUID, unwrapRaw(convUUID))
	require.Equal(t, "front-desk", unwrapRaw("  front-desk  "))
}

func TestUnwrapRawTrackingParams(t *testing.T) {
	require.Equal(t, "991130",
		unwrapRaw("https://track.example.com/click?url=991130"))
	require.Equal(t, convUUID,
		unwrapRaw("https://mail.example.com/r?redirect="+convUUID))
	require.Equal(t, convUUID,
		unwrapRaw("https://app.example.com/dashboard?conversation="+convUUID))
}

func TestUnwrapRawLastPathSegment(t *testing.T) {
	require.Equal(t, convUUID, unwrapRaw("https://app.example.com/c/"+convUUID))
	require.Equal(t, "991130", unwrapRaw("https://legacy.example.com/conversations/991130"))
}

func TestUnwrapRawDoubleEncoding(t *testing.T) {
	once := "https%3A%2F%2Fapp.example.com%2Fc%2F991130"
	require.Equal(t, "991130", unwrapRaw(once))

	twice := "https%253A%252F%252Fapp.example.com%252Fc%252F991130"
	require.Equal(t, "991130", unwrapRaw(twice))
}

func TestUnwrapRawBoundedIterations(t *testing.T) {
	// Four layers of encoding exceed the bound; the call must still return.
	v := "991130"
	for i := 0; i < 5; i++ {
		v = "https%3A%2F%2Fx.example%2F" + v
	}
	_ = unwrapRaw(v)
}

func TestUnwrapRawBase64Segment(t *testing.T) {
	wrapped := base64.RawURLEncoding.EncodeToString([]byte("https://app.example.com/c/" + convUUID))
	require.Equal(t, convUUID, unwrapRaw(wrapped))

	wrappedUUID := base64.RawURLEncoding.EncodeToString([]byte(convUUID))
	require.Equal(t, convUUID, unwrapRaw(wrappedUUID))

	// Opaque blobs that don't decode to an identifier are left alone.
	opaque := "aGVsbG8gd29ybGQtLS0tLS0t"
	require.Equal(t, opaque, unwrapRaw(opaque))
}
