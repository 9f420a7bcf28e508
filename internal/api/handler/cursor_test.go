package handler

import (
	"testing"
	"time"

	"github.com/nmtran/snapfeed-be/internal/api/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostCursorRoundTrip(t *testing.T) {
	original := &storage.PostCursor{
		CreatedAt: time.Date(2025, 8, 10, 12, 30, 0, 123456789, time.UTC),
		PostID:    "7c9e6679-7425-40de-944b-e07fc1f90ae7",
	}

	encoded, err := EncodePostCursor(original)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	decoded, err := DecodePostCursor(encoded)
	require.NoError(t, err)
	require.NotNil(t, decoded)

	assert.True(t, original.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, original.PostID, decoded.PostID)
}

func TestDecodePostCursorEmpty(t *testing.T) {
	cursor, err := DecodePostCursor("")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecodePostCursorInvalid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"wrong part count", "aGVsbG8="},      // "hello"
		{"non-numeric timestamp", "eHxhYmM="}, // "x|abc"
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePostCursor(tt.cursor)
			require.Error(t, err)
		})
	}
}
