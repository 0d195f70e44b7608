package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginGuard_ExactMatchOnly(t *testing.T) {
	guard := NewOriginGuard([]string{"cdn.example.com", "media.example.com"})

	assert.True(t, guard.IsAllowed("cdn.example.com"))
	assert.False(t, guard.IsAllowed("evil.example.com"))
	assert.False(t, guard.IsAllowed("sub.cdn.example.com"), "no wildcard matching")
	assert.False(t, guard.IsAllowed(""))
}

func TestOriginGuard_EmptySetDeniesAll(t *testing.T) {
	guard := NewOriginGuard(nil)
	assert.False(t, guard.IsAllowed("cdn.example.com"))

	_, err := guard.Authorize("https://cdn.example.com/v.mp4")
	assert.ErrorIs(t, err, ErrHostNotAllowed)
}

func TestAuthorize(t *testing.T) {
	guard := NewOriginGuard([]string{"cdn.example.com"})

	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"allowed host", "https://cdn.example.com/videos/a.mp4", nil},
		{"allowed host with port", "http://cdn.example.com:8080/a.mp4", nil},
		{"empty", "", ErrMalformedTarget},
		{"no scheme", "cdn.example.com/a.mp4", ErrMalformedTarget},
		{"ftp scheme", "ftp://cdn.example.com/a.mp4", ErrMalformedTarget},
		{"unknown host", "https://other.example.com/a.mp4", ErrHostNotAllowed},
		{"unknown host with query tricks", "https://other.example.com/a.mp4?from=cdn.example.com", ErrHostNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := guard.Authorize(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "cdn.example.com", u.Hostname())
		})
	}
}
