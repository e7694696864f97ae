package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch url with playlist", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL123&index=2", "dQw4w9WgXcQ"},
		{"short link", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"short link with params", "https://youtu.be/dQw4w9WgXcQ?t=42", "dQw4w9WgXcQ"},
		{"embed url", "https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"shorts url", "https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"not a video url", "https://www.youtube.com/feed/subscriptions", ""},
		{"unrelated url", "https://example.com/watch?v=short", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractVideoID(tt.url))
		})
	}
}

func TestCleanYouTubeURL(t *testing.T) {
	assert.Equal(t,
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		CleanYouTubeURL("https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL123"))

	assert.Equal(t,
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		CleanYouTubeURL("https://youtu.be/dQw4w9WgXcQ"))

	// Unrecognized URLs pass through.
	assert.Equal(t, "https://example.com/clip", CleanYouTubeURL("https://example.com/clip"))
}

func TestValidateURL(t *testing.T) {
	domains := []string{"youtube.com", "youtu.be"}

	assert.True(t, ValidateURL("https://www.youtube.com/watch?v=abc", domains))
	assert.True(t, ValidateURL("https://m.youtube.com/watch?v=abc", domains))
	assert.True(t, ValidateURL("https://youtu.be/abc", domains))
	assert.False(t, ValidateURL("https://vimeo.com/12345", domains))
	assert.False(t, ValidateURL("https://evilyoutube.com/watch", domains))
	assert.False(t, ValidateURL("://bad url", domains))
}

func TestSafeTitle(t *testing.T) {
	assert.Equal(t, "Never Gonna Give You Up", SafeTitle("Never Gonna Give You Up", 50))
	assert.Equal(t, "Whats Up Official Video", SafeTitle("What's Up? (Official Video)", 50))
	assert.Equal(t, "video", SafeTitle("???!!!", 50))

	long := strings.Repeat("a", 80)
	assert.Len(t, SafeTitle(long, 50), 50)
}

func TestTruncateFilename(t *testing.T) {
	assert.Equal(t, "short.mp4", TruncateFilename("short.mp4", 50))

	truncated := TruncateFilename(strings.Repeat("x", 60)+".mp4", 20)
	assert.Len(t, []rune(truncated), 20)
	assert.True(t, strings.HasSuffix(truncated, ".mp4"))

	// Multi-byte characters are cut on rune boundaries.
	truncated = TruncateFilename(strings.Repeat("日", 30)+".mp4", 10)
	assert.Len(t, []rune(truncated), 10)
}
