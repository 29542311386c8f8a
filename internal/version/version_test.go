package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShort(t *testing.T) {
	tests := []struct {
		info Info
		want string
	}{
		{Info{Version: "v1.2.0", GitCommit: "abcdef123456"}, "v1.2.0 (abcdef1)"},
		{Info{Version: "dev", GitCommit: "abcdef123456"}, "dev-abcdef1"},
		{Info{Version: "v1.2.0", GitCommit: "unknown"}, "v1.2.0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.info.Short())
	}
}

func TestIsRelease(t *testing.T) {
	assert.True(t, Info{Version: "v1.0.0"}.IsRelease())
	assert.False(t, Info{Version: "dev"}.IsRelease())
	assert.False(t, Info{Version: "dev-abcdef1"}.IsRelease())
}

func TestParseTime(t *testing.T) {
	assert.True(t, parseTime("unknown").IsZero())
	assert.True(t, parseTime("yesterday").IsZero())
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), parseTime("2024-05-01T10:00:00Z"))
}

func TestGet(t *testing.T) {
	info := Get()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}
