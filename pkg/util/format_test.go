package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrDash(t *testing.T) {
	assert.Equal(t, "-", OrDash(""))
	assert.Equal(t, "x", OrDash("x"))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.0 KB", FormatBytes(1024))
	assert.Equal(t, "1.5 MB", FormatBytes(1536*1024))
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "1 asset", FormatCount(1, "asset", "assets"))
	assert.Equal(t, "3 assets", FormatCount(3, "asset", "assets"))
}
