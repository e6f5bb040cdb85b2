package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentTypeByExtension(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"images/a.jpg", "image/jpeg"},
		{"images/a.JFIF", "image/jpeg"},
		{"a.png", "image/png"},
		{"nested/dir/b.webp", "image/webp"},
		{"a.txt", "application/octet-stream"},
		{"noext", "application/octet-stream"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ContentTypeByExtension(tt.name), tt.name)
	}
}

func TestGetExtensionFromFilename(t *testing.T) {
	assert.Equal(t, ".jpeg", GetExtensionFromFilename("Cat.JPEG"))
	assert.Equal(t, ".png", GetExtensionFromFilename("a.b.png"))
	assert.Equal(t, "", GetExtensionFromFilename("README"))
}
