package utils

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsContextCanceled(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, true},
		{"wrapped with %w", fmt.Errorf("read body: %w", context.Canceled), true},
		{"flattened with %v", fmt.Errorf("fetch image: %v", context.Canceled), true},
		{"deadline", context.DeadlineExceeded, false},
		{"other", errors.New("decode failed"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsContextCanceled(tt.err))
		})
	}
}

func TestIsClientDisconnect(t *testing.T) {
	assert.True(t, IsClientDisconnect(context.Canceled))
	assert.True(t, IsClientDisconnect(fmt.Errorf("write response: %w", syscall.EPIPE)))
	assert.False(t, IsClientDisconnect(context.DeadlineExceeded))
	assert.False(t, IsClientDisconnect(errors.New("other error")))
}
