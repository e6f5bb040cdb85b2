package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGenerateRandomToken_Length 测试Token长度
func TestGenerateRandomToken_Length(t *testing.T) {
	tests := []struct {
		inputLength int
		minLength   int
	}{
		{16, 22},
		{32, 43},
		{64, 86},
	}

	for _, tt := range tests {
		token, err := GenerateRandomToken(tt.inputLength)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(token), tt.minLength)
		assert.Regexp(t, "^[A-Za-z0-9=_-]*$", token)
	}
}

// TestGenerateRandomToken_Concurrent 测试并发唯一性
func TestGenerateRandomToken_Concurrent(t *testing.T) {
	const numGoroutines = 20
	const tokensPerGoroutine = 20

	var wg sync.WaitGroup
	tokens := make(chan string, numGoroutines*tokensPerGoroutine)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < tokensPerGoroutine; j++ {
				token, err := GenerateRandomToken(32)
				if err != nil {
					t.Errorf("Failed to generate token: %v", err)
					return
				}
				tokens <- token
			}
		}()
	}

	wg.Wait()
	close(tokens)

	seen := make(map[string]bool)
	for token := range tokens {
		assert.False(t, seen[token], "duplicate token %s", token)
		seen[token] = true
	}
	assert.Len(t, seen, numGoroutines*tokensPerGoroutine)
}

// TestRandomHex 测试十六进制后缀
func TestRandomHex(t *testing.T) {
	for _, n := range []int{1, 6, 7, 32} {
		s, err := RandomHex(n)
		require.NoError(t, err)
		assert.Len(t, s, n)
		assert.Regexp(t, "^[0-9a-f]+$", s)
	}
}
