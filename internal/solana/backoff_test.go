package solana

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_NeverExceedsMax(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 30 * time.Second}
	for i := 0; i < 20; i++ {
		d := b.Next()
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 30*time.Second)
	}
}

func TestBackoff_EnvelopeGrows(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 30 * time.Second}
	// With full jitter the observed delays vary, but the envelope doubles:
	// attempt n draws from (0, base<<n].
	b.Next()
	b.Next()
	assert.Equal(t, 2, b.attempt)
}

func TestBackoff_Reset(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 30 * time.Second}
	b.Next()
	b.Next()
	b.Reset()
	assert.Equal(t, 0, b.attempt)
	assert.LessOrEqual(t, b.Next(), time.Second)
}
