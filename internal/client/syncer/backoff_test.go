package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_Delay(t *testing.T) {
	b := NewBackoff(5*time.Second, time.Minute)

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 0},
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
		{5, time.Minute},
		{50, time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, b.Delay(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestNewBackoff_Defaults(t *testing.T) {
	b := NewBackoff(0, 0)
	assert.Equal(t, DefaultBackoffBase, b.Delay(1))

	b = NewBackoff(time.Second, 0)
	assert.Equal(t, time.Second, b.Delay(10), "cap below base is raised to base")
}
