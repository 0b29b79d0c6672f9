package types

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_Advance(t *testing.T) {
	s := NewState()
	tVal, nextT := s.Load()
	require.Equal(t, int64(0), tVal)
	require.Equal(t, int64(0), nextT)

	assert.True(t, s.Advance(5, 6))
	tVal, nextT = s.Load()
	assert.Equal(t, int64(5), tVal)
	assert.Equal(t, int64(6), nextT)

	// Equal t is a no-op; the watermark never regresses.
	assert.False(t, s.Advance(5, 9))
	assert.False(t, s.Advance(3, 4))
	tVal, nextT = s.Load()
	assert.Equal(t, int64(5), tVal)
	assert.Equal(t, int64(6), nextT)
}

func TestState_ConcurrentAdvanceIsMonotonic(t *testing.T) {
	s := NewState()

	const n = 200
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(t int64) {
			defer wg.Done()
			s.Advance(t, t+1)
		}(int64(i))
	}
	wg.Wait()

	tVal, nextT := s.Load()
	assert.Equal(t, int64(n), tVal)
	assert.Equal(t, int64(n+1), nextT)
	assert.GreaterOrEqual(t, nextT, tVal)
}
