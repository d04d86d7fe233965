package worker

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool(t *testing.T) {
	t.Run("shutdown drains queued jobs", func(t *testing.T) {
		p := NewPool(2, 1)
		p.Start()

		var done atomic.Int64
		for i := 0; i < 50; i++ {
			p.Dispatch(JobFunc(func() { done.Add(1) }))
		}
		p.Shutdown()

		assert.Equal(t, int64(50), done.Load())
	})

	t.Run("dispatch after shutdown runs inline", func(t *testing.T) {
		p := NewPool(1, 0)
		p.Start()
		p.Shutdown()

		ran := false
		p.Dispatch(JobFunc(func() { ran = true }))
		assert.True(t, ran)

		// Повторный Shutdown безопасен
		p.Shutdown()
	})
}
