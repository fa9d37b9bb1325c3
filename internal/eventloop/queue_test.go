package eventloop

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueRunsInOrder(t *testing.T) {
	q := New()
	var got []int
	for i := 0; i < 5; i++ {
		q.Post(func() { got = append(got, i) })
	}
	assert.Equal(t, 5, q.Len())
	assert.Equal(t, 5, q.Drain())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	assert.Equal(t, 0, q.Drain())
}

func TestQueuePostDuringDrainDefers(t *testing.T) {
	q := New()
	var order []string
	q.Post(func() {
		order = append(order, "first")
		q.Post(func() { order = append(order, "nested") })
	})
	assert.Equal(t, 1, q.Drain())
	assert.Equal(t, []string{"first"}, order)
	assert.Equal(t, 1, q.Drain())
	assert.Equal(t, []string{"first", "nested"}, order)
}

func TestQueueConcurrentPost(t *testing.T) {
	q := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Post(func() {})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, q.Drain())
}

func TestQueueClose(t *testing.T) {
	q := New()
	ran := false
	q.Post(func() { ran = true })
	q.Close()
	q.Post(func() { ran = true })
	q.Post(nil)
	assert.Equal(t, 0, q.Drain())
	assert.False(t, ran)
}
