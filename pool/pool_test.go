package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubmitReturnsResult(t *testing.T) {
	p := New(2, nil)
	defer p.Stop()

	f := p.Submit(func() (interface{}, error) { return 42, nil }, 0)
	v, err := f.Get()
	assert.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestSubmitSurfacesFailureOnConsumption(t *testing.T) {
	p := New(1, nil)
	defer p.Stop()

	f := p.Submit(func() (interface{}, error) { return nil, assertErr }, 0)
	_, err := f.Get()
	assert.Equal(t, assertErr, err)
}

var assertErr = assertError{}

type assertError struct{}

func (assertError) Error() string { return "boom" }

func TestPriorityOrdering(t *testing.T) {
	p := New(1, nil)
	defer p.Stop()

	order := make(chan int, 3)
	block := make(chan struct{})

	// Occupy the single worker so subsequent submissions queue up.
	p.Submit(func() (interface{}, error) {
		<-block
		return nil, nil
	}, 0)

	// Give the blocking task time to be picked up.
	time.Sleep(10 * time.Millisecond)

	p.Submit(func() (interface{}, error) { order <- 2; return nil, nil }, 2)
	p.Submit(func() (interface{}, error) { order <- 0; return nil, nil }, 0)
	p.Submit(func() (interface{}, error) { order <- 1; return nil, nil }, 1)

	close(block)

	assert.Equal(t, 0, <-order)
	assert.Equal(t, 1, <-order)
	assert.Equal(t, 2, <-order)
}

func TestStopDiscardsPendingTasks(t *testing.T) {
	p := New(1, nil)

	block := make(chan struct{})
	p.Submit(func() (interface{}, error) {
		<-block
		return nil, nil
	}, 0)
	time.Sleep(10 * time.Millisecond)

	pending := p.Submit(func() (interface{}, error) { return "never", nil }, 0)

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(block)
	}()
	p.Stop()

	_, err := pending.Get()
	assert.Error(t, err)
}

func TestUnprocessedTasksCount(t *testing.T) {
	p := New(1, nil)
	defer p.Stop()

	block := make(chan struct{})
	p.Submit(func() (interface{}, error) { <-block; return nil, nil }, 0)
	time.Sleep(10 * time.Millisecond)

	p.Submit(func() (interface{}, error) { return nil, nil }, 0)
	p.Submit(func() (interface{}, error) { return nil, nil }, 1)

	assert.Equal(t, 2, p.UnprocessedTasksCount(nil))
	zero := 0
	assert.Equal(t, 1, p.UnprocessedTasksCount(&zero))

	close(block)
}
