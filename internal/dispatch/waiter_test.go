package dispatch

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nmtran/snapfeed-be/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaiterTableRegisterAndRemove(t *testing.T) {
	table := NewWaiterTable()

	slot := table.register("id-1", time.Second)
	require.NotNil(t, slot)
	assert.Equal(t, 1, table.Len())
	assert.True(t, table.Contains("id-1"))

	removed, ok := table.remove("id-1")
	require.True(t, ok)
	assert.Equal(t, slot, removed)
	assert.Equal(t, 0, table.Len())

	_, ok = table.remove("id-1")
	assert.False(t, ok)
}

func TestWaiterTableRemoveWinsExactlyOnce(t *testing.T) {
	table := NewWaiterTable()
	table.register("contested", time.Second)

	const racers = 32

	var wins int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok := table.remove("contested"); ok {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), wins)
	assert.Equal(t, 0, table.Len())
}

func TestWaiterTableDeliver(t *testing.T) {
	table := NewWaiterTable()
	slot := table.register("id-1", time.Second)

	resp := &queue.ResponseMessage{
		CorrelationID: "id-1",
		Result:        map[string]string{"generated_text": "hello"},
	}

	require.True(t, table.deliver(resp))

	select {
	case got := <-slot:
		assert.Equal(t, resp, got)
	default:
		t.Fatal("slot should hold the delivered response")
	}

	assert.Equal(t, 0, table.Len())
}

func TestWaiterTableDeliverOrphan(t *testing.T) {
	table := NewWaiterTable()

	delivered := table.deliver(&queue.ResponseMessage{
		CorrelationID: "never-registered",
		Result:        map[string]string{"k": "v"},
	})

	assert.False(t, delivered)
}

func TestWaiterTableDeliverAfterTimeoutRemoval(t *testing.T) {
	table := NewWaiterTable()
	table.register("id-1", time.Millisecond)

	// Simulate the timeout path claiming the waiter first
	_, ok := table.remove("id-1")
	require.True(t, ok)

	// The late response finds no waiter and is reported orphaned
	assert.False(t, table.deliver(&queue.ResponseMessage{
		CorrelationID: "id-1",
		Result:        map[string]string{"k": "v"},
	}))
}
