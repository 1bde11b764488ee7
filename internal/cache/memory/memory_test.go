package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetDel_SingleWinner(t *testing.T) {
	c := New(time.Minute)
	c.Set("k", []byte("v"), time.Minute)

	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.GetDel("k"); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins, "exactly one caller may consume the entry")
}

func TestExpiry(t *testing.T) {
	c := New(time.Minute)
	c.Set("k", []byte("v"), 10*time.Millisecond)

	_, ok := c.Get("k")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
	_, ok = c.GetDel("k")
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	c := New(time.Minute)
	c.Set("k", []byte("v"), time.Minute)
	c.Delete("k")
	_, ok := c.Get("k")
	assert.False(t, ok)
}
