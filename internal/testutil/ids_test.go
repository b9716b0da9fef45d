package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDs(t *testing.T) {
	ids := NewSequentialIDs("user")

	assert.Equal(t, int64(0), ids.Issued())
	assert.Equal(t, "user-1", ids.Generate())
	assert.Equal(t, "user-2", ids.Generate())
	assert.Equal(t, int64(2), ids.Issued())

	ids.Reset()
	assert.Equal(t, "user-1", ids.Generate())
}

func TestSequentialIDs_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "doc-1", NewSequentialIDs("").Generate())
}

func TestSequentialIDs_Concurrent(t *testing.T) {
	ids := NewSequentialIDs("c")
	seen := sync.Map{}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, dup := seen.LoadOrStore(ids.Generate(), true)
			assert.False(t, dup)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), ids.Issued())
}
