package monitoring

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// These tests swap the package logger and therefore do not run in parallel.

func TestSetLogger(t *testing.T) {
	defer SetLogger(nil)

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	Logf("hello %d", 1)
	assert.Equal(t, []string{"hello 1"}, lines)

	SetLogger(nil)
	Logf("muted")
	assert.Len(t, lines, 1, "no-op logger must not reach the previous callback")
}

func TestTagged(t *testing.T) {
	defer SetLogger(nil)

	var got string
	logf := Tagged("slice")
	// The tag logger resolves the package logger on every call.
	SetLogger(func(format string, v ...interface{}) { got = fmt.Sprintf(format, v...) })
	logf("exported %d objects", 3)
	assert.Equal(t, "[slice] exported 3 objects", got)
}

func TestLogf_ConcurrentSwap(t *testing.T) {
	defer SetLogger(nil)

	var mu sync.Mutex
	count := 0
	counter := func(string, ...interface{}) {
		mu.Lock()
		count++
		mu.Unlock()
	}
	SetLogger(counter)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				Logf("x")
			}
		}()
	}
	for range 10 {
		SetLogger(counter)
	}
	wg.Wait()
	assert.Equal(t, 800, count)
}
