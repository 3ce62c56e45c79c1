package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestKeyedMutex_MutualExclusion 测试同一 key 上的临界区互斥
func TestKeyedMutex_MutualExclusion(t *testing.T) {
	m := newKeyedMutex()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock("req-001")
			defer m.Unlock("req-001")
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, counter)
}

// TestKeyedMutex_StableSharding 测试同一 key 总是命中同一分片
func TestKeyedMutex_StableSharding(t *testing.T) {
	m := newKeyedMutex()
	assert.Equal(t, m.index("req-001"), m.index("req-001"))
	assert.GreaterOrEqual(t, m.index("req-002"), 0)
	assert.Less(t, m.index("req-002"), lockShards)
}

// TestKeyedMutex_IndependentKeys 测试不同分片的 key 互不阻塞
func TestKeyedMutex_IndependentKeys(t *testing.T) {
	m := newKeyedMutex()

	// 找两个落在不同分片的 key
	a, b := "key-a", ""
	for i := 0; i < 1000; i++ {
		candidate := "key-" + string(rune('b'+i%26)) + string(rune('0'+i/26))
		if m.index(candidate) != m.index(a) {
			b = candidate
			break
		}
	}
	if b == "" {
		t.Skip("no key in a different shard found")
	}

	m.Lock(a)
	done := make(chan struct{})
	go func() {
		m.Lock(b)
		m.Unlock(b)
		close(done)
	}()
	<-done
	m.Unlock(a)
}
