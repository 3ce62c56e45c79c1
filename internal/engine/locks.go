package engine

import (
	"hash/fnv"
	"sync"
)

// keyedMutex 按请求 ID 分片的互斥锁
// 同一请求上的并发转换互斥,不同请求互不阻塞,升级扫描不会持有全局锁
type keyedMutex struct {
	shards []sync.Mutex
}

const lockShards = 64

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{shards: make([]sync.Mutex, lockShards)}
}

// Lock 锁定指定 key 对应的分片
func (m *keyedMutex) Lock(key string) {
	m.shards[m.index(key)].Lock()
}

// Unlock 解锁指定 key 对应的分片
func (m *keyedMutex) Unlock(key string) {
	m.shards[m.index(key)].Unlock()
}

func (m *keyedMutex) index(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(m.shards)))
}
