package engine

import "sync"

// Registry 房间到引擎的显式映射，单一属主持有并作为依赖下发
type Registry struct {
	mu      sync.RWMutex
	engines map[string]*Engine

	store StateStore
	emit  Emitter
	opts  Options
}

func NewRegistry(store StateStore, emit Emitter, opts Options) *Registry {
	return &Registry{
		engines: make(map[string]*Engine),
		store:   store,
		emit:    emit,
		opts:    opts,
	}
}

// Obtain 取得房间引擎，不存在则创建
func (r *Registry) Obtain(roomID string) *Engine {
	r.mu.RLock()
	if e, ok := r.engines[roomID]; ok {
		r.mu.RUnlock()
		return e
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.engines[roomID]; ok {
		return e
	}
	e := New(roomID, r.store, r.emit, r.opts)
	r.engines[roomID] = e
	return e
}

// Get 仅查询
func (r *Registry) Get(roomID string) (*Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[roomID]
	return e, ok
}

// Remove 关闭并移除引擎
func (r *Registry) Remove(roomID string) {
	r.mu.Lock()
	e, ok := r.engines[roomID]
	if ok {
		delete(r.engines, roomID)
	}
	r.mu.Unlock()
	if ok {
		e.Close()
	}
}

// Len 活跃引擎数，供负载上报
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.engines)
}

// Range 遍历引擎
func (r *Registry) Range(fn func(roomID string, e *Engine) bool) {
	r.mu.RLock()
	snapshot := make(map[string]*Engine, len(r.engines))
	for k, v := range r.engines {
		snapshot[k] = v
	}
	r.mu.RUnlock()
	for k, v := range snapshot {
		if !fn(k, v) {
			return
		}
	}
}
