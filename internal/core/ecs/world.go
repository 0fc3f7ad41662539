package ecs

// World is the top-level ECS container. It owns the entity pool, the component
// registry, and a deferred destruction queue flushed by CleanupSystem each tick.
type World struct {
	pool         *EntityPool
	registry     *Registry
	destroyQueue []EntityID
	queued       map[EntityID]struct{}
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		registry:     NewRegistry(),
		destroyQueue: make([]EntityID, 0, 64),
		queued:       make(map[EntityID]struct{}, 64),
	}
}

func (w *World) Pool() *EntityPool   { return w.pool }
func (w *World) Registry() *Registry { return w.registry }

func (w *World) CreateEntity() EntityID {
	return w.pool.Create()
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// Live returns the number of entities currently allocated.
func (w *World) Live() int {
	return w.pool.Live()
}

// Destroy removes id from every store and invalidates it immediately.
func (w *World) Destroy(id EntityID) bool {
	if !w.pool.Alive(id) {
		return false
	}
	w.registry.RemoveAll(id)
	return w.pool.Destroy(id)
}

// MarkForDestruction queues an entity for end-of-tick cleanup. Marking the
// same entity twice in one tick queues it once.
func (w *World) MarkForDestruction(id EntityID) {
	if _, ok := w.queued[id]; ok {
		return
	}
	w.queued[id] = struct{}{}
	w.destroyQueue = append(w.destroyQueue, id)
}

// FlushDestroyQueue destroys all queued entities and clears their components.
// Called by CleanupSystem at the end of each tick. Returns how many queued
// entities were still alive.
func (w *World) FlushDestroyQueue() int {
	n := 0
	for _, id := range w.destroyQueue {
		if w.Destroy(id) {
			n++
		}
		delete(w.queued, id)
	}
	w.destroyQueue = w.destroyQueue[:0]
	return n
}
