// internal/game/actor.go
package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// sessionActor serializes every mutation of one session and owns its timer.
type sessionActor struct {
	mu        sync.Mutex
	sessionID uuid.UUID

	timer *time.Timer
	// generation is bumped on every arm and cancel; timer callbacks carrying
	// an older generation are stale and exit without touching the session.
	generation  int
	actionIndex int
}

// stopTimer cancels any pending timer. Caller holds mu.
func (a *sessionActor) stopTimer() {
	a.generation++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// schedule arms fn after d tagged with the current generation. Caller holds mu.
func (a *sessionActor) schedule(d time.Duration, fn func(gen int)) {
	gen := a.generation
	a.timer = time.AfterFunc(d, func() { fn(gen) })
}

// actorRegistry holds the live actors, one per session, created lazily.
type actorRegistry struct {
	mu     sync.Mutex
	actors map[uuid.UUID]*sessionActor
}

func newActorRegistry() *actorRegistry {
	return &actorRegistry{
		actors: make(map[uuid.UUID]*sessionActor),
	}
}

// acquire returns the session's actor with its lock held, creating it if needed.
func (r *actorRegistry) acquire(id uuid.UUID) *sessionActor {
	r.mu.Lock()
	a, ok := r.actors[id]
	if !ok {
		a = &sessionActor{sessionID: id}
		r.actors[id] = a
	}
	r.mu.Unlock()

	a.mu.Lock()
	return a
}

// lookup returns an existing actor with its lock held, or nil.
func (r *actorRegistry) lookup(id uuid.UUID) *sessionActor {
	r.mu.Lock()
	a, ok := r.actors[id]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	a.mu.Lock()
	return a
}

// remove drops a from the registry if it is still the registered actor.
func (r *actorRegistry) remove(a *sessionActor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.actors[a.sessionID]; ok && cur == a {
		delete(r.actors, a.sessionID)
	}
}

func (r *actorRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actors)
}

func (r *actorRegistry) stopAll() {
	r.mu.Lock()
	actors := make([]*sessionActor, 0, len(r.actors))
	for _, a := range r.actors {
		actors = append(actors, a)
	}
	r.mu.Unlock()

	for _, a := range actors {
		a.mu.Lock()
		a.stopTimer()
		a.mu.Unlock()
	}
}
