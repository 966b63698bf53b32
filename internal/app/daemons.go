package app

import (
	"context"
	"sync"
)

// Daemons is a registry of background preloader tasks, at most one live task
// per organization name.
//
// A registration is not removed when its task completes; it is only cleared
// by Cancel, which a force-refresh construction triggers. This keeps
// re-registration cheap and makes a fresh construction the single way to
// restart preloading.
type Daemons struct {
	mu    sync.Mutex
	tasks map[string]context.CancelFunc
}

// NewDaemons creates an empty registry.
func NewDaemons() *Daemons {
	return &Daemons{
		tasks: make(map[string]context.CancelFunc),
	}
}

// Register stores cancel under name. Returns false when a task is already
// registered for that name; the caller must not start its task then.
func (d *Daemons) Register(name string, cancel context.CancelFunc) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.tasks[name]; ok {
		return false
	}
	d.tasks[name] = cancel

	return true
}

// Cancel stops and removes the task registered under name, if any.
func (d *Daemons) Cancel(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cancel, ok := d.tasks[name]; ok {
		cancel()
		delete(d.tasks, name)
	}
}

// Registered checks whether a task is registered under name.
func (d *Daemons) Registered(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.tasks[name]
	return ok
}
