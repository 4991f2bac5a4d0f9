package accounts

import "sync"

// busyGates rejects re-entrant submissions of the same operation.
type busyGates struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newBusyGates() *busyGates {
	return &busyGates{held: map[string]struct{}{}}
}

func (g *busyGates) acquire(key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.held[key]; busy {
		return nil, NewError(ErrOperationInProgress, map[string]any{"operation": key})
	}
	g.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, nil
}

func (g *busyGates) busy(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.held[key]
	return ok
}
