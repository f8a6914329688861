package audio

import (
	"fmt"
	"sync"
)

// Guard enforces exclusive microphone ownership between the live session and
// the correct-sample workflow. Acquiring while held is an error, never a
// silent merge.
type Guard struct {
	mu    sync.Mutex
	owner string
}

// Acquire claims the device for owner. The returned release func is
// idempotent.
func (g *Guard) Acquire(owner string) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.owner != "" {
		return nil, fmt.Errorf("%w (held by %s)", ErrDeviceBusy, g.owner)
	}
	g.owner = owner

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.owner = ""
			g.mu.Unlock()
		})
	}, nil
}

// Holder reports the current owner, or "" when the device is free.
func (g *Guard) Holder() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.owner
}
