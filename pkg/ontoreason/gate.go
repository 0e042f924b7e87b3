package ontoreason

import (
	"sync"

	"github.com/cognicore/ontoreason/pkg/ontoreason/internalerr"
)

// ReadyGate hands out a Reasoner once it has been initialized. Callers that
// arrive earlier get internalerr.ErrNotReady.
type ReadyGate struct {
	mu sync.RWMutex
	r  *Reasoner
}

// Gate is the process-wide readiness gate.
var Gate = &ReadyGate{}

// Set publishes r. Later calls replace it.
func (g *ReadyGate) Set(r *Reasoner) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.r = r
}

// Get returns the published Reasoner.
func (g *ReadyGate) Get() (*Reasoner, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.r == nil {
		return nil, internalerr.ErrNotReady
	}
	return g.r, nil
}

// Ready reports whether a Reasoner has been published.
func (g *ReadyGate) Ready() bool {
	_, err := g.Get()
	return err == nil
}
