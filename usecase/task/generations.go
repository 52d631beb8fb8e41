package task

import "sync"

// graphGenerations counts committed writes per owner. A graph built from a
// snapshot may be cached only while the owner's generation is unchanged.
type graphGenerations struct {
	mu  sync.Mutex
	gen map[string]uint64
}

func (g *graphGenerations) current(ownerID string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen[ownerID]
}

func (g *graphGenerations) bump(ownerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen == nil {
		g.gen = make(map[string]uint64)
	}
	g.gen[ownerID]++
}

// ifCurrent runs fn while holding the lock, so a bump cannot land between the
// check and fn. It reports whether fn ran.
func (g *graphGenerations) ifCurrent(ownerID string, gen uint64, fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen[ownerID] != gen {
		return false
	}
	fn()
	return true
}
