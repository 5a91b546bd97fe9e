package upstream

import (
	"fmt"
	"sync/atomic"
)

// Pair holds the blue and green targets plus the active-pool designation.
// The designation is read on every request and mutated only through Switch,
// the single write entry point.
type Pair struct {
	blue  *Target
	green *Target

	activeIsGreen atomic.Bool
}

// NewPair creates a pair with the given initial active pool
func NewPair(blue, green *Target, active Pool) (*Pair, error) {
	if !active.Valid() {
		return nil, fmt.Errorf("invalid active pool %q", active)
	}
	p := &Pair{blue: blue, green: green}
	p.activeIsGreen.Store(active == Green)
	return p, nil
}

// ActivePool returns the pool currently designated primary
func (p *Pair) ActivePool() Pool {
	if p.activeIsGreen.Load() {
		return Green
	}
	return Blue
}

// Active returns the primary target
func (p *Pair) Active() *Target {
	return p.Get(p.ActivePool())
}

// Standby returns the backup target
func (p *Pair) Standby() *Target {
	return p.Get(p.ActivePool().Other())
}

// Get returns the target bound to the given pool
func (p *Pair) Get(pool Pool) *Target {
	if pool == Green {
		return p.green
	}
	return p.blue
}

// Switch designates a new active pool. Returns the previous designation.
func (p *Pair) Switch(pool Pool) (Pool, error) {
	if !pool.Valid() {
		return "", fmt.Errorf("invalid pool %q", pool)
	}
	wasGreen := p.activeIsGreen.Swap(pool == Green)
	if wasGreen {
		return Green, nil
	}
	return Blue, nil
}
