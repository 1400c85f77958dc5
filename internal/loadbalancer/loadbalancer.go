package loadbalancer

import (
	"fmt"
	"sync/atomic"

	"github.com/angeloszaimis/roundrobin-proxy/internal/backend"
	"github.com/angeloszaimis/roundrobin-proxy/internal/proxyerr"
)

// Pool is an immutable, non-empty sequence of backends plus a rotation cursor.
type Pool struct {
	backends []*backend.Backend
	cursor   atomic.Uint64
}

// New creates a pool whose cursor starts at the first backend.
// The slice is copied; order determines the rotation order.
func New(backends []*backend.Backend) (*Pool, error) {
	if len(backends) == 0 {
		return nil, fmt.Errorf("%w: backend pool cannot be empty", proxyerr.ErrConfiguration)
	}

	for i, b := range backends {
		if b == nil {
			return nil, fmt.Errorf("%w: backend at position %d is nil", proxyerr.ErrConfiguration, i)
		}
	}

	pool := &Pool{
		backends: make([]*backend.Backend, len(backends)),
	}
	copy(pool.backends, backends)

	return pool, nil
}

// Select returns the backend under the cursor and advances the cursor by one.
func (p *Pool) Select() (*backend.Backend, error) {
	if p == nil || len(p.backends) == 0 {
		return nil, proxyerr.ErrUpstreamSelection
	}

	n := p.cursor.Add(1)
	index := (n - 1) % uint64(len(p.backends))

	return p.backends[index], nil
}

// Len returns the number of backends in the pool.
func (p *Pool) Len() int {
	return len(p.backends)
}

// Backends returns a copy of the pool in rotation order.
func (p *Pool) Backends() []*backend.Backend {
	out := make([]*backend.Backend, len(p.backends))
	copy(out, p.backends)
	return out
}
