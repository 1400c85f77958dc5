package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	RequestCounterName = "reg_counter"
	RequestCounterHelp = "Number of requests"
)

// RequestCounter is a monotonically increasing count of handled requests.
type RequestCounter struct {
	value atomic.Uint64
}

// NewRequestCounter creates a counter and, when reg is non-nil, registers it
// as reg_counter.
func NewRequestCounter(reg prometheus.Registerer) (*RequestCounter, error) {
	c := &RequestCounter{}

	if reg == nil {
		return c, nil
	}

	fn := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: RequestCounterName,
		Help: RequestCounterHelp,
	}, func() float64 {
		return float64(c.Value())
	})

	if err := reg.Register(fn); err != nil {
		return nil, err
	}

	return c, nil
}

// Increment atomically adds one.
func (c *RequestCounter) Increment() {
	c.value.Add(1)
}

// Value atomically reads the current total.
func (c *RequestCounter) Value() uint64 {
	return c.value.Load()
}
