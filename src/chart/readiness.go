package chart

import (
	"context"
	"errors"
	"sync"

	"capture-tool/src/interfaces"
)

// ErrTornDown fails readiness of a chart removed before it was built.
var ErrTornDown = errors.New("chart: torn down before construction")

// -----------------------------------------------------------------------------

// Readiness is a one-time-settable future for a chart instance. Every
// delivery waits on it; once settled, every wait returns at once.
type Readiness struct {
	once     sync.Once
	done     chan struct{}
	instance interfaces.IChartInstance
	err      error
}

// -----------------------------------------------------------------------------

func NewReadiness() *Readiness {
	return &Readiness{done: make(chan struct{})}
}

// -----------------------------------------------------------------------------

// Resolve settles the future with a built instance. It reports whether this
// call settled it.
func (r *Readiness) Resolve(instance interfaces.IChartInstance) bool {
	return r.settle(instance, nil)
}

// -----------------------------------------------------------------------------

// Fail settles the future with an error.
func (r *Readiness) Fail(err error) bool {
	return r.settle(nil, err)
}

// -----------------------------------------------------------------------------

func (r *Readiness) settle(instance interfaces.IChartInstance, err error) bool {
	settled := false
	r.once.Do(func() {
		r.instance = instance
		r.err = err
		settled = true
		close(r.done)
	})
	return settled
}

// -----------------------------------------------------------------------------

// Done is closed once the future is settled.
func (r *Readiness) Done() <-chan struct{} {
	return r.done
}

// -----------------------------------------------------------------------------

// Ready reports whether an instance is available.
func (r *Readiness) Ready() bool {
	select {
	case <-r.done:
		return r.err == nil
	default:
		return false
	}
}

// -----------------------------------------------------------------------------

// Wait blocks until the future settles or ctx ends.
func (r *Readiness) Wait(ctx context.Context) (interfaces.IChartInstance, error) {
	select {
	case <-r.done:
		return r.instance, r.err
	default:
	}

	select {
	case <-r.done:
		return r.instance, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
