package engine

import (
	"context"

	"github.com/tf2hud/hudman/pkg/types"
)

// Operation is the caller's handle on an in-flight install, uninstall or
// switch. The engine closes Done exactly once; Err is meaningful only after
// Done is closed.
type Operation struct {
	id     string
	kind   types.OpKind
	done   chan struct{}
	cancel context.CancelFunc

	// err is written once, before done is closed.
	err error
}

func newOperation(id string, kind types.OpKind, cancel context.CancelFunc) *Operation {
	return &Operation{
		id:     id,
		kind:   kind,
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

// ID returns the HUD identifier the operation acts on.
func (o *Operation) ID() string { return o.id }

// Kind returns what the operation does.
func (o *Operation) Kind() types.OpKind { return o.kind }

// Done is closed when the operation reaches a terminal state.
func (o *Operation) Done() <-chan struct{} { return o.done }

// Err returns the terminal error, nil on success. Valid after Done closes.
func (o *Operation) Err() error { return o.err }

// Wait blocks until the operation completes or ctx is cancelled. A
// cancelled ctx does not cancel the operation itself.
func (o *Operation) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Operation) finish(err error) {
	o.err = err
	close(o.done)
}
