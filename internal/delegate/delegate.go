// Package delegate wires publishers to listeners. A publish call hands the
// payload to every listener in subscription order, one after another.
package delegate

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// Listener receives payloads from a publisher.
type Listener interface {
	OnData(ctx context.Context, sender any, data any) error
}

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc func(ctx context.Context, sender any, data any) error

func (f ListenerFunc) OnData(ctx context.Context, sender any, data any) error {
	return f(ctx, sender, data)
}

// Emitter is implemented by anything that has listeners. The source registry
// walks Emitters to draw the publish graph.
type Emitter interface {
	Listeners() []Listener
}

// ListenerError reports a failure of one listener during Publish.
type ListenerError struct {
	Listener string
	Err      error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener %s: %v", e.Listener, e.Err)
}

func (e *ListenerError) Unwrap() error { return e.Err }

// Delegates is meant to be embedded. The zero value is ready to use.
type Delegates struct {
	mu        sync.RWMutex
	listeners []Listener
}

// Subscribe appends l to the listener list.
func (d *Delegates) Subscribe(l Listener) {
	if l == nil {
		return
	}
	d.mu.Lock()
	d.listeners = append(d.listeners, l)
	d.mu.Unlock()
}

// Listeners returns a copy of the listener list in subscription order.
func (d *Delegates) Listeners() []Listener {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Listener, len(d.listeners))
	copy(out, d.listeners)
	return out
}

// Publish calls every listener with data. A failing or panicking listener
// does not stop the rest; all failures come back joined.
func (d *Delegates) Publish(ctx context.Context, sender any, data any) error {
	var errs []error
	for _, l := range d.Listeners() {
		if err := call(ctx, l, sender, data); err != nil {
			errs = append(errs, &ListenerError{Listener: TypeName(l), Err: err})
		}
	}
	return errors.Join(errs...)
}

func call(ctx context.Context, l Listener, sender, data any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return l.OnData(ctx, sender, data)
}

// Namer lets a node choose its own name in diagnostics.
type Namer interface {
	NodeName() string
}

// TypeName returns the node name used in diagnostics: NodeName when
// implemented, otherwise the dereferenced type name.
func TypeName(v any) string {
	if n, ok := v.(Namer); ok {
		return n.NodeName()
	}
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return t.String()
	}
	return t.Name()
}
