// Package event implements the Event Dispatch Contract (C9): external
// producers (GUI, network, timers) inject events that the kernel answers by
// performing a well-known message on its root object.
//
// Delivery is serialized onto a single goroutine running a dedicated
// control loop, grounded on the teacher's Scheduler (scheduler.go): a
// mutex-free select loop reading off command channels, generalized here
// from "coroutine scheduling" to "inbound event serialization."
package event

import (
	"fmt"

	"github.com/ImPhilipGlover/EntropicGarden/kernel"
)

// Kind identifies an event's category (§4.8).
type Kind string

// Recognized event kinds. Custom events use the "custom:<name>" form
// produced by CustomKind.
const (
	MouseDown Kind = "mouseDown"
	MouseUp   Kind = "mouseUp"
	MouseMove Kind = "mouseMove"
	Key       Kind = "key"
)

// CustomKind builds the "custom:<name>" kind for application-defined events.
func CustomKind(name string) Kind {
	return Kind("custom:" + name)
}

// messageFor maps an event kind to the well-known message performed on the
// root object. Each built-in kind gets its own slot name so handlers can be
// attached per kind; every custom:<name> kind is delivered to the shared
// onEvent slot, with only the payload as its argument.
func messageFor(kind Kind) string {
	switch kind {
	case MouseDown:
		return "onMouseDown"
	case MouseUp:
		return "onMouseUp"
	case MouseMove:
		return "onMouseMove"
	case Key:
		return "onKey"
	default:
		return "onEvent"
	}
}

// Dispatcher delivers events to a kernel, serialized with respect to every
// other dispatch and to ordinary message sends on the same kernel.
type Dispatcher interface {
	Dispatch(kind Kind, payload *kernel.Map) (kernel.Value, error)
	Close()
}

type request struct {
	kind    Kind
	payload *kernel.Map
	reply   chan response
}

type response struct {
	value kernel.Value
	err   error
}

// InProcessDispatcher is the reference Dispatcher: a single goroutine owns
// the kernel for the duration of each dispatch, matching §5's "event
// delivery is single-threaded."
type InProcessDispatcher struct {
	k        *kernel.Kernel
	requests chan request
	done     chan struct{}
}

// NewInProcessDispatcher starts the dispatch loop for k and returns a
// Dispatcher. Callers must call Close when finished to stop the goroutine.
func NewInProcessDispatcher(k *kernel.Kernel) *InProcessDispatcher {
	d := &InProcessDispatcher{
		k:        k,
		requests: make(chan request),
		done:     make(chan struct{}),
	}
	go d.loop()
	return d
}

// loop is the dedicated control goroutine, grounded on Scheduler.schedule's
// select-over-channels shape.
func (d *InProcessDispatcher) loop() {
	for {
		select {
		case req := <-d.requests:
			v, err := d.apply(req.kind, req.payload)
			req.reply <- response{value: v, err: err}
		case <-d.done:
			return
		}
	}
}

func (d *InProcessDispatcher) apply(kind Kind, payload *kernel.Map) (kernel.Value, error) {
	msg := messageFor(kind)
	args := []kernel.Value{payload}
	if !d.k.HasSlotLocal(d.k.Root, msg) {
		// No handler registered for this kind: a no-op success rather than
		// DoesNotUnderstand, since most event kinds are never handled.
		return kernel.Nil{}, nil
	}
	return d.k.Perform(d.k.Root, msg, args)
}

// Dispatch injects an event, blocking until the handler (if any) completes.
func (d *InProcessDispatcher) Dispatch(kind Kind, payload *kernel.Map) (kernel.Value, error) {
	if payload == nil {
		payload = kernel.NewMap()
	}
	reply := make(chan response, 1)
	select {
	case d.requests <- request{kind: kind, payload: payload, reply: reply}:
	case <-d.done:
		return nil, fmt.Errorf("event: dispatcher closed")
	}
	resp := <-reply
	return resp.value, resp.err
}

// Close stops the dispatch loop. Dispatch calls made after Close return an
// error.
func (d *InProcessDispatcher) Close() {
	close(d.done)
}
