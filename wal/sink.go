package wal

import (
	"fmt"

	"github.com/ImPhilipGlover/EntropicGarden/kernel"
)

// KernelSink rebuilds a kernel's in-memory slots from replayed WAL
// records. It resolves each record's object_id against a caller-provided
// table of live objects (callers must pre-create the objects that will
// receive replayed writes, e.g. from a separate object-graph snapshot, since
// the WAL alone only records slot values, not the delegation graph).
//
// ApplyReplay uses Kernel.SetSlot directly rather than
// SetSlotTransactional, so replayed writes are never re-logged, satisfying
// §4.6's "replay writes MUST NOT re-log."
type KernelSink struct {
	K       *kernel.Kernel
	Objects map[uint64]*kernel.Object
}

// NewKernelSink creates a sink that replays into k, resolving object ids
// against objects.
func NewKernelSink(k *kernel.Kernel, objects map[uint64]*kernel.Object) *KernelSink {
	return &KernelSink{K: k, Objects: objects}
}

// ApplyReplay implements Sink.
func (s *KernelSink) ApplyReplay(rec Record) error {
	obj, ok := s.Objects[rec.ObjectID]
	if !ok {
		return fmt.Errorf("wal: replay: unknown object id %d for slot %q", rec.ObjectID, rec.SlotName)
	}
	v, err := rec.Value()
	if err != nil {
		return err
	}
	if placeholderID, isPlaceholder := ObjectPlaceholderID(v); isPlaceholder {
		target, ok := s.Objects[placeholderID]
		if !ok {
			return fmt.Errorf("wal: replay: slot %q references unknown object id %d", rec.SlotName, placeholderID)
		}
		v = target
	}
	return s.K.SetSlot(obj, rec.SlotName, v)
}
