package vm

import (
	"fmt"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Heap: registry of every allocated, not yet collected object
// ---------------------------------------------------------------------------

// Heap tracks every object a VM has constructed, independent of whether it
// is reachable. Membership means "allocated and not yet collected". An
// object enters exactly once, at construction, and leaves exactly once,
// when swept or when the VM is freed.
type Heap struct {
	objects *Stack[*Object]
	limit   int    // maximum live objects, 0 for unbounded
	serial  uint64 // last assigned object ID
	log     commonlog.Logger
}

func newHeap(capacity, limit int) (*Heap, error) {
	objects, err := NewStack[*Object](capacity)
	if err != nil {
		return nil, fmt.Errorf("heap: %w", err)
	}
	return &Heap{
		objects: objects,
		limit:   limit,
		log:     commonlog.GetLogger("snek.heap"),
	}, nil
}

// track registers a freshly constructed object.
func (h *Heap) track(obj *Object) error {
	if obj.heap != nil {
		return fmt.Errorf("object #%d already tracked: %w", obj.id, ErrInvalidArgument)
	}
	if h.limit > 0 && h.objects.Len() >= h.limit {
		h.log.Warningf("heap limit of %d objects reached", h.limit)
		return fmt.Errorf("heap limit %d reached: %w", h.limit, ErrAllocation)
	}
	if err := h.objects.Push(obj); err != nil {
		return fmt.Errorf("heap: %w", err)
	}
	h.serial++
	obj.id = h.serial
	obj.heap = h
	return nil
}

// untrack removes an object that never escaped to the caller and releases
// it. It searches from the top, where recent allocations live.
func (h *Heap) untrack(obj *Object) bool {
	for i := h.objects.Len() - 1; i >= 0; i-- {
		o, _ := h.objects.At(i)
		if o != obj {
			continue
		}
		_ = h.objects.Set(i, nil)
		h.objects.RemoveZeros()
		h.release(obj)
		return true
	}
	return false
}

// release frees the object's own payload storage. Components of composite
// objects are not touched.
func (h *Heap) release(obj *Object) {
	obj.data.release()
	obj.marked = false
	obj.freed = true
}

// releaseAll frees every tracked object regardless of liveness.
func (h *Heap) releaseAll() int {
	n := h.objects.Len()
	h.objects.Each(func(_ int, obj *Object) bool {
		h.release(obj)
		return true
	})
	h.objects.Reset()
	return n
}

// Len returns the number of tracked objects.
func (h *Heap) Len() int { return h.objects.Len() }

// Limit returns the maximum number of live objects, or 0 when unbounded.
func (h *Heap) Limit() int { return h.limit }

// Contains reports whether obj is currently tracked by this heap.
func (h *Heap) Contains(obj *Object) bool {
	if obj == nil || obj.heap != h || obj.freed {
		return false
	}
	found := false
	h.objects.Each(func(_ int, o *Object) bool {
		found = o == obj
		return !found
	})
	return found
}

// Objects returns the tracked objects in allocation order.
func (h *Heap) Objects() []*Object {
	return h.objects.Slice()
}

// Bytes returns the approximate payload storage held by tracked objects.
func (h *Heap) Bytes() int {
	total := 0
	h.objects.Each(func(_ int, o *Object) bool {
		total += o.data.size()
		return true
	})
	return total
}
