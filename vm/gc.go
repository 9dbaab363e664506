package vm

import (
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Mark / trace / sweep collector
// ---------------------------------------------------------------------------

// GCStats holds statistics from a single collection.
type GCStats struct {
	Cycle      uint64 // 1 for the first collection of a VM
	Roots      int    // non-nil frame references seen by mark
	Reachable  int    // objects marked by mark and trace
	Swept      int    // objects released by sweep
	SweptBytes int
	Live       int // heap size after sweep
	Duration   time.Duration
	Timestamp  time.Time
}

func (s *GCStats) String() string {
	return fmt.Sprintf("gc #%d: roots=%d reachable=%d swept=%d (%d bytes) live=%d in %s",
		s.Cycle, s.Roots, s.Reachable, s.Swept, s.SweptBytes, s.Live, s.Duration)
}

// CollectGarbage runs a full collection: mark the frame roots, trace
// everything reachable from them, then sweep whatever was not reached. It
// runs to completion before returning.
func (vm *VM) CollectGarbage() *GCStats {
	start := time.Now()
	stats := &GCStats{Timestamp: start}

	stats.Roots = vm.mark()
	stats.Reachable = vm.trace()
	stats.Swept, stats.SweptBytes = vm.sweep()
	stats.Live = vm.heap.Len()
	stats.Duration = time.Since(start)

	vm.gcCount++
	stats.Cycle = vm.gcCount
	vm.lastGC = stats

	if vm.opts.LogStats {
		vm.gcLog.Infof("%s", stats)
	} else {
		vm.gcLog.Debugf("%s", stats)
	}
	return stats
}

// GCCount returns the number of completed collections.
func (vm *VM) GCCount() uint64 { return vm.gcCount }

// LastGCStats returns the statistics of the most recent collection, or nil
// if none has run.
func (vm *VM) LastGCStats() *GCStats { return vm.lastGC }

// mark flags every object referenced directly by a frame. It does not
// follow references; that is trace's job.
func (vm *VM) mark() int {
	roots := 0
	vm.frames.Each(func(_ int, f *Frame) bool {
		f.refs.Each(func(_ int, obj *Object) bool {
			if obj != nil {
				obj.marked = true
				roots++
			}
			return true
		})
		return true
	})
	return roots
}

// trace propagates marks from the roots through composite objects. The
// gray worklist holds objects that are marked but whose children have not
// been visited yet. Marking happens before an object is pushed, so each
// object enters the worklist at most once and shared or cyclic structures
// terminate.
func (vm *VM) trace() int {
	gray, err := NewStack[*Object](8)
	if err != nil {
		panic(fmt.Sprintf("vm: cannot allocate gray worklist: %v", err))
	}

	reachable := 0
	vm.heap.objects.Each(func(_ int, obj *Object) bool {
		if obj.marked {
			reachable++
			pushGray(gray, obj)
		}
		return true
	})

	for gray.Len() > 0 {
		obj, _ := gray.Pop()
		reachable += blacken(gray, obj)
	}
	return reachable
}

// blacken visits the children of obj, returning how many it newly marked.
func blacken(gray *Stack[*Object], obj *Object) int {
	n := 0
	obj.data.children(func(child *Object) {
		if child == nil || child.marked {
			return
		}
		child.marked = true
		pushGray(gray, child)
		n++
	})
	return n
}

// pushGray pushes onto the worklist. The worklist is unbounded, so a
// failure here means the collector can no longer keep its invariants.
func pushGray(gray *Stack[*Object], obj *Object) {
	if err := gray.Push(obj); err != nil {
		panic(fmt.Sprintf("vm: gray worklist: %v", err))
	}
}

// sweep clears the mark of every survivor and releases everything else,
// then compacts the heap.
func (vm *VM) sweep() (swept, bytes int) {
	h := vm.heap
	h.objects.Each(func(i int, obj *Object) bool {
		if obj.marked {
			obj.marked = false
			return true
		}
		bytes += obj.data.size()
		h.release(obj)
		_ = h.objects.Set(i, nil)
		swept++
		return true
	})
	h.objects.RemoveZeros()
	return swept, bytes
}
