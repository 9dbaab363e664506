package vm

import (
	"errors"
	"testing"
)

// ---------------------------------------------------------------------------
// VM lifecycle tests
// ---------------------------------------------------------------------------

func TestNewVMDefaults(t *testing.T) {
	vm := NewVM()
	defer vm.Free()

	if vm.Heap().Len() != 0 || vm.FrameCount() != 0 {
		t.Errorf("fresh VM has %d objects and %d frames", vm.Heap().Len(), vm.FrameCount())
	}
	if vm.heap.objects.Cap() != 8 || vm.frames.Cap() != 8 {
		t.Errorf("capacities = %d/%d, want 8/8", vm.heap.objects.Cap(), vm.frames.Cap())
	}
	if vm.LastGCStats() != nil {
		t.Error("LastGCStats should be nil before any collection")
	}
}

func TestNewVMWithOptionsRejectsNegative(t *testing.T) {
	for _, opts := range []Options{
		{HeapCapacity: -1},
		{FrameStackCapacity: -1},
		{FrameCapacity: -1},
		{MaxObjects: -1},
	} {
		if _, err := NewVMWithOptions(opts); err == nil {
			t.Errorf("NewVMWithOptions(%+v) should fail", opts)
		}
	}
}

func TestFreeReleasesEverything(t *testing.T) {
	vm := NewVM()

	frame, _ := vm.NewFrame()
	live, _ := vm.NewInteger(1)
	_ = frame.Reference(live)
	dead, _ := vm.NewString("x")

	vm.Free()

	if !live.Freed() || !dead.Freed() {
		t.Error("Free must release reachable and unreachable objects")
	}
	if vm.Heap().Len() != 0 || vm.FrameCount() != 0 {
		t.Errorf("after Free: %d objects, %d frames", vm.Heap().Len(), vm.FrameCount())
	}
	if err := frame.Reference(live); err == nil {
		t.Error("frames must be released by Free")
	}
}

func TestHeapLimit(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxObjects = 3
	vm, err := NewVMWithOptions(opts)
	if err != nil {
		t.Fatalf("NewVMWithOptions: %v", err)
	}
	defer vm.Free()

	frame, _ := vm.NewFrame()
	keep, _ := vm.NewInteger(1)
	_ = frame.Reference(keep)
	_, _ = vm.NewInteger(2)
	_, _ = vm.NewInteger(3)

	if obj, err := vm.NewInteger(4); !errors.Is(err, ErrAllocation) || obj != nil {
		t.Fatalf("allocation past limit = %v, %v; want nil, ErrAllocation", obj, err)
	}
	if vm.Heap().Len() != 3 {
		t.Errorf("heap size = %d, want 3", vm.Heap().Len())
	}

	vm.CollectGarbage()

	if _, err := vm.NewInteger(4); err != nil {
		t.Errorf("allocation after collection: %v", err)
	}
}

func TestAddVector3AtHeapLimit(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxObjects = 6
	vm, _ := NewVMWithOptions(opts)
	defer vm.Free()

	one, _ := vm.NewInteger(1)
	v, _ := vm.NewVector3(one, one, one)
	// room for the three component sums but not the result vector
	_, _ = vm.NewInteger(0)

	before := vm.Heap().Len()
	if _, err := vm.Add(v, v); !errors.Is(err, ErrAllocation) {
		t.Fatalf("Add at limit = %v, want ErrAllocation", err)
	}
	if vm.Heap().Len() != before {
		t.Errorf("heap size = %d, want %d after rollback", vm.Heap().Len(), before)
	}
}

func TestIndependentVMs(t *testing.T) {
	a := NewVM()
	defer a.Free()
	b := NewVM()
	defer b.Free()

	x, _ := a.NewInteger(1)
	y, _ := b.NewInteger(2)

	if _, err := a.Add(x, y); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("cross-VM Add = %v, want ErrInvalidArgument", err)
	}
	arr, _ := a.NewArray(1)
	if err := arr.Set(0, y); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("cross-VM Set = %v, want ErrInvalidArgument", err)
	}

	b.CollectGarbage()
	if a.Heap().Len() != 2 {
		t.Errorf("collecting one VM touched the other: %d objects", a.Heap().Len())
	}
}
