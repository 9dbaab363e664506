package vm

import (
	"fmt"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// VM: owner of one heap and one frame stack
// ---------------------------------------------------------------------------

// Options configures a VM.
type Options struct {
	// HeapCapacity is the initial capacity of the heap's tracking stack.
	HeapCapacity int
	// FrameStackCapacity is the initial capacity of the frame stack.
	FrameStackCapacity int
	// FrameCapacity is the initial capacity of each frame's root list.
	FrameCapacity int
	// MaxObjects caps the number of live objects. Constructors fail with
	// ErrAllocation once it is reached. Zero means no cap.
	MaxObjects int
	// LogStats logs every collection at info level instead of debug.
	LogStats bool
}

// DefaultOptions returns the options used by NewVM.
func DefaultOptions() Options {
	return Options{
		HeapCapacity:       8,
		FrameStackCapacity: 8,
		FrameCapacity:      8,
	}
}

// VM owns exactly one heap and one frame stack for its whole lifetime.
// Every value operation goes through an explicit VM, so independent VMs
// can coexist.
//
// A VM is not safe for concurrent use.
type VM struct {
	opts   Options
	heap   *Heap
	frames *Stack[*Frame]

	gcCount uint64
	lastGC  *GCStats

	log   commonlog.Logger
	gcLog commonlog.Logger
}

// NewVM creates a VM with DefaultOptions.
func NewVM() *VM {
	vm, err := NewVMWithOptions(DefaultOptions())
	if err != nil {
		panic(fmt.Sprintf("vm: default options rejected: %v", err))
	}
	return vm
}

// NewVMWithOptions creates a VM with its heap and frame stack.
func NewVMWithOptions(opts Options) (*VM, error) {
	if opts.FrameCapacity < 0 {
		return nil, fmt.Errorf("frame capacity %d: %w", opts.FrameCapacity, ErrInvalidArgument)
	}
	if opts.MaxObjects < 0 {
		return nil, fmt.Errorf("max objects %d: %w", opts.MaxObjects, ErrInvalidArgument)
	}

	heap, err := newHeap(opts.HeapCapacity, opts.MaxObjects)
	if err != nil {
		return nil, err
	}
	frames, err := NewStack[*Frame](opts.FrameStackCapacity)
	if err != nil {
		return nil, fmt.Errorf("frame stack: %w", err)
	}

	vm := &VM{
		opts:   opts,
		heap:   heap,
		frames: frames,
		log:    commonlog.GetLogger("snek.vm"),
		gcLog:  commonlog.GetLogger("snek.gc"),
	}
	return vm, nil
}

// Options returns the options the VM was created with.
func (vm *VM) Options() Options { return vm.opts }

// Heap returns the VM's heap.
func (vm *VM) Heap() *Heap { return vm.heap }

// Free tears the VM down: every frame is released and every object still
// in the heap is freed, reachable or not. The VM must not be used again.
func (vm *VM) Free() {
	frames := vm.frames.Len()
	vm.frames.Each(func(_ int, f *Frame) bool {
		f.release()
		return true
	})
	vm.frames.Reset()
	objects := vm.heap.releaseAll()
	vm.log.Debugf("freed VM: %d frames, %d objects", frames, objects)
}
