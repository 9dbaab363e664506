package vm

import "fmt"

// Frame is one activation scope. Every object it references is a root and
// survives collection for as long as the frame is on the VM's frame stack.
// Frames do not own the objects they reference.
type Frame struct {
	vm       *VM
	refs     *Stack[*Object]
	released bool
}

// NewFrame allocates a frame with an empty root list and pushes it on the
// frame stack. This is the only way a frame becomes visible to the
// collector.
func (vm *VM) NewFrame() (*Frame, error) {
	refs, err := NewStack[*Object](vm.opts.FrameCapacity)
	if err != nil {
		return nil, fmt.Errorf("new frame: %w", err)
	}
	f := &Frame{vm: vm, refs: refs}
	if err := vm.frames.Push(f); err != nil {
		return nil, fmt.Errorf("new frame: %w", err)
	}
	vm.log.Debugf("pushed frame, depth %d", vm.frames.Len())
	return f, nil
}

// PopFrame removes the most recently pushed frame and releases its root
// list. Objects it referenced stay in the heap until a collection finds
// them unreachable.
func (vm *VM) PopFrame() error {
	f, err := vm.frames.Pop()
	if err != nil {
		return fmt.Errorf("pop frame: %w", err)
	}
	vm.log.Debugf("popped frame with %d roots, depth %d", f.Len(), vm.frames.Len())
	f.release()
	return nil
}

// Frames returns the frames on the frame stack, oldest first.
func (vm *VM) Frames() []*Frame {
	return vm.frames.Slice()
}

// FrameCount returns the depth of the frame stack.
func (vm *VM) FrameCount() int {
	return vm.frames.Len()
}

func (f *Frame) release() {
	f.refs.Reset()
	f.released = true
}

// Reference adds obj to the frame's roots. An object may be referenced any
// number of times, from one frame or many.
func (f *Frame) Reference(obj *Object) error {
	if f.released {
		return fmt.Errorf("reference: frame released: %w", ErrInvalidArgument)
	}
	if err := f.vm.owns(obj); err != nil {
		return fmt.Errorf("reference: %w", err)
	}
	if err := f.refs.Push(obj); err != nil {
		return fmt.Errorf("reference: %w", err)
	}
	return nil
}

// Len returns the number of references held by the frame.
func (f *Frame) Len() int { return f.refs.Len() }

// Roots returns the frame's references in the order they were added.
func (f *Frame) Roots() []*Object { return f.refs.Slice() }
