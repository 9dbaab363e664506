package vm

import "fmt"

// Kind identifies the variant held by an Object. It never changes after
// construction.
type Kind uint8

const (
	KindInteger Kind = iota
	KindFloat
	KindString
	KindVector3
	KindArray
)

var kindNames = [...]string{
	KindInteger: "Integer",
	KindFloat:   "Float",
	KindString:  "String",
	KindVector3: "Vector3",
	KindArray:   "Array",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ---------------------------------------------------------------------------
// Payloads
// ---------------------------------------------------------------------------

// payload is the closed set of variant bodies. Every kind-dispatched
// operation that does not combine two objects lives here, so a new kind
// cannot compile until it answers all of them.
type payload interface {
	kind() Kind
	length() int
	// children visits the outgoing references, including empty array slots
	// as nil.
	children(visit func(*Object))
	// release drops storage owned by the payload. Referenced objects are
	// left alone: their lifetime belongs to the heap.
	release()
	size() int
}

type integerPayload struct{ v int32 }

func (p *integerPayload) kind() Kind             { return KindInteger }
func (p *integerPayload) length() int            { return 1 }
func (p *integerPayload) children(func(*Object)) {}
func (p *integerPayload) release()               {}
func (p *integerPayload) size() int              { return 4 }

type floatPayload struct{ v float32 }

func (p *floatPayload) kind() Kind             { return KindFloat }
func (p *floatPayload) length() int            { return 1 }
func (p *floatPayload) children(func(*Object)) {}
func (p *floatPayload) release()               {}
func (p *floatPayload) size() int              { return 4 }

type stringPayload struct{ b []byte }

func (p *stringPayload) kind() Kind             { return KindString }
func (p *stringPayload) length() int            { return len(p.b) }
func (p *stringPayload) children(func(*Object)) {}
func (p *stringPayload) release()               { p.b = nil }
func (p *stringPayload) size() int              { return len(p.b) }

type vector3Payload struct{ x, y, z *Object }

func (p *vector3Payload) kind() Kind  { return KindVector3 }
func (p *vector3Payload) length() int { return 3 }
func (p *vector3Payload) children(visit func(*Object)) {
	visit(p.x)
	visit(p.y)
	visit(p.z)
}
func (p *vector3Payload) release()  { p.x, p.y, p.z = nil, nil, nil }
func (p *vector3Payload) size() int { return 24 }

type arrayPayload struct{ slots []*Object }

func (p *arrayPayload) kind() Kind  { return KindArray }
func (p *arrayPayload) length() int { return len(p.slots) }
func (p *arrayPayload) children(visit func(*Object)) {
	for _, o := range p.slots {
		visit(o)
	}
}
func (p *arrayPayload) release()  { p.slots = nil }
func (p *arrayPayload) size() int { return 8 * len(p.slots) }

// ---------------------------------------------------------------------------
// Object
// ---------------------------------------------------------------------------

// Object is a heap-boxed dynamic value. Objects are only created through a
// VM, which registers them in its heap; the heap alone decides when an
// object's storage is released.
//
// Vector3 and Array objects hold non-owning references to their
// components. Releasing a composite never releases what it points to.
type Object struct {
	id     uint64 // allocation serial, unique within one heap
	heap   *Heap
	kind   Kind
	data   payload
	marked bool
	freed  bool
}

// Kind returns the object's variant.
func (o *Object) Kind() Kind { return o.kind }

// ID returns the allocation serial number assigned when the object was
// tracked. The first object of a heap has ID 1.
func (o *Object) ID() uint64 { return o.id }

// Marked reports whether the collector has found the object reachable in
// the cycle currently running. It is false outside a collection.
func (o *Object) Marked() bool { return o.marked }

// Freed reports whether the collector has reclaimed the object.
func (o *Object) Freed() bool { return o.freed }

// check validates o as an operand.
func (o *Object) check() error {
	if o == nil {
		return fmt.Errorf("nil object: %w", ErrInvalidArgument)
	}
	if o.freed {
		return fmt.Errorf("%s #%d: %w", o.kind, o.id, ErrFreed)
	}
	return nil
}

// Int returns the payload of an Integer.
func (o *Object) Int() (int32, bool) {
	if o.check() != nil {
		return 0, false
	}
	p, ok := o.data.(*integerPayload)
	if !ok {
		return 0, false
	}
	return p.v, true
}

// Float returns the payload of a Float.
func (o *Object) Float() (float32, bool) {
	if o.check() != nil {
		return 0, false
	}
	p, ok := o.data.(*floatPayload)
	if !ok {
		return 0, false
	}
	return p.v, true
}

// Str returns a copy of a String's bytes.
func (o *Object) Str() (string, bool) {
	if o.check() != nil {
		return "", false
	}
	p, ok := o.data.(*stringPayload)
	if !ok {
		return "", false
	}
	return string(p.b), true
}

// Vector returns the three components of a Vector3.
func (o *Object) Vector() (x, y, z *Object, ok bool) {
	if o.check() != nil {
		return nil, nil, nil, false
	}
	p, ok := o.data.(*vector3Payload)
	if !ok {
		return nil, nil, nil, false
	}
	return p.x, p.y, p.z, true
}

// Len returns 1 for Integer and Float, the byte count of a String, 3 for a
// Vector3 and the slot count of an Array.
func (o *Object) Len() (int, error) {
	if err := o.check(); err != nil {
		return 0, err
	}
	return o.data.length(), nil
}

func (o *Object) array() (*arrayPayload, error) {
	if err := o.check(); err != nil {
		return nil, err
	}
	p, ok := o.data.(*arrayPayload)
	if !ok {
		return nil, fmt.Errorf("%s is not an Array: %w", o.kind, ErrTypeMismatch)
	}
	return p, nil
}

// Set stores value in slot index of an Array. The previous occupant is not
// released; whether it survives is decided by the next collection.
func (o *Object) Set(index int, value *Object) error {
	p, err := o.array()
	if err != nil {
		return err
	}
	if err := value.check(); err != nil {
		return fmt.Errorf("array set: %w", err)
	}
	if value.heap != o.heap {
		return fmt.Errorf("array set: value #%d belongs to another heap: %w", value.id, ErrInvalidArgument)
	}
	if index < 0 || index >= len(p.slots) {
		return fmt.Errorf("array set index %d of %d: %w", index, len(p.slots), ErrOutOfBounds)
	}
	p.slots[index] = value
	return nil
}

// Get returns the occupant of slot index of an Array. An empty slot yields
// a nil object and a nil error.
func (o *Object) Get(index int) (*Object, error) {
	p, err := o.array()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(p.slots) {
		return nil, fmt.Errorf("array get index %d of %d: %w", index, len(p.slots), ErrOutOfBounds)
	}
	return p.slots[index], nil
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// newObject boxes p and tracks it in the VM heap. Nothing is returned when
// the heap refuses the object.
func (vm *VM) newObject(p payload) (*Object, error) {
	obj := &Object{kind: p.kind(), data: p}
	if err := vm.heap.track(obj); err != nil {
		return nil, fmt.Errorf("new %s: %w", obj.kind, err)
	}
	return obj, nil
}

// NewInteger allocates an Integer.
func (vm *VM) NewInteger(v int32) (*Object, error) {
	return vm.newObject(&integerPayload{v: v})
}

// NewFloat allocates a Float.
func (vm *VM) NewFloat(v float32) (*Object, error) {
	return vm.newObject(&floatPayload{v: v})
}

// NewString allocates a String holding its own copy of s.
func (vm *VM) NewString(s string) (*Object, error) {
	return vm.newObject(&stringPayload{b: []byte(s)})
}

// NewVector3 allocates a Vector3 over three existing objects. The same
// object may be used for several components.
func (vm *VM) NewVector3(x, y, z *Object) (*Object, error) {
	for _, c := range [...]*Object{x, y, z} {
		if err := vm.owns(c); err != nil {
			return nil, fmt.Errorf("new Vector3: %w", err)
		}
	}
	return vm.newObject(&vector3Payload{x: x, y: y, z: z})
}

// NewArray allocates an Array of size empty slots.
func (vm *VM) NewArray(size int) (*Object, error) {
	if size < 0 {
		return nil, fmt.Errorf("new Array of size %d: %w", size, ErrInvalidArgument)
	}
	return vm.newObject(&arrayPayload{slots: make([]*Object, size)})
}

// owns validates obj as an operand of this VM.
func (vm *VM) owns(obj *Object) error {
	if err := obj.check(); err != nil {
		return err
	}
	if obj.heap != vm.heap {
		return fmt.Errorf("%s #%d belongs to another VM: %w", obj.kind, obj.id, ErrInvalidArgument)
	}
	return nil
}
