package vm

import "fmt"

// Add combines two objects according to their kinds:
//
//	Integer + Integer  -> Integer
//	Integer + Float    -> Float (either order; the integer is widened)
//	Float   + Float    -> Float
//	String  + String   -> String, the bytes of a followed by b
//	Vector3 + Vector3  -> Vector3 of the component-wise sums
//	Array   + Array    -> Array holding a's slots then b's
//
// Every other combination fails with ErrTypeMismatch. The result is always
// a fresh heap object and the operands are never modified.
func (vm *VM) Add(a, b *Object) (*Object, error) {
	if err := vm.owns(a); err != nil {
		return nil, fmt.Errorf("add: %w", err)
	}
	if err := vm.owns(b); err != nil {
		return nil, fmt.Errorf("add: %w", err)
	}

	switch pa := a.data.(type) {
	case *integerPayload:
		switch pb := b.data.(type) {
		case *integerPayload:
			return vm.NewInteger(pa.v + pb.v)
		case *floatPayload:
			return vm.NewFloat(float32(pa.v) + pb.v)
		}
	case *floatPayload:
		switch pb := b.data.(type) {
		case *integerPayload:
			return vm.NewFloat(pa.v + float32(pb.v))
		case *floatPayload:
			return vm.NewFloat(pa.v + pb.v)
		}
	case *stringPayload:
		if pb, ok := b.data.(*stringPayload); ok {
			buf := make([]byte, 0, len(pa.b)+len(pb.b))
			buf = append(buf, pa.b...)
			buf = append(buf, pb.b...)
			return vm.newObject(&stringPayload{b: buf})
		}
	case *vector3Payload:
		if pb, ok := b.data.(*vector3Payload); ok {
			return vm.addVector3(pa, pb)
		}
	case *arrayPayload:
		if pb, ok := b.data.(*arrayPayload); ok {
			return vm.addArray(pa, pb)
		}
	}
	return nil, fmt.Errorf("add %s + %s: %w", a.kind, b.kind, ErrTypeMismatch)
}

// addVector3 adds component-wise. If any step fails the partial results
// are taken back out of the heap before the error is returned.
func (vm *VM) addVector3(a, b *vector3Payload) (*Object, error) {
	var parts [3]*Object
	pairs := [3][2]*Object{{a.x, b.x}, {a.y, b.y}, {a.z, b.z}}

	rollback := func(n int) {
		for i := 0; i < n; i++ {
			vm.discardSum(parts[i])
		}
	}

	for i, pair := range pairs {
		sum, err := vm.Add(pair[0], pair[1])
		if err != nil {
			rollback(i)
			return nil, fmt.Errorf("add Vector3 component %d: %w", i, err)
		}
		parts[i] = sum
	}

	v, err := vm.NewVector3(parts[0], parts[1], parts[2])
	if err != nil {
		rollback(len(parts))
		return nil, err
	}
	return v, nil
}

// discardSum untracks a result of Add that never reached the caller. A
// Vector3 sum owns every object below it, since each of its components is
// itself a fresh sum, so the whole tree goes. Array sums share their slots
// with the operands and only the array itself is dropped.
func (vm *VM) discardSum(sum *Object) {
	todo := []*Object{sum}
	for len(todo) > 0 {
		o := todo[len(todo)-1]
		todo = todo[:len(todo)-1]
		if p, ok := o.data.(*vector3Payload); ok && !o.freed {
			todo = append(todo, p.x, p.y, p.z)
		}
		vm.heap.untrack(o)
	}
}

// addArray concatenates slot lists. Empty slots are carried over as empty.
func (vm *VM) addArray(a, b *arrayPayload) (*Object, error) {
	slots := make([]*Object, 0, len(a.slots)+len(b.slots))
	slots = append(slots, a.slots...)
	slots = append(slots, b.slots...)
	return vm.newObject(&arrayPayload{slots: slots})
}
