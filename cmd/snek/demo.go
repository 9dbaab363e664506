package main

import (
	"fmt"
	"io"

	"github.com/chazu/snek/vm"
)

// builder wraps a VM with a sticky error: once an operation fails every
// later call is a no-op returning nil, and err holds the first failure.
type builder struct {
	v   *vm.VM
	err error
}

func (b *builder) do(op string, f func() (*vm.Object, error)) *vm.Object {
	if b.err != nil {
		return nil
	}
	o, err := f()
	if err != nil {
		b.err = fmt.Errorf("%s: %w", op, err)
		return nil
	}
	return o
}

func (b *builder) int(i int32) *vm.Object {
	return b.do("integer", func() (*vm.Object, error) { return b.v.NewInteger(i) })
}

func (b *builder) float(f float32) *vm.Object {
	return b.do("float", func() (*vm.Object, error) { return b.v.NewFloat(f) })
}

func (b *builder) str(s string) *vm.Object {
	return b.do("string", func() (*vm.Object, error) { return b.v.NewString(s) })
}

func (b *builder) vector(x, y, z *vm.Object) *vm.Object {
	return b.do("vector3", func() (*vm.Object, error) { return b.v.NewVector3(x, y, z) })
}

// array allocates an array holding elems in order.
func (b *builder) array(elems ...*vm.Object) *vm.Object {
	arr := b.do("array", func() (*vm.Object, error) { return b.v.NewArray(len(elems)) })
	for i, e := range elems {
		b.set(arr, i, e)
	}
	return arr
}

func (b *builder) set(arr *vm.Object, i int, e *vm.Object) {
	if b.err != nil {
		return
	}
	if err := arr.Set(i, e); err != nil {
		b.err = fmt.Errorf("set %d: %w", i, err)
	}
}

func (b *builder) add(x, y *vm.Object) *vm.Object {
	return b.do("add", func() (*vm.Object, error) { return b.v.Add(x, y) })
}

func (b *builder) root(f *vm.Frame, objs ...*vm.Object) {
	for _, o := range objs {
		if b.err != nil {
			return
		}
		if err := f.Reference(o); err != nil {
			b.err = fmt.Errorf("reference: %w", err)
		}
	}
}

// runDemo walks through every kind of value, the length and add
// operations, and a collection of a frame-rooted graph, printing as it
// goes. When w is io.Discard only the final heap state matters; the
// snapshot command uses it that way.
func runDemo(w io.Writer, v *vm.VM) error {
	b := &builder{v: v}

	frame, err := v.NewFrame()
	if err != nil {
		return err
	}

	i := b.int(42)
	f := b.float(3.14)
	s := b.str("hello world")
	vec := b.vector(b.int(1), b.int(2), b.int(3))
	one := b.int(1)
	same := b.vector(one, one, one)
	if b.err != nil {
		return b.err
	}
	for _, o := range []*vm.Object{i, f, s, vec, same} {
		fmt.Fprintf(w, "%s: %s\n", o.Kind(), o)
	}

	arr := b.do("array", func() (*vm.Object, error) { return v.NewArray(5) })
	b.set(arr, 0, b.int(3))
	b.set(arr, 1, b.int(15))
	if b.err != nil {
		return b.err
	}
	for idx := 0; idx < 2; idx++ {
		e, err := arr.Get(idx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "array[%d] = %s\n", idx, e)
	}

	for _, o := range []*vm.Object{i, f, s, vec, arr} {
		n, err := o.Len()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "len(%s) = %d\n", o.Kind(), n)
	}

	hello := b.str("hello ")
	v135 := b.vector(b.int(1), b.int(3), b.int(5))
	six := b.int(6)
	hi := b.str("hi")
	sums := [][2]*vm.Object{
		{b.int(1), b.int(3)},
		{b.float(1.5), b.float(3.5)},
		{b.str("hello"), b.str(", world!")},
		{hello, hello},
		{v135, v135},
		{b.array(six, six), b.array(hi, hi, hi)},
	}
	if b.err != nil {
		return b.err
	}
	var results []*vm.Object
	for _, p := range sums {
		r := b.add(p[0], p[1])
		if b.err != nil {
			return b.err
		}
		fmt.Fprintf(w, "add(%s, %s) = %s\n", p[0], p[1], r)
		results = append(results, r)
	}

	// Keep the populated array and the concatenated array alive; the
	// rest of the demo values become garbage.
	concat := results[len(results)-1]
	b.root(frame, arr, concat)
	if b.err != nil {
		return b.err
	}

	fmt.Fprintf(w, "heap before collection: %d objects\n", v.Heap().Len())
	stats := v.CollectGarbage()
	fmt.Fprintf(w, "%s\n", stats)
	fmt.Fprintf(w, "array survives: %s\n", arr)
	fmt.Fprintf(w, "concatenation survives: %s\n", concat)
	return nil
}
