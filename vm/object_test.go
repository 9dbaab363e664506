package vm

import (
	"errors"
	"testing"
)

// ---------------------------------------------------------------------------
// Constructor tests
// ---------------------------------------------------------------------------

func TestConstructorsTrackObjects(t *testing.T) {
	vm := NewVM()
	defer vm.Free()

	i, err := vm.NewInteger(42)
	if err != nil {
		t.Fatalf("NewInteger: %v", err)
	}
	f, err := vm.NewFloat(3.14)
	if err != nil {
		t.Fatalf("NewFloat: %v", err)
	}
	s, err := vm.NewString("hello world")
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}

	if v, ok := i.Int(); !ok || v != 42 {
		t.Errorf("Int() = %d, %v; want 42, true", v, ok)
	}
	if v, ok := f.Float(); !ok || v != float32(3.14) {
		t.Errorf("Float() = %v, %v; want 3.14, true", v, ok)
	}
	if v, ok := s.Str(); !ok || v != "hello world" {
		t.Errorf("Str() = %q, %v; want hello world, true", v, ok)
	}

	for _, o := range []*Object{i, f, s} {
		if o.Marked() {
			t.Errorf("%s should start unmarked", o.Kind())
		}
		if !vm.Heap().Contains(o) {
			t.Errorf("%s not tracked by heap", o.Kind())
		}
	}
	if vm.Heap().Len() != 3 {
		t.Errorf("heap size = %d, want 3", vm.Heap().Len())
	}
	if i.ID() != 1 || f.ID() != 2 || s.ID() != 3 {
		t.Errorf("IDs = %d, %d, %d; want 1, 2, 3", i.ID(), f.ID(), s.ID())
	}
}

func TestAccessorsRejectOtherKinds(t *testing.T) {
	vm := NewVM()
	defer vm.Free()

	i, _ := vm.NewInteger(1)
	if _, ok := i.Float(); ok {
		t.Error("Float() on Integer should fail")
	}
	if _, ok := i.Str(); ok {
		t.Error("Str() on Integer should fail")
	}
	if _, _, _, ok := i.Vector(); ok {
		t.Error("Vector() on Integer should fail")
	}
	var nilObj *Object
	if _, ok := nilObj.Int(); ok {
		t.Error("Int() on nil should fail")
	}
}

func TestStringOwnsItsBytes(t *testing.T) {
	vm := NewVM()
	defer vm.Free()

	src := []byte("abc")
	s, _ := vm.NewString(string(src))
	src[0] = 'z'
	if v, _ := s.Str(); v != "abc" {
		t.Errorf("Str() = %q, want abc", v)
	}
}

func TestNewVector3(t *testing.T) {
	vm := NewVM()
	defer vm.Free()

	x, _ := vm.NewInteger(1)
	y, _ := vm.NewInteger(2)
	z, _ := vm.NewInteger(3)
	v, err := vm.NewVector3(x, y, z)
	if err != nil {
		t.Fatalf("NewVector3: %v", err)
	}
	gx, gy, gz, ok := v.Vector()
	if !ok || gx != x || gy != y || gz != z {
		t.Errorf("Vector() = %v, %v, %v, %v; want x, y, z", gx, gy, gz, ok)
	}

	if _, err := vm.NewVector3(x, nil, z); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("NewVector3 with nil = %v, want ErrInvalidArgument", err)
	}
	if vm.Heap().Len() != 4 {
		t.Errorf("failed NewVector3 changed heap size to %d", vm.Heap().Len())
	}
}

func TestNewVector3RejectsForeignObjects(t *testing.T) {
	a := NewVM()
	defer a.Free()
	b := NewVM()
	defer b.Free()

	x, _ := a.NewInteger(1)
	if _, err := b.NewVector3(x, x, x); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("NewVector3 with foreign component = %v, want ErrInvalidArgument", err)
	}
}

// ---------------------------------------------------------------------------
// Array tests
// ---------------------------------------------------------------------------

func TestArraySetGet(t *testing.T) {
	vm := NewVM()
	defer vm.Free()

	arr, err := vm.NewArray(5)
	if err != nil {
		t.Fatalf("NewArray: %v", err)
	}
	for i := 0; i < 5; i++ {
		got, err := arr.Get(i)
		if err != nil || got != nil {
			t.Errorf("fresh slot %d = %v, %v; want nil, nil", i, got, err)
		}
	}

	three, _ := vm.NewInteger(3)
	if err := arr.Set(0, three); err != nil {
		t.Fatalf("Set(0): %v", err)
	}
	got, err := arr.Get(0)
	if err != nil || got != three {
		t.Errorf("Get(0) = %v, %v; want 3", got, err)
	}

	fifteen, _ := vm.NewInteger(15)
	if err := arr.Set(0, fifteen); err != nil {
		t.Fatalf("overwrite Set(0): %v", err)
	}
	if got, _ := arr.Get(0); got != fifteen {
		t.Errorf("Get(0) after overwrite = %v, want 15", got)
	}
	if !vm.Heap().Contains(three) {
		t.Error("overwritten occupant must not be released by Set")
	}
}

func TestArrayBounds(t *testing.T) {
	vm := NewVM()
	defer vm.Free()

	arr, _ := vm.NewArray(3)
	v, _ := vm.NewInteger(1)

	if err := arr.Set(2, v); err != nil {
		t.Errorf("Set(size-1) = %v, want nil", err)
	}
	if _, err := arr.Get(2); err != nil {
		t.Errorf("Get(size-1) = %v, want nil", err)
	}
	if err := arr.Set(3, v); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Set(size) = %v, want ErrOutOfBounds", err)
	}
	if got, err := arr.Get(3); !errors.Is(err, ErrOutOfBounds) || got != nil {
		t.Errorf("Get(size) = %v, %v; want nil, ErrOutOfBounds", got, err)
	}
	if _, err := arr.Get(-1); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Get(-1) = %v, want ErrOutOfBounds", err)
	}
}

func TestArraySetRejectsBadOperands(t *testing.T) {
	vm := NewVM()
	defer vm.Free()

	arr, _ := vm.NewArray(1)
	i, _ := vm.NewInteger(1)

	if err := arr.Set(0, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Set nil value = %v, want ErrInvalidArgument", err)
	}
	if err := i.Set(0, i); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Set on Integer = %v, want ErrTypeMismatch", err)
	}
	if _, err := i.Get(0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Get on Integer = %v, want ErrInvalidArgument", err)
	}
	var nilArr *Object
	if err := nilArr.Set(0, i); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Set on nil = %v, want ErrInvalidArgument", err)
	}
}

func TestNewArrayNegativeSize(t *testing.T) {
	vm := NewVM()
	defer vm.Free()

	if _, err := vm.NewArray(-1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("NewArray(-1) = %v, want ErrInvalidArgument", err)
	}
	empty, err := vm.NewArray(0)
	if err != nil {
		t.Fatalf("NewArray(0): %v", err)
	}
	if n, _ := empty.Len(); n != 0 {
		t.Errorf("Len = %d, want 0", n)
	}
}

// ---------------------------------------------------------------------------
// Len tests
// ---------------------------------------------------------------------------

func TestLen(t *testing.T) {
	vm := NewVM()
	defer vm.Free()

	i, _ := vm.NewInteger(42)
	f, _ := vm.NewFloat(1.5)
	s, _ := vm.NewString("hello world")
	v, _ := vm.NewVector3(i, i, i)
	a, _ := vm.NewArray(5)

	tests := []struct {
		obj  *Object
		want int
	}{
		{i, 1},
		{f, 1},
		{s, 11},
		{v, 3},
		{a, 5},
	}
	for _, tt := range tests {
		got, err := tt.obj.Len()
		if err != nil {
			t.Errorf("Len(%s): %v", tt.obj.Kind(), err)
			continue
		}
		if got != tt.want {
			t.Errorf("Len(%s) = %d, want %d", tt.obj.Kind(), got, tt.want)
		}
	}

	var nilObj *Object
	if _, err := nilObj.Len(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Len(nil) = %v, want ErrInvalidArgument", err)
	}
}

func TestKindString(t *testing.T) {
	if KindVector3.String() != "Vector3" {
		t.Errorf("KindVector3 = %q", KindVector3.String())
	}
	if Kind(99).String() != "Kind(99)" {
		t.Errorf("Kind(99) = %q", Kind(99).String())
	}
}
