// Package snapshot captures the heap and frame roots of a VM as a portable
// record, encodes it with CBOR, and rebuilds equivalent VMs from it.
// Object sharing and array cycles survive the round trip.
package snapshot

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/snek/vm"
)

// NoRef marks an empty array slot in ObjectRecord.Refs.
const NoRef = -1

// ObjectRecord describes one heap object. References to other objects are
// indices into Snapshot.Objects.
type ObjectRecord struct {
	ID    uint64  `cbor:"1,keyasint"`
	Kind  vm.Kind `cbor:"2,keyasint"`
	Int   int32   `cbor:"3,keyasint,omitempty"`
	Float float32 `cbor:"4,keyasint,omitempty"`
	Str   string  `cbor:"5,keyasint,omitempty"`
	Refs  []int   `cbor:"6,keyasint,omitempty"`
}

// FrameRecord lists the roots of one frame as object indices.
type FrameRecord struct {
	Roots []int `cbor:"1,keyasint"`
}

// Snapshot is a point-in-time image of a VM's heap and frame stack.
type Snapshot struct {
	ID        string         `cbor:"1,keyasint"`
	Label     string         `cbor:"2,keyasint,omitempty"`
	TakenUnix int64          `cbor:"3,keyasint"` // nanoseconds
	Objects   []ObjectRecord `cbor:"4,keyasint"`
	Frames    []FrameRecord  `cbor:"5,keyasint"`
}

// Taken returns the capture time.
func (s *Snapshot) Taken() time.Time {
	return time.Unix(0, s.TakenUnix)
}

// Capture records the current heap and frames of v. Objects are listed in
// heap order.
func Capture(v *vm.VM, label string) (*Snapshot, error) {
	objects := v.Heap().Objects()
	index := make(map[*vm.Object]int, len(objects))
	for i, o := range objects {
		index[o] = i
	}
	ref := func(o *vm.Object) (int, error) {
		if o == nil {
			return NoRef, nil
		}
		i, ok := index[o]
		if !ok {
			return 0, fmt.Errorf("snapshot: reference to untracked object #%d", o.ID())
		}
		return i, nil
	}

	snap := &Snapshot{
		ID:        uuid.NewString(),
		Label:     label,
		TakenUnix: time.Now().UnixNano(),
		Objects:   make([]ObjectRecord, len(objects)),
	}

	for i, o := range objects {
		rec := ObjectRecord{ID: o.ID(), Kind: o.Kind()}
		switch o.Kind() {
		case vm.KindInteger:
			rec.Int, _ = o.Int()
		case vm.KindFloat:
			rec.Float, _ = o.Float()
		case vm.KindString:
			rec.Str, _ = o.Str()
		case vm.KindVector3:
			x, y, z, _ := o.Vector()
			for _, c := range []*vm.Object{x, y, z} {
				r, err := ref(c)
				if err != nil {
					return nil, err
				}
				rec.Refs = append(rec.Refs, r)
			}
		case vm.KindArray:
			n, _ := o.Len()
			rec.Refs = make([]int, n)
			for j := 0; j < n; j++ {
				e, _ := o.Get(j)
				r, err := ref(e)
				if err != nil {
					return nil, err
				}
				rec.Refs[j] = r
			}
		default:
			return nil, fmt.Errorf("snapshot: unknown kind %s", o.Kind())
		}
		snap.Objects[i] = rec
	}

	for _, f := range v.Frames() {
		fr := FrameRecord{Roots: make([]int, 0, f.Len())}
		for _, o := range f.Roots() {
			r, err := ref(o)
			if err != nil {
				return nil, err
			}
			fr.Roots = append(fr.Roots, r)
		}
		snap.Frames = append(snap.Frames, fr)
	}
	return snap, nil
}

// Restore builds a new VM whose heap and frames mirror the snapshot. The
// restored heap holds one object per record; shared references stay
// shared.
func Restore(s *Snapshot, opts vm.Options) (*vm.VM, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	v, err := vm.NewVMWithOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	r := &restorer{
		snap:     s,
		vm:       v,
		built:    make([]*vm.Object, len(s.Objects)),
		building: make([]bool, len(s.Objects)),
	}
	if err := r.run(); err != nil {
		v.Free()
		return nil, err
	}
	return v, nil
}

// validate checks references and shapes before anything is allocated.
func (s *Snapshot) validate() error {
	n := len(s.Objects)
	for i, rec := range s.Objects {
		switch rec.Kind {
		case vm.KindInteger, vm.KindFloat, vm.KindString:
			if len(rec.Refs) != 0 {
				return fmt.Errorf("snapshot: %s record %d has references", rec.Kind, i)
			}
		case vm.KindVector3:
			if len(rec.Refs) != 3 {
				return fmt.Errorf("snapshot: Vector3 record %d has %d components", i, len(rec.Refs))
			}
			for _, r := range rec.Refs {
				if r == NoRef {
					return fmt.Errorf("snapshot: Vector3 record %d has an empty component", i)
				}
			}
		case vm.KindArray:
		default:
			return fmt.Errorf("snapshot: record %d has unknown kind %d", i, uint8(rec.Kind))
		}
		for _, r := range rec.Refs {
			if r != NoRef && (r < 0 || r >= n) {
				return fmt.Errorf("snapshot: record %d references %d of %d", i, r, n)
			}
		}
	}
	for i, f := range s.Frames {
		for _, r := range f.Roots {
			if r < 0 || r >= n {
				return fmt.Errorf("snapshot: frame %d root %d of %d", i, r, n)
			}
		}
	}
	return nil
}

type restorer struct {
	snap     *Snapshot
	vm       *vm.VM
	built    []*vm.Object
	building []bool
}

func (r *restorer) run() error {
	for i := range r.snap.Objects {
		if err := r.build(i); err != nil {
			return err
		}
	}

	// Arrays are created empty so cycles through them can close here.
	for i, rec := range r.snap.Objects {
		if rec.Kind != vm.KindArray {
			continue
		}
		for j, ref := range rec.Refs {
			if ref == NoRef {
				continue
			}
			if err := r.built[i].Set(j, r.built[ref]); err != nil {
				return fmt.Errorf("snapshot: record %d slot %d: %w", i, j, err)
			}
		}
	}

	for _, fr := range r.snap.Frames {
		f, err := r.vm.NewFrame()
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		for _, ref := range fr.Roots {
			if err := f.Reference(r.built[ref]); err != nil {
				return fmt.Errorf("snapshot: %w", err)
			}
		}
	}
	return nil
}

// build constructs record root and every Vector3 component it needs,
// components first. The walk uses an explicit stack, so vector chains of
// any depth restore in constant goroutine stack. A record met again while
// it is still waiting for its components closes a cycle made only of
// vectors, which a live heap cannot hold.
func (r *restorer) build(root int) error {
	stack := []int{root}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		if r.built[i] != nil {
			stack = stack[:len(stack)-1]
			continue
		}
		rec := r.snap.Objects[i]

		if rec.Kind == vm.KindVector3 && !r.building[i] {
			r.building[i] = true
			pending := false
			for _, ref := range rec.Refs {
				if r.built[ref] != nil {
					continue
				}
				if r.building[ref] {
					return fmt.Errorf("snapshot: record %d is part of a Vector3 cycle", ref)
				}
				stack = append(stack, ref)
				pending = true
			}
			if pending {
				continue
			}
		}

		o, err := r.construct(rec)
		if err != nil {
			return fmt.Errorf("snapshot: record %d: %w", i, err)
		}
		r.built[i] = o
		r.building[i] = false
		stack = stack[:len(stack)-1]
	}
	return nil
}

// construct allocates one record. Vector3 components must already be built.
func (r *restorer) construct(rec ObjectRecord) (*vm.Object, error) {
	switch rec.Kind {
	case vm.KindInteger:
		return r.vm.NewInteger(rec.Int)
	case vm.KindFloat:
		return r.vm.NewFloat(rec.Float)
	case vm.KindString:
		return r.vm.NewString(rec.Str)
	case vm.KindArray:
		return r.vm.NewArray(len(rec.Refs))
	case vm.KindVector3:
		return r.vm.NewVector3(r.built[rec.Refs[0]], r.built[rec.Refs[1]], r.built[rec.Refs[2]])
	}
	return nil, fmt.Errorf("unknown kind %d", uint8(rec.Kind))
}
