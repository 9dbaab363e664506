package snapshot

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chazu/snek/vm"
)

func buildGraph(t *testing.T) *vm.VM {
	t.Helper()
	v := vm.NewVM()

	frame, err := v.NewFrame()
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	one, _ := v.NewInteger(1)
	half, _ := v.NewFloat(0.5)
	s, _ := v.NewString("snek")
	vec, _ := v.NewVector3(one, one, one)
	arr, _ := v.NewArray(4)
	_ = arr.Set(0, vec)
	_ = arr.Set(1, half)
	_ = arr.Set(2, arr)
	_ = frame.Reference(arr)
	_ = frame.Reference(s)
	return v
}

func TestCaptureRestoreRoundTrip(t *testing.T) {
	src := buildGraph(t)
	defer src.Free()

	snap, err := Capture(src, "graph")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if snap.ID == "" || snap.Label != "graph" {
		t.Errorf("ID=%q Label=%q", snap.ID, snap.Label)
	}
	if len(snap.Objects) != 5 || len(snap.Frames) != 1 {
		t.Fatalf("captured %d objects, %d frames; want 5, 1", len(snap.Objects), len(snap.Frames))
	}

	data, err := Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	decoded, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	dst, err := Restore(decoded, vm.DefaultOptions())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	defer dst.Free()

	if dst.Heap().Len() != 5 {
		t.Errorf("restored heap size = %d, want 5", dst.Heap().Len())
	}
	frames := dst.Frames()
	if len(frames) != 1 {
		t.Fatalf("restored %d frames, want 1", len(frames))
	}
	roots := frames[0].Roots()
	if len(roots) != 2 {
		t.Fatalf("restored %d roots, want 2", len(roots))
	}

	arr, s := roots[0], roots[1]
	if got := arr.String(); got != "[(1, 1, 1), 0.5, [...], nil]" {
		t.Errorf("restored array = %s", got)
	}
	if str, _ := s.Str(); str != "snek" {
		t.Errorf("restored string = %q", str)
	}
	if self, _ := arr.Get(2); self != arr {
		t.Error("self reference not preserved")
	}
	vec, _ := arr.Get(0)
	x, y, z, _ := vec.Vector()
	if x != y || y != z {
		t.Error("shared Vector3 component was duplicated")
	}

	stats := dst.CollectGarbage()
	if stats.Swept != 0 {
		t.Errorf("restored graph lost %d objects to collection", stats.Swept)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	src := buildGraph(t)
	defer src.Free()

	snap, err := Capture(src, "")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	a, _ := Marshal(snap)
	b, _ := Marshal(snap)
	if !bytes.Equal(a, b) {
		t.Error("canonical encoding differs between runs")
	}
}

func TestCaptureEmptyVM(t *testing.T) {
	v := vm.NewVM()
	defer v.Free()

	snap, err := Capture(v, "empty")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	dst, err := Restore(snap, vm.DefaultOptions())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	defer dst.Free()
	if dst.Heap().Len() != 0 || dst.FrameCount() != 0 {
		t.Errorf("restored %d objects, %d frames", dst.Heap().Len(), dst.FrameCount())
	}
}

func TestRestoreRejectsCorruptSnapshots(t *testing.T) {
	tests := []struct {
		name string
		snap *Snapshot
		want string
	}{
		{
			name: "dangling ref",
			snap: &Snapshot{Objects: []ObjectRecord{{Kind: vm.KindArray, Refs: []int{3}}}},
			want: "references 3",
		},
		{
			name: "short vector",
			snap: &Snapshot{Objects: []ObjectRecord{{Kind: vm.KindVector3, Refs: []int{0}}}},
			want: "components",
		},
		{
			name: "vector cycle",
			snap: &Snapshot{Objects: []ObjectRecord{{Kind: vm.KindVector3, Refs: []int{0, 0, 0}}}},
			want: "cycle",
		},
		{
			name: "unknown kind",
			snap: &Snapshot{Objects: []ObjectRecord{{Kind: vm.Kind(42)}}},
			want: "unknown kind",
		},
		{
			name: "bad root",
			snap: &Snapshot{Frames: []FrameRecord{{Roots: []int{0}}}},
			want: "root",
		},
	}
	for _, tt := range tests {
		_, err := Restore(tt.snap, vm.DefaultOptions())
		if err == nil {
			t.Errorf("%s: Restore succeeded", tt.name)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: error %q does not mention %q", tt.name, err, tt.want)
		}
	}
}

func TestRestoreHonorsHeapLimit(t *testing.T) {
	src := buildGraph(t)
	defer src.Free()
	snap, _ := Capture(src, "")

	opts := vm.DefaultOptions()
	opts.MaxObjects = 2
	if _, err := Restore(snap, opts); err == nil {
		t.Error("Restore into a too-small heap should fail")
	}
}

func TestRestoreDeepVectorChain(t *testing.T) {
	// Record 0 is the outermost vector, so restoring it first has to walk
	// the whole chain before anything can be allocated.
	const depth = 100000
	one := depth
	s := &Snapshot{Objects: make([]ObjectRecord, depth+1)}
	for i := 0; i < depth; i++ {
		inner := i + 1
		if i == depth-1 {
			inner = one
		}
		s.Objects[i] = ObjectRecord{Kind: vm.KindVector3, Refs: []int{inner, one, one}}
	}
	s.Objects[one] = ObjectRecord{Kind: vm.KindInteger, Int: 1}
	s.Frames = []FrameRecord{{Roots: []int{0}}}

	v, err := Restore(s, vm.DefaultOptions())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	defer v.Free()

	if v.Heap().Len() != depth+1 {
		t.Errorf("heap size = %d, want %d", v.Heap().Len(), depth+1)
	}
	if stats := v.CollectGarbage(); stats.Swept != 0 || stats.Reachable != depth+1 {
		t.Errorf("collect = %s, want everything reachable", stats)
	}

	top := v.Frames()[0].Roots()[0]
	n := 0
	for o := top; o.Kind() == vm.KindVector3; n++ {
		o, _, _, _ = o.Vector()
	}
	if n != depth {
		t.Errorf("restored chain depth = %d, want %d", n, depth)
	}
}

func TestRestoreSharedVectorBuiltOnce(t *testing.T) {
	s := &Snapshot{
		Objects: []ObjectRecord{
			{Kind: vm.KindVector3, Refs: []int{1, 2, 1}},
			{Kind: vm.KindVector3, Refs: []int{2, 2, 2}},
			{Kind: vm.KindInteger, Int: 7},
		},
		Frames: []FrameRecord{{Roots: []int{0}}},
	}

	v, err := Restore(s, vm.DefaultOptions())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	defer v.Free()

	if v.Heap().Len() != 3 {
		t.Errorf("heap size = %d, want 3", v.Heap().Len())
	}
	top := v.Frames()[0].Roots()[0]
	x, _, z, _ := top.Vector()
	if x != z {
		t.Error("shared component restored as two objects")
	}
	if got, want := top.String(), "((7, 7, 7), 7, (7, 7, 7))"; got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	if _, err := Unmarshal([]byte{0xff, 0x00}); err == nil {
		t.Error("Unmarshal of garbage should fail")
	}
}
