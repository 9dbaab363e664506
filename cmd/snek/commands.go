package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/chazu/snek/manifest"
	"github.com/chazu/snek/vm"
	"github.com/chazu/snek/vm/snapshot"
	"github.com/chazu/snek/vm/snapshot/store"
)

type cli struct {
	config *manifest.Manifest
	stdout io.Writer
	stderr io.Writer
}

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

func (c *cli) newVM() (*vm.VM, error) {
	return vm.NewVMWithOptions(c.config.VMOptions())
}

func (c *cli) openStore(ctx context.Context, path string) (*store.Store, error) {
	s, err := store.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("snapshot store %s: %w", path, err)
	}
	return s, nil
}

func (c *cli) demo(args []string) error {
	if err := c.flags("demo").Parse(args); err != nil {
		return err
	}
	v, err := c.newVM()
	if err != nil {
		return err
	}
	defer v.Free()
	return runDemo(c.stdout, v)
}

func (c *cli) gc(args []string) error {
	fs := c.flags("gc")
	n := fs.Int("n", 10000, "Objects to allocate")
	roots := fs.Float64("roots", 0.05, "Fraction of objects referenced from the frame")
	seed := fs.Uint64("seed", 1, "Random seed for the workload")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *n < 0 || *roots < 0 || *roots > 1 {
		return fmt.Errorf("gc: need -n >= 0 and 0 <= -roots <= 1")
	}

	v, err := c.newVM()
	if err != nil {
		return err
	}
	defer v.Free()

	rng := rand.New(rand.NewPCG(*seed, *seed))
	rooted, err := buildWorkload(v, *n, *roots, rng)
	if err != nil {
		return err
	}
	bytesBefore := v.Heap().Bytes()

	stats := v.CollectGarbage()
	if err := v.PopFrame(); err != nil {
		return err
	}
	final := v.CollectGarbage()

	t := newTable(c.stdout)
	t.row("allocated", humanize.Comma(int64(*n)), humanize.Bytes(uint64(bytesBefore)))
	t.row("rooted", humanize.Comma(int64(rooted)))
	t.row("reachable", humanize.Comma(int64(stats.Reachable)))
	t.row("swept", humanize.Comma(int64(stats.Swept)), humanize.Bytes(uint64(stats.SweptBytes)))
	t.row("live", humanize.Comma(int64(stats.Live)))
	t.row("duration", stats.Duration.String())
	t.row("after pop", humanize.Comma(int64(final.Swept)), "swept", humanize.Comma(int64(final.Live)), "live")
	return t.flush()
}

// buildWorkload allocates n objects of random kinds. Vectors and arrays
// point at earlier objects, so the heap forms a random DAG; each object is
// referenced from a single frame with probability rootFrac.
func buildWorkload(v *vm.VM, n int, rootFrac float64, rng *rand.Rand) (int, error) {
	b := &builder{v: v}
	frame, err := v.NewFrame()
	if err != nil {
		return 0, err
	}

	objs := make([]*vm.Object, 0, n)
	pick := func() *vm.Object { return objs[rng.IntN(len(objs))] }
	rooted := 0
	for i := 0; i < n; i++ {
		k := rng.IntN(5)
		if len(objs) == 0 {
			k = 0
		}
		var o *vm.Object
		switch k {
		case 0:
			o = b.int(rng.Int32N(1000))
		case 1:
			o = b.float(rng.Float32())
		case 2:
			o = b.str("s" + strconv.Itoa(i))
		case 3:
			o = b.vector(pick(), pick(), pick())
		case 4:
			elems := make([]*vm.Object, 1+rng.IntN(4))
			for j := range elems {
				elems[j] = pick()
			}
			o = b.array(elems...)
		}
		if b.err != nil {
			return rooted, b.err
		}
		objs = append(objs, o)
		if rng.Float64() < rootFrac {
			b.root(frame, o)
			rooted++
		}
	}
	return rooted, b.err
}

func (c *cli) snapshot(args []string) error {
	fs := c.flags("snapshot")
	db := fs.String("db", c.config.DatabasePath(), "Snapshot database")
	label := fs.String("label", "demo", "Label stored with the snapshot")
	if err := fs.Parse(args); err != nil {
		return err
	}

	v, err := c.newVM()
	if err != nil {
		return err
	}
	defer v.Free()
	if err := runDemo(io.Discard, v); err != nil {
		return err
	}

	snap, err := snapshot.Capture(v, *label)
	if err != nil {
		return err
	}

	ctx := context.Background()
	s, err := c.openStore(ctx, *db)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Save(ctx, snap); err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, snap.ID)
	return nil
}

func (c *cli) snapshots(args []string) error {
	fs := c.flags("snapshots")
	db := fs.String("db", c.config.DatabasePath(), "Snapshot database")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	s, err := c.openStore(ctx, *db)
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.List(ctx)
	if err != nil {
		return err
	}
	t := newTable(c.stdout)
	for _, e := range entries {
		t.row(e.ID, e.Label, humanize.Time(e.Taken),
			humanize.Comma(int64(e.Objects))+" objects",
			humanize.Bytes(uint64(e.Size)))
	}
	return t.flush()
}

// idArg parses the flags of a command taking a single snapshot ID.
func (c *cli) idArg(name string, args []string) (db, id string, err error) {
	fs := c.flags(name)
	dbFlag := fs.String("db", c.config.DatabasePath(), "Snapshot database")
	if err := fs.Parse(args); err != nil {
		return "", "", err
	}
	if fs.NArg() != 1 {
		return "", "", fmt.Errorf("%s: expected one snapshot ID, got %d arguments", name, fs.NArg())
	}
	return *dbFlag, fs.Arg(0), nil
}

func (c *cli) restore(args []string) error {
	db, id, err := c.idArg("restore", args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	s, err := c.openStore(ctx, db)
	if err != nil {
		return err
	}
	defer s.Close()

	snap, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	v, err := snapshot.Restore(snap, c.config.VMOptions())
	if err != nil {
		return err
	}
	defer v.Free()

	t := newTable(c.stdout)
	for i, o := range v.Heap().Objects() {
		t.row(strconv.Itoa(i), o.Kind().String(), o.String())
	}
	if err := t.flush(); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "%s\n", v.CollectGarbage())
	return nil
}

func (c *cli) delete(args []string) error {
	db, id, err := c.idArg("delete", args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	s, err := c.openStore(ctx, db)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Delete(ctx, id)
}
