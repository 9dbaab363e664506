// Package vm implements the snek value runtime.
//
// This package contains:
//   - Tagged heap objects (Integer, Float, String, Vector3, Array)
//   - The growable Stack used for the heap, frame roots and GC worklist
//   - Call frames whose references act as collection roots
//   - A synchronous mark / trace / sweep garbage collector
package vm
