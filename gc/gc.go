// Package gc implements Periwinkle's tracing garbage collector: a
// non-moving mark-and-sweep pass driven by an allocated-bytes threshold.
// Modeled on the original C++ intrusive object-list collector,
// translated into Go's idiom: since the host runtime already reclaims
// memory, this package's
// job isn't freeing bytes, it's reproducing the original's *observable*
// collection protocol — deterministic mark/sweep timing, finalizer
// invocation order, and the doubling-by-chunks threshold policy — so
// that a program relying on finalizer side effects behaves the same way
// it would under the original collector.
package gc

import "github.com/dr8co/periwinkle/object"

// Threshold is the initial allocated-bytes ceiling a collection is due
// at, matching the original GC_THRESHOLD constant.
const Threshold = 1 << 16

// Finalizable is implemented by object.Value types that need deterministic
// cleanup once the collector proves them unreachable: the collector calls
// the type's finalizer if present, ignoring any exception it raises.
type Finalizable interface {
	Finalize()
}

// RootProvider supplies every GC root live at collection time by invoking
// visit once per reachable top-level value: the active frame chain's
// locals, cells, and free variables, the live portion of the operand
// stack, and the globals map. Built-in type descriptors, native
// callables, and code objects are process-wide statics the collector
// never tracks or sweeps — the built-in types are statically rooted.
type RootProvider func(visit func(object.Value))

type entry struct {
	value object.Value
	size  int64
}

// GC is one tracing mark-and-sweep collector instance. The virtual
// machine owns exactly one for the program's lifetime.
type GC struct {
	objects   []entry
	tracked   map[object.Value]bool
	allocated int64
	threshold int64
}

// New creates a collector at the initial threshold.
func New() *GC {
	return &GC{threshold: Threshold, tracked: make(map[object.Value]bool)}
}

// Track registers v, sized size bytes, as a collectible allocation. Every
// runtime value the VM creates during execution (as opposed to constants
// baked into a code object at compile time, which outlive any single
// collection and are reachable from the root code object regardless)
// should be tracked here as it's allocated.
func (g *GC) Track(v object.Value, size int64) {
	if v == nil || g.tracked[v] {
		return
	}
	g.tracked[v] = true
	g.objects = append(g.objects, entry{value: v, size: size})
	g.allocated += size
}

// Allocated reports the collector's current allocated-bytes count.
func (g *GC) Allocated() int64 { return g.allocated }

// Due reports whether the allocated counter has crossed the current
// threshold: on every VM-externally-visible safepoint, the VM calls into
// the collector if allocated exceeds it.
func (g *GC) Due() bool { return g.allocated > g.threshold }

// CollectIfDue runs a collection only if Due reports true; the VM calls
// this between instructions and at minimum on every call/return.
func (g *GC) CollectIfDue(roots RootProvider) {
	if g.Due() {
		g.Collect(roots)
	}
}

// Collect runs one unconditional mark-and-sweep pass.
func (g *GC) Collect(roots RootProvider) {
	marked := make(map[object.Value]bool, len(g.objects))
	var mark func(v object.Value)
	mark = func(v object.Value) {
		if v == nil || marked[v] {
			return
		}
		marked[v] = true
		if td := v.Type(); td != nil && td.Traverse != nil {
			td.Traverse(v, mark)
		}
	}
	roots(mark)

	kept := g.objects[:0]
	var freed int64
	for _, e := range g.objects {
		if marked[e.value] {
			kept = append(kept, e)
			continue
		}
		finalize(e.value)
		freed += e.size
		delete(g.tracked, e.value)
	}
	g.objects = kept
	g.allocated -= freed
	if g.allocated < 0 {
		g.allocated = 0
	}
	// Doubling-by-chunks: the next threshold is GC_THRESHOLD times one
	// more than however many whole thresholds' worth is still live.
	g.threshold = Threshold * (g.allocated/Threshold + 1)
}

// finalize calls v's finalizer, ignoring any panic it raises: a finalizer
// error during a GC sweep never propagates to the running program.
func finalize(v object.Value) {
	fin, ok := v.(Finalizable)
	if !ok {
		return
	}
	defer func() { _ = recover() }()
	fin.Finalize()
}
