package graph

import (
	"iter"
	"slices"
)

// View is read access to a set of triples.
type View interface {
	// Match yields every triple matching the pattern; Any is a wildcard.
	// The sequence is lazy, finite, grouped by subject and may be ranged
	// over repeatedly.
	// Callers must not add to the graph while ranging.
	Match(s, p, o Term) iter.Seq[Triple]
	Contains(t Triple) bool
	Size() int
}

// Mutable is a View that accepts new triples.
type Mutable interface {
	View
	Add(t Triple) bool
}

// index is a three-level nested set keyed by term positions.
type index map[Term]map[Term]map[Term]struct{}

func (ix index) add(a, b, c Term) {
	l2, ok := ix[a]
	if !ok {
		l2 = make(map[Term]map[Term]struct{})
		ix[a] = l2
	}
	l3, ok := l2[b]
	if !ok {
		l3 = make(map[Term]struct{})
		l2[b] = l3
	}
	l3[c] = struct{}{}
}

// Graph is a hash-indexed set of triples.
// Subject-first (spo), predicate-first (pso, pos) and object-first (osp)
// indexes keep every Match shape a map lookup followed by a scan of the
// matching subtree. Every yielded sequence is grouped by subject.
type Graph struct {
	spo    index
	pso    index
	pos    index
	osp    index
	size   int
	frozen bool
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		spo: make(index),
		pso: make(index),
		pos: make(index),
		osp: make(index),
	}
}

// FromTriples builds a graph holding ts.
func FromTriples(ts []Triple) *Graph {
	g := New()
	g.AddAll(ts)
	return g
}

// Add inserts t and reports whether it was new. Adding an existing triple is
// a no-op. Invalid triples are ignored. Add panics on a frozen graph.
func (g *Graph) Add(t Triple) bool {
	if g.frozen {
		panic("graph: Add on frozen graph")
	}
	if !t.Valid() || g.Contains(t) {
		return false
	}
	g.spo.add(t.Subject, t.Predicate, t.Object)
	g.pso.add(t.Predicate, t.Subject, t.Object)
	g.pos.add(t.Predicate, t.Object, t.Subject)
	g.osp.add(t.Object, t.Subject, t.Predicate)
	g.size++
	return true
}

// AddAll inserts every triple and returns how many were new.
func (g *Graph) AddAll(ts []Triple) int {
	n := 0
	for _, t := range ts {
		if g.Add(t) {
			n++
		}
	}
	return n
}

// Contains reports whether t is in the graph.
func (g *Graph) Contains(t Triple) bool {
	_, ok := g.spo[t.Subject][t.Predicate][t.Object]
	return ok
}

// Size returns the number of triples.
func (g *Graph) Size() int { return g.size }

// Freeze marks the graph read-only. It returns g for chaining.
func (g *Graph) Freeze() *Graph {
	g.frozen = true
	return g
}

// Frozen reports whether Freeze was called.
func (g *Graph) Frozen() bool { return g.frozen }

// Copy returns an unfrozen deep copy sharing no index storage with g.
func (g *Graph) Copy() *Graph {
	c := New()
	for t := range g.Match(Any, Any, Any) {
		c.Add(t)
	}
	return c
}

// Triples returns every triple in canonical sorted order.
func (g *Graph) Triples() []Triple {
	return Sorted(g)
}

// Match implements View.
func (g *Graph) Match(s, p, o Term) iter.Seq[Triple] {
	return func(yield func(Triple) bool) {
		switch {
		case !s.IsZero():
			g.matchSubject(s, p, o, yield)
		case !p.IsZero() && !o.IsZero():
			for subj := range g.pos[p][o] {
				if !yield(Triple{subj, p, o}) {
					return
				}
			}
		case !p.IsZero():
			for subj, objs := range g.pso[p] {
				for obj := range objs {
					if !yield(Triple{subj, p, obj}) {
						return
					}
				}
			}
		case !o.IsZero():
			for subj, preds := range g.osp[o] {
				for pred := range preds {
					if !yield(Triple{subj, pred, o}) {
						return
					}
				}
			}
		default:
			for subj := range g.spo {
				if !g.matchSubject(subj, Any, Any, yield) {
					return
				}
			}
		}
	}
}

func (g *Graph) matchSubject(s, p, o Term, yield func(Triple) bool) bool {
	preds, ok := g.spo[s]
	if !ok {
		return true
	}
	if !p.IsZero() {
		return emitObjects(s, p, preds[p], o, yield)
	}
	for pred, objs := range preds {
		if !emitObjects(s, pred, objs, o, yield) {
			return false
		}
	}
	return true
}

func emitObjects(s, p Term, objs map[Term]struct{}, o Term, yield func(Triple) bool) bool {
	if !o.IsZero() {
		if _, ok := objs[o]; ok {
			return yield(Triple{s, p, o})
		}
		return true
	}
	for obj := range objs {
		if !yield(Triple{s, p, obj}) {
			return false
		}
	}
	return true
}

// Overlay is a working graph layered over a read-only base. Reads see the
// union of base and delta; writes land only in the delta, so the base is
// never touched. It is equivalent to base.Copy() followed by the same adds.
type Overlay struct {
	base  View
	delta *Graph
}

// NewOverlay returns an empty overlay over base.
func NewOverlay(base View) *Overlay {
	return &Overlay{base: base, delta: New()}
}

// Add inserts t into the delta unless the base or delta already holds it.
func (o *Overlay) Add(t Triple) bool {
	if o.base.Contains(t) {
		return false
	}
	return o.delta.Add(t)
}

// AddAll inserts every triple and returns how many were new.
func (o *Overlay) AddAll(ts []Triple) int {
	n := 0
	for _, t := range ts {
		if o.Add(t) {
			n++
		}
	}
	return n
}

// Contains implements View.
func (o *Overlay) Contains(t Triple) bool {
	return o.base.Contains(t) || o.delta.Contains(t)
}

// Size implements View.
func (o *Overlay) Size() int { return o.base.Size() + o.delta.Size() }

// Match implements View. Delta triples for a subject are yielded right after
// the base triples for that subject, so the sequence stays grouped by subject.
func (o *Overlay) Match(s, p, obj Term) iter.Seq[Triple] {
	if s != Any || o.delta.size == 0 {
		return func(yield func(Triple) bool) {
			for t := range o.base.Match(s, p, obj) {
				if !yield(t) {
					return
				}
			}
			for t := range o.delta.Match(s, p, obj) {
				if !yield(t) {
					return
				}
			}
		}
	}
	return func(yield func(Triple) bool) {
		flushed := make(map[Term]struct{})
		flush := func(subj Term) bool {
			if _, ok := o.delta.spo[subj]; !ok {
				return true
			}
			flushed[subj] = struct{}{}
			for t := range o.delta.Match(subj, p, obj) {
				if !yield(t) {
					return false
				}
			}
			return true
		}

		var prev Term
		for t := range o.base.Match(s, p, obj) {
			if t.Subject != prev && prev != Any && !flush(prev) {
				return
			}
			prev = t.Subject
			if !yield(t) {
				return
			}
		}
		if prev != Any && !flush(prev) {
			return
		}
		for t := range o.delta.Match(Any, p, obj) {
			if _, done := flushed[t.Subject]; done {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// Delta returns the graph of triples added on top of the base.
func (o *Overlay) Delta() *Graph { return o.delta }

// Base returns the underlying read-only view.
func (o *Overlay) Base() View { return o.base }

// Sorted collects every triple of v in canonical order.
func Sorted(v View) []Triple {
	out := Collect(v.Match(Any, Any, Any))
	slices.SortFunc(out, CompareTriples)
	return out
}

// Collect drains a match sequence into a slice.
func Collect(seq iter.Seq[Triple]) []Triple {
	var out []Triple
	for t := range seq {
		out = append(out, t)
	}
	return out
}

// Objects returns the distinct objects of (s, p, *) in v.
func Objects(v View, s, p Term) []Term {
	var out []Term
	for t := range v.Match(s, p, Any) {
		out = append(out, t.Object)
	}
	return out
}

// HasType reports whether v states s rdf:type class.
func HasType(v View, s, class Term) bool {
	return v.Contains(Triple{s, RDFType, class})
}
