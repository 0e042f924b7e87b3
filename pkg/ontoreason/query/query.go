// Package query evaluates conjunctive triple-pattern queries against a fact
// graph.
//
// Patterns are joined left to right, one at a time: every solution so far is
// extended by each triple matching the next pattern with the solution's
// bindings substituted. Evaluation stops as soon as no solutions remain.
package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cognicore/ontoreason/pkg/ontoreason/graph"
	"github.com/cognicore/ontoreason/pkg/ontoreason/internalerr"
)

// Error reports a malformed query. Pos is the byte offset in the query text,
// or -1 when the problem is not tied to a position.
type Error struct {
	Query  string
	Pos    int
	Reason string
}

func (e *Error) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("query: %s (at offset %d)", e.Reason, e.Pos)
	}
	return "query: " + e.Reason
}

// Unwrap classifies query errors as invalid input.
func (e *Error) Unwrap() error { return internalerr.ErrInvalidInput }

func errorf(src string, pos int, format string, args ...any) *Error {
	return &Error{Query: src, Pos: pos, Reason: fmt.Sprintf(format, args...)}
}

// Node is a pattern position: a variable or a constant term.
type Node struct {
	Var  string
	Term graph.Term
}

// Var returns a variable node. The leading '?' is optional.
func Var(name string) Node { return Node{Var: strings.TrimPrefix(name, "?")} }

// Const returns a constant node.
func Const(t graph.Term) Node { return Node{Term: t} }

// IsVar reports whether n is a variable.
func (n Node) IsVar() bool { return n.Var != "" }

func (n Node) String() string {
	if n.IsVar() {
		return "?" + n.Var
	}
	return n.Term.String()
}

// Pattern is a triple whose positions may be variables.
type Pattern struct {
	Subject, Predicate, Object Node
}

func (p Pattern) String() string {
	return p.Subject.String() + " " + p.Predicate.String() + " " + p.Object.String()
}

func (p Pattern) nodes() [3]Node { return [3]Node{p.Subject, p.Predicate, p.Object} }

// Binding maps variable names (without '?') to terms.
type Binding map[string]graph.Term

// Vars returns the variables of patterns in order of first appearance.
func Vars(patterns []Pattern) []string {
	var out []string
	for _, p := range patterns {
		for _, n := range p.nodes() {
			if n.IsVar() && !slices.Contains(out, n.Var) {
				out = append(out, n.Var)
			}
		}
	}
	return out
}

type options struct {
	vars     []string
	limit    int
	distinct bool
}

// Option modifies evaluation.
type Option func(*options)

// Select projects results onto vars. Without it every variable is returned.
func Select(vars ...string) Option {
	return func(o *options) {
		o.vars = o.vars[:0]
		for _, v := range vars {
			o.vars = append(o.vars, strings.TrimPrefix(v, "?"))
		}
	}
}

// Limit caps the number of results; n <= 0 means no limit.
func Limit(n int) Option {
	return func(o *options) { o.limit = n }
}

// Distinct removes duplicate projected results.
func Distinct() Option {
	return func(o *options) { o.distinct = true }
}

// Evaluate joins patterns against g. No match yields an empty, non-nil slice.
// Results are ordered by the projected variables so repeated calls agree.
func Evaluate(g graph.View, patterns []Pattern, opts ...Option) ([]Binding, error) {
	if len(patterns) == 0 {
		return nil, errorf("", -1, "no triple patterns")
	}
	for _, p := range patterns {
		if err := validate(p); err != nil {
			return nil, err
		}
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	all := Vars(patterns)
	vars := all
	if len(o.vars) > 0 {
		for _, v := range o.vars {
			if !slices.Contains(all, v) {
				return nil, errorf("", -1, "projected variable ?%s is not bound by any pattern", v)
			}
		}
		vars = o.vars
	}

	solutions := []Binding{{}}
	for _, p := range patterns {
		var next []Binding
		for _, b := range solutions {
			s, pr, ob := substitute(p.Subject, b), substitute(p.Predicate, b), substitute(p.Object, b)
			for t := range g.Match(s, pr, ob) {
				if nb, ok := extend(b, p, t); ok {
					next = append(next, nb)
				}
			}
		}
		solutions = next
		if len(solutions) == 0 {
			return []Binding{}, nil
		}
	}

	out := make([]Binding, 0, len(solutions))
	for _, b := range solutions {
		pb := make(Binding, len(vars))
		for _, v := range vars {
			pb[v] = b[v]
		}
		out = append(out, pb)
	}
	slices.SortFunc(out, func(a, b Binding) int {
		for _, v := range vars {
			if c := graph.Compare(a[v], b[v]); c != 0 {
				return c
			}
		}
		return 0
	})
	if o.distinct {
		out = slices.CompactFunc(out, func(a, b Binding) bool {
			for _, v := range vars {
				if a[v] != b[v] {
					return false
				}
			}
			return true
		})
	}
	if o.limit > 0 && len(out) > o.limit {
		out = out[:o.limit]
	}
	return out, nil
}

func validate(p Pattern) error {
	for i, n := range p.nodes() {
		if n.IsVar() {
			continue
		}
		if n.Term.IsZero() {
			return errorf("", -1, "pattern %s: empty %s", p, positions[i])
		}
		if i < 2 && !n.Term.IsIRI() {
			return errorf("", -1, "pattern %s: literal not allowed in %s position", p, positions[i])
		}
	}
	return nil
}

func substitute(n Node, b Binding) graph.Term {
	if !n.IsVar() {
		return n.Term
	}
	return b[n.Var] // zero Term (wildcard) when unbound
}

// extend binds the pattern's variables to t. A variable used twice in one
// pattern must match the same term in both places.
func extend(b Binding, p Pattern, t graph.Triple) (Binding, bool) {
	nb := make(Binding, len(b)+3)
	for k, v := range b {
		nb[k] = v
	}
	vals := [3]graph.Term{t.Subject, t.Predicate, t.Object}
	for i, n := range p.nodes() {
		if !n.IsVar() {
			continue
		}
		if cur, ok := nb[n.Var]; ok && cur != vals[i] {
			return nil, false
		}
		nb[n.Var] = vals[i]
	}
	return nb, true
}
