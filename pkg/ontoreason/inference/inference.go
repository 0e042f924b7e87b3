// Package inference computes the fixed point of a rule set over a fact graph.
//
// Each pass applies every rule to the graph as it stood at the start of the
// pass, then adds all candidate triples. Passes repeat until one adds
// nothing. Rules only ever add triples, so the result is a superset of the
// input, independent of rule order, and a second run adds nothing.
package inference

import (
	"go.uber.org/zap"

	"github.com/cognicore/ontoreason/pkg/ontoreason/graph"
	"github.com/cognicore/ontoreason/pkg/ontoreason/ontology"
)

// DefaultMaxPasses bounds the number of passes per Infer call.
const DefaultMaxPasses = 100

// Rule derives candidate triples from a graph. Apply must not modify g and
// may return triples already present.
type Rule interface {
	Name() string
	Apply(g graph.View) []graph.Triple
}

// Result summarises one Infer call.
type Result struct {
	Added  int
	Passes int
	// Capped is set when MaxPasses was reached before a fixed point; the
	// graph is then possibly incomplete.
	Capped bool
	// ByRule counts added triples per rule name (first rule to propose wins).
	ByRule map[string]int
}

// Observer receives a Result after every Infer call.
type Observer interface {
	ObserveInference(Result)
}

// Engine applies a fixed rule set until fixed point.
type Engine struct {
	rules     []Rule
	maxPasses int
	logger    *zap.Logger
	observer  Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxPasses sets the pass cap; values below 1 keep the default.
func WithMaxPasses(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPasses = n
		}
	}
}

// WithLogger sets the logger used for cap warnings.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver registers an observer, typically a metrics sink.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// New creates an engine over rules.
func New(rules []Rule, opts ...Option) *Engine {
	e := &Engine{
		rules:     rules,
		maxPasses: DefaultMaxPasses,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ForModel creates an engine with the rule table declared by m.
func ForModel(m *ontology.Model, opts ...Option) *Engine {
	return New(RulesFor(m), opts...)
}

// Rules returns the engine's rule names in application order.
func (e *Engine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name()
	}
	return names
}

// MaxPasses returns the configured pass cap.
func (e *Engine) MaxPasses() int { return e.maxPasses }

// Infer mutates g in place until fixed point or the pass cap. Reaching the
// cap is logged and reported in the result, never returned as an error.
func (e *Engine) Infer(g graph.Mutable) Result {
	res := Result{ByRule: make(map[string]int)}

	type candidate struct {
		t    graph.Triple
		rule string
	}
	for res.Passes < e.maxPasses {
		res.Passes++

		var pending []candidate
		for _, r := range e.rules {
			for _, t := range r.Apply(g) {
				pending = append(pending, candidate{t: t, rule: r.Name()})
			}
		}

		added := 0
		for _, c := range pending {
			if g.Add(c.t) {
				added++
				res.ByRule[c.rule]++
			}
		}
		res.Added += added
		if added == 0 {
			e.observe(res)
			return res
		}
	}

	res.Capped = true
	e.logger.Warn("inference stopped at pass cap; result may be incomplete",
		zap.Int("max_passes", e.maxPasses),
		zap.Int("added", res.Added),
		zap.Int("graph_size", g.Size()),
	)
	e.observe(res)
	return res
}

func (e *Engine) observe(res Result) {
	if e.observer != nil {
		e.observer.ObserveInference(res)
	}
}

// Infer runs the rule table of m over g and returns the number of triples
// added.
func Infer(g graph.Mutable, m *ontology.Model) int {
	return ForModel(m).Infer(g).Added
}
