// Package ontoreason classifies extracted entities against an ontology.
//
// A Reasoner owns a base graph built from the ontology and closed under its
// inference rules. The base graph is frozen once Initialize returns; every
// enrichment works on a private overlay, so a Reasoner is safe for
// concurrent use.
package ontoreason

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/cognicore/ontoreason/pkg/ontoreason/config"
	"github.com/cognicore/ontoreason/pkg/ontoreason/consistency"
	"github.com/cognicore/ontoreason/pkg/ontoreason/enrich"
	"github.com/cognicore/ontoreason/pkg/ontoreason/graph"
	"github.com/cognicore/ontoreason/pkg/ontoreason/inference"
	"github.com/cognicore/ontoreason/pkg/ontoreason/internalerr"
	"github.com/cognicore/ontoreason/pkg/ontoreason/journal"
	"github.com/cognicore/ontoreason/pkg/ontoreason/metrics"
	"github.com/cognicore/ontoreason/pkg/ontoreason/ontology"
	"github.com/cognicore/ontoreason/pkg/ontoreason/query"
)

// Reasoner is the main facade.
type Reasoner struct {
	model   *ontology.Model
	base    *graph.Graph
	engine  *inference.Engine
	enrich  *enrich.Service
	journal journal.Journal
	logger  *zap.Logger
	metrics *metrics.Recorder
	stats   Stats
}

// Options configures Initialize.
type Options struct {
	// Model is the ontology; nil loads the embedded default.
	Model *ontology.Model
	// MaxPasses caps inference passes; 0 uses inference.DefaultMaxPasses.
	MaxPasses int
	// Journal records enrichments. Close closes it.
	Journal journal.Journal
	// Check runs a consistency check on every enrichment.
	Check bool
	// Workers bounds EnrichBatch concurrency.
	Workers int
	Logger  *zap.Logger
	// Metrics feeds the Prometheus collectors in package metrics.
	Metrics bool
}

// Stats summarises the base graph.
type Stats struct {
	TripleCount     int    `json:"triple_count"`
	ClassCount      int    `json:"class_count"`
	PropertyCount   int    `json:"property_count"`
	IndividualCount int    `json:"individual_count"`
	RuleCount       int    `json:"rule_count"`
	Source          string `json:"source"`
}

// Initialize loads the ontology into a base graph, runs inference to a
// fixed point and freezes the result.
func Initialize(ctx context.Context, opts Options) (*Reasoner, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := opts.Model
	if m == nil {
		var err error
		if m, err = ontology.Default(); err != nil {
			return nil, err
		}
	}

	r := &Reasoner{model: m, journal: opts.Journal, logger: logger}
	engineOpts := []inference.Option{inference.WithLogger(logger)}
	if opts.MaxPasses > 0 {
		engineOpts = append(engineOpts, inference.WithMaxPasses(opts.MaxPasses))
	}
	if opts.Metrics {
		r.metrics = &metrics.Recorder{}
		engineOpts = append(engineOpts, inference.WithObserver(r.metrics))
	}
	r.engine = inference.ForModel(m, engineOpts...)

	r.base = graph.FromTriples(m.Triples())
	res := r.engine.Infer(r.base)
	r.base.Freeze()

	enrichOpts := []enrich.Option{
		enrich.WithLogger(logger),
		enrich.WithWorkers(opts.Workers),
	}
	if opts.Check {
		enrichOpts = append(enrichOpts, enrich.WithChecker(consistency.Check))
	}
	if opts.Journal != nil {
		enrichOpts = append(enrichOpts, enrich.WithJournal(opts.Journal))
	}
	if r.metrics != nil {
		enrichOpts = append(enrichOpts, enrich.WithMetrics(r.metrics))
	}
	svc, err := enrich.New(m, r.base, r.engine, enrichOpts...)
	if err != nil {
		return nil, err
	}
	r.enrich = svc
	r.stats = r.computeStats()

	logger.Info("ontology loaded",
		zap.String("source", m.Source()),
		zap.Int("triples", r.stats.TripleCount),
		zap.Int("classes", r.stats.ClassCount),
		zap.Int("properties", r.stats.PropertyCount),
		zap.Int("individuals", r.stats.IndividualCount),
		zap.Int("inferred", res.Added),
		zap.Int("passes", res.Passes),
	)
	return r, nil
}

// FromConfig builds the configured components and initializes a Reasoner
// over them.
func FromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Reasoner, error) {
	comp, err := cfg.Build(ctx)
	if err != nil {
		return nil, err
	}
	r, err := Initialize(ctx, Options{
		Model:     comp.Model,
		MaxPasses: cfg.Inference.MaxPasses,
		Journal:   comp.Journal,
		Check:     cfg.Enrich.Check,
		Workers:   cfg.Enrich.Workers,
		Logger:    logger,
		Metrics:   true,
	})
	if err != nil {
		comp.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the journal.
func (r *Reasoner) Close() error {
	if r.journal == nil {
		return nil
	}
	return r.journal.Close()
}

// Model returns the loaded ontology.
func (r *Reasoner) Model() *ontology.Model { return r.model }

// Base returns the frozen base graph.
func (r *Reasoner) Base() graph.View { return r.base }

// Journal returns the configured journal, or nil.
func (r *Reasoner) Journal() journal.Journal { return r.journal }

// Enrich classifies one entity.
func (r *Reasoner) Enrich(ctx context.Context, req enrich.Request) (*enrich.Entity, error) {
	return r.enrich.Enrich(ctx, req)
}

// EnrichBatch classifies several entities concurrently.
func (r *Reasoner) EnrichBatch(ctx context.Context, reqs []enrich.Request) ([]*enrich.Entity, error) {
	return r.enrich.EnrichBatch(ctx, reqs)
}

// Query parses text as a pattern query and evaluates it against the base
// graph. opts are applied after any SELECT/DISTINCT/LIMIT in the text.
func (r *Reasoner) Query(text string, opts ...query.Option) ([]query.Binding, error) {
	q, err := query.ParseQuery(text, r.model.Namespaces())
	if err != nil {
		r.observeQuery(metrics.OutcomeInvalid)
		return nil, err
	}
	return r.QueryPatterns(q.Patterns, append(q.Options(), opts...)...)
}

// QueryPatterns evaluates already-built patterns against the base graph.
func (r *Reasoner) QueryPatterns(patterns []query.Pattern, opts ...query.Option) ([]query.Binding, error) {
	out, err := query.Evaluate(r.base, patterns, opts...)
	switch {
	case err != nil:
		r.observeQuery(metrics.OutcomeInvalid)
	case len(out) == 0:
		r.observeQuery(metrics.OutcomeEmpty)
	default:
		r.observeQuery(metrics.OutcomeOK)
	}
	return out, err
}

func (r *Reasoner) observeQuery(outcome string) {
	if r.metrics != nil {
		r.metrics.ObserveQuery(outcome)
	}
}

// OntologyStats summarises the base graph.
func (r *Reasoner) OntologyStats() Stats { return r.stats }

func (r *Reasoner) computeStats() Stats {
	schemaTypes := map[graph.Term]bool{
		graph.OWLClass:              true,
		graph.OWLObjectProperty:     true,
		graph.OWLDatatypeProperty:   true,
		graph.OWLFunctionalProperty: true,
	}
	individuals := make(map[graph.Term]struct{})
	for t := range r.base.Match(graph.Any, graph.RDFType, graph.Any) {
		if schemaTypes[t.Object] {
			continue
		}
		if _, ok := r.model.Class(t.Subject.Value); ok {
			continue
		}
		if _, ok := r.model.Property(t.Subject.Value); ok {
			continue
		}
		individuals[t.Subject] = struct{}{}
	}
	return Stats{
		TripleCount:     r.base.Size(),
		ClassCount:      len(r.model.Classes()),
		PropertyCount:   len(r.model.Properties()),
		IndividualCount: len(individuals),
		RuleCount:       len(r.engine.Rules()),
		Source:          r.model.Source(),
	}
}

// CheckOptions configures CheckConsistency.
type CheckOptions struct {
	// IncludeRecent folds the triples of the N most recent journaled
	// enrichments into the checked graph.
	IncludeRecent int
}

// CheckConsistency reports violations in the base graph, optionally merged
// with recent enrichments. It never modifies anything.
func (r *Reasoner) CheckConsistency(ctx context.Context, opts CheckOptions) ([]consistency.Violation, error) {
	var view graph.View = r.base
	if opts.IncludeRecent > 0 {
		if r.journal == nil {
			return nil, fmt.Errorf("check consistency: no journal configured: %w", internalerr.ErrInvalidInput)
		}
		recs, err := r.journal.Recent(ctx, opts.IncludeRecent)
		if err != nil {
			return nil, fmt.Errorf("check consistency: %w", err)
		}
		work := graph.NewOverlay(r.base)
		work.AddAll(journal.Triples(recs))
		r.engine.Infer(work)
		view = work
	}

	vs := consistency.Check(view, r.model)
	if r.metrics != nil {
		r.metrics.ObserveViolations(vs)
	}
	if len(vs) > 0 {
		r.logger.Info("consistency violations found",
			zap.Int("count", len(vs)),
			zap.Int("recent", opts.IncludeRecent),
		)
	}
	return vs, nil
}

// Export writes the base graph in the given format.
func (r *Reasoner) Export(w io.Writer, format graph.Format) error {
	return graph.Write(w, r.base, r.model.Namespaces(), format)
}
