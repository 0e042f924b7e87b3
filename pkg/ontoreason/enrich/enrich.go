// Package enrich classifies one external entity at a time against the base
// graph.
//
// Each call builds a private working graph (an overlay of the shared base),
// adds the entity's asserted facts, runs inference and reads back the
// entity's types and properties. The base graph is never written, so calls
// may run concurrently without locks.
package enrich

import (
	"context"
	"crypto/rand"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/ontoreason/pkg/ontoreason/consistency"
	"github.com/cognicore/ontoreason/pkg/ontoreason/graph"
	"github.com/cognicore/ontoreason/pkg/ontoreason/inference"
	"github.com/cognicore/ontoreason/pkg/ontoreason/internalerr"
	"github.com/cognicore/ontoreason/pkg/ontoreason/journal"
	"github.com/cognicore/ontoreason/pkg/ontoreason/ontology"
)

// State is a stage of one enrichment.
type State int

const (
	Received State = iota
	Overlaid
	Inferred
	Classified
	Returned
	Failed
)

func (s State) String() string {
	switch s {
	case Received:
		return "received"
	case Overlaid:
		return "overlaid"
	case Inferred:
		return "inferred"
	case Classified:
		return "classified"
	case Returned:
		return "returned"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(b []byte) error {
	for st := Received; st <= Failed; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// Request describes an extracted entity.
type Request struct {
	// URI identifies the entity. When empty one is minted from Text.
	URI  string `json:"uri,omitempty"`
	Text string `json:"text"`
	// AssertedType is an extraction label ("person", "government_org") or
	// a class name; unknown labels fall back to the ontology default type.
	AssertedType string  `json:"entity_type"`
	Confidence   float64 `json:"confidence"`
	// Properties maps property names to values. Names may be IRIs,
	// prefixed names or local names of declared properties.
	Properties map[string][]string `json:"properties,omitempty"`
}

// Entity is the classification result.
type Entity struct {
	ID           string  `json:"id"`
	URI          string  `json:"uri"`
	Text         string  `json:"text,omitempty"`
	AssertedType string  `json:"entity_type,omitempty"`
	Confidence   float64 `json:"confidence"`

	// InferredTypes holds every class the entity belongs to, asserted
	// type included, sorted.
	InferredTypes []string `json:"inferred_types"`
	// InferredProperties holds every non-type statement about the entity.
	InferredProperties map[string][]graph.Term `json:"inferred_properties"`
	// AssertedTriples and InferredTriples count what the request added and
	// what inference derived from it.
	AssertedTriples  int  `json:"asserted_triples"`
	InferredTriples  int  `json:"inferred_triples"`
	ReasoningApplied bool `json:"reasoning_applied"`

	Violations []consistency.Violation `json:"violations,omitempty"`
	// Related holds derived facts about other subjects, such as the type
	// of a regulator named by a regulatedBy value.
	Related []graph.Triple `json:"related,omitempty"`

	State State `json:"state"`
}

// CheckFunc runs a consistency check over a working graph.
type CheckFunc func(graph.View, *ontology.Model) []consistency.Violation

// Metrics receives per-call outcomes.
type Metrics interface {
	ObserveEnrich(outcome string, d time.Duration)
}

// DefaultWorkers bounds EnrichBatch concurrency.
const DefaultWorkers = 8

// Service enriches entities against a fixed base graph.
type Service struct {
	model   *ontology.Model
	base    graph.View
	engine  *inference.Engine
	check   CheckFunc
	journal journal.Journal
	logger  *zap.Logger
	metrics Metrics
	workers int

	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Option configures a Service.
type Option func(*Service)

// WithChecker enables a consistency check of each working graph. Only
// violations involving the entity are reported.
func WithChecker(fn CheckFunc) Option {
	return func(s *Service) { s.check = fn }
}

// WithJournal records every result.
func WithJournal(j journal.Journal) Option {
	return func(s *Service) { s.journal = j }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithWorkers bounds EnrichBatch concurrency.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// New creates a service. base must not be modified afterwards; freezing it
// makes accidental writes panic. A nil engine uses the model's rule table.
func New(m *ontology.Model, base graph.View, engine *inference.Engine, opts ...Option) (*Service, error) {
	if m == nil || base == nil {
		return nil, fmt.Errorf("enrich: model and base graph are required: %w", internalerr.ErrInvalidInput)
	}
	if engine == nil {
		engine = inference.ForModel(m)
	}
	s := &Service{
		model:   m,
		base:    base,
		engine:  engine,
		logger:  zap.NewNop(),
		workers: DefaultWorkers,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Model returns the ontology the service classifies against.
func (s *Service) Model() *ontology.Model { return s.model }

// Base returns the shared base graph.
func (s *Service) Base() graph.View { return s.base }

func (s *Service) newID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return ulid.MustNew(ulid.Now(), s.entropy).String()
}

// Enrich classifies one entity. Unknown properties and types never fail the
// call; only an empty request or a cancelled context does.
func (s *Service) Enrich(ctx context.Context, req Request) (*Entity, error) {
	start := time.Now()
	ent, err := s.enrich(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if s.metrics != nil {
		s.metrics.ObserveEnrich(outcome, time.Since(start))
	}
	return ent, err
}

func (s *Service) enrich(ctx context.Context, req Request) (*Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StateError{State: Received, Err: err}
	}
	uri, err := s.entityURI(req)
	if err != nil {
		return nil, &StateError{State: Received, Err: err}
	}

	ent := &Entity{
		ID:           s.newID(),
		URI:          uri,
		Text:         req.Text,
		AssertedType: req.AssertedType,
		Confidence:   req.Confidence,
		State:        Received,
	}

	work := graph.NewOverlay(s.base)
	ent.State = Overlaid
	ent.AssertedTriples = work.AddAll(s.assertions(uri, req))

	res := s.engine.Infer(work)
	ent.State = Inferred
	ent.InferredTriples = res.Added
	ent.ReasoningApplied = !res.Capped

	s.classify(ent, work)
	ent.State = Classified

	if s.check != nil {
		ent.Violations = consistency.Touching(s.check(work, s.model), graph.IRI(uri))
	}

	if s.journal != nil {
		rec := journal.Record{
			ID:           ent.ID,
			URI:          uri,
			Text:         req.Text,
			AssertedType: req.AssertedType,
			Confidence:   req.Confidence,
			Types:        ent.InferredTypes,
			Triples:      work.Delta().Triples(),
			Violations:   len(ent.Violations),
			CreatedAt:    time.Now().UTC(),
		}
		if err := s.journal.Record(ctx, rec); err != nil {
			s.logger.Warn("journal record failed", zap.String("id", ent.ID), zap.Error(err))
		}
	}

	ent.State = Returned
	s.logger.Debug("enrichment complete",
		zap.String("id", ent.ID),
		zap.String("uri", uri),
		zap.Int("types", len(ent.InferredTypes)),
		zap.Int("inferred", ent.InferredTriples),
		zap.Int("passes", res.Passes),
	)
	return ent, nil
}

// StateError reports the stage at which an enrichment failed.
type StateError struct {
	State State
	Err   error
}

func (e *StateError) Error() string {
	return "enrich: failed in state " + e.State.String() + ": " + e.Err.Error()
}

func (e *StateError) Unwrap() error { return e.Err }

// EnrichBatch enriches reqs with bounded concurrency. Results keep request
// order. The first failure cancels the remaining work.
func (s *Service) EnrichBatch(ctx context.Context, reqs []Request) ([]*Entity, error) {
	out := make([]*Entity, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, req := range reqs {
		g.Go(func() error {
			ent, err := s.Enrich(gctx, req)
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			out[i] = ent
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// entityURI picks the subject IRI: an explicit URI (absolute, prefixed or in
// any other scheme) wins, a bare name or the text is minted under the entity
// namespace.
func (s *Service) entityURI(req Request) (string, error) {
	if u := strings.TrimSpace(req.URI); u != "" {
		if iri, ok := s.model.Namespaces().Expand(u); ok {
			return iri, nil
		}
		if graph.HasScheme(u) {
			return u, nil
		}
		return MintURI(u), nil
	}
	if strings.TrimSpace(req.Text) == "" {
		return "", fmt.Errorf("request needs a uri or text: %w", internalerr.ErrInvalidInput)
	}
	return MintURI(req.Text), nil
}

// MintURI derives an entity IRI from free text: lower-cased, whitespace
// runs joined with '_', escaped for use in an IRI path.
func MintURI(text string) string {
	slug := strings.Join(strings.Fields(strings.ToLower(text)), "_")
	return graph.EntityNS + url.PathEscape(slug)
}

// assertions translates the request into triples about uri.
func (s *Service) assertions(uri string, req Request) []graph.Triple {
	subj := graph.IRI(uri)
	out := []graph.Triple{{
		Subject:   subj,
		Predicate: graph.RDFType,
		Object:    graph.IRI(s.model.MapType(req.AssertedType)),
	}}
	if text := strings.TrimSpace(req.Text); text != "" {
		out = append(out, graph.Triple{Subject: subj, Predicate: graph.SchemaName, Object: graph.Literal(text)})
	}

	for _, name := range slices.Sorted(maps.Keys(req.Properties)) {
		pred, prop := s.predicate(name)
		if pred == "" {
			continue
		}
		for _, v := range req.Properties[name] {
			if v = strings.TrimSpace(v); v == "" {
				continue
			}
			out = append(out, graph.Triple{Subject: subj, Predicate: graph.IRI(pred), Object: s.value(pred, prop, v)})
		}
	}
	return out
}

// predicate resolves a property name. Declared properties match by IRI,
// prefixed name or local name; anything else lands in the schema.org
// namespace.
func (s *Service) predicate(name string) (string, *ontology.Property) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}
	if p, ok := s.model.PropertyByName(name); ok {
		return p.IRI, p
	}
	if iri, ok := s.model.Namespaces().Expand(name); ok {
		return iri, nil
	}
	if strings.ContainsAny(name, " \t<>\"") {
		return graph.SchemaNS + url.PathEscape(name), nil
	}
	return graph.SchemaNS + name, nil
}

// value builds the object term for one property value.
func (s *Service) value(pred string, prop *ontology.Property, v string) graph.Term {
	switch {
	case prop != nil && prop.Kind == ontology.KindObject:
		if iri, ok := s.model.Resolve(v); ok {
			return graph.IRI(iri)
		}
		if graph.HasScheme(strings.TrimSpace(v)) {
			return graph.IRI(strings.TrimSpace(v))
		}
		return graph.IRI(MintURI(v))
	case prop != nil:
		return s.model.ValueTerm(pred, v)
	case strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://"):
		return graph.IRI(v)
	default:
		return graph.Literal(v)
	}
}

// classify reads the entity's types, properties and the related facts
// derived about other subjects.
func (s *Service) classify(ent *Entity, work *graph.Overlay) {
	subj := graph.IRI(ent.URI)

	ent.InferredTypes = []string{}
	ent.InferredProperties = make(map[string][]graph.Term)
	for t := range work.Match(subj, graph.Any, graph.Any) {
		if t.Predicate == graph.RDFType {
			ent.InferredTypes = append(ent.InferredTypes, t.Object.Value)
			continue
		}
		ent.InferredProperties[t.Predicate.Value] = append(ent.InferredProperties[t.Predicate.Value], t.Object)
	}
	slices.Sort(ent.InferredTypes)
	for _, vs := range ent.InferredProperties {
		slices.SortFunc(vs, graph.Compare)
	}

	for _, t := range work.Delta().Triples() {
		if t.Subject != subj {
			ent.Related = append(ent.Related, t)
		}
	}
}

// HasType reports whether the entity was classified under class.
func (e *Entity) HasType(class string) bool {
	_, found := slices.BinarySearch(e.InferredTypes, class)
	return found
}

// RelatedTypes returns the derived types of another subject, sorted.
func (e *Entity) RelatedTypes(subject string) []string {
	var out []string
	for _, t := range e.Related {
		if t.Subject.Value == subject && t.Predicate == graph.RDFType {
			out = append(out, t.Object.Value)
		}
	}
	slices.Sort(out)
	return out
}
