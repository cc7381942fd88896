package inference

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/faulttwin/faulttwin/internal/feature"
	"github.com/faulttwin/faulttwin/internal/health"
	"github.com/faulttwin/faulttwin/internal/model"
	"github.com/faulttwin/faulttwin/pkg/types"
)

var (
	// ErrSchemaMismatch means the model's recorded feature names do not
	// describe the canonical feature set.
	ErrSchemaMismatch = errors.New("feature schema mismatch")

	// ErrModelUnavailable means a required model component is missing.
	ErrModelUnavailable = errors.New("model unavailable")
)

// InferenceError is a recoverable, per-sample failure.
type InferenceError struct {
	Stage string // "classify", "decode" or "regress"
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference: %s: %v", e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// Classifier predicts a class index from a feature vector.
type Classifier interface {
	Predict(x []float64) (int, error)
}

// Regressor predicts the health index from a feature vector.
type Regressor interface {
	Predict(x []float64) (float64, error)
}

// widther is implemented by models that know their input width.
type widther interface {
	NumFeatures() int
}

// LabelDecoder maps class indexes to fault labels.
type LabelDecoder interface {
	Decode(class int) (string, error)
}

// Observer receives per-sample measurements. internal/metrics implements it.
type Observer interface {
	ObserveInference(d time.Duration)
	ImplausibleHealthIndex()
}

type nopObserver struct{}

func (nopObserver) ObserveInference(time.Duration) {}
func (nopObserver) ImplausibleHealthIndex()        {}

// Models is the set of components an Adapter is built from.
type Models struct {
	Classifier Classifier
	Regressor  Regressor
	Decoder    LabelDecoder

	// Features is the classifier's training-time column order.
	Features []string
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger used for implausible-output warnings.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithObserver sets the measurement sink.
func WithObserver(o Observer) Option {
	return func(a *Adapter) { a.obs = o }
}

// Adapter evaluates both models for one sample. It is safe for concurrent
// use as long as the wrapped models are.
type Adapter struct {
	clf     Classifier
	reg     Regressor
	dec     LabelDecoder
	clfCols feature.Order
	regCols feature.Order
	logger  *slog.Logger
	obs     Observer
}

// New builds an Adapter from loaded artifacts.
func New(arts *model.Artifacts, opts ...Option) (*Adapter, error) {
	if arts == nil {
		return nil, fmt.Errorf("inference: no artifacts: %w", ErrModelUnavailable)
	}
	m := Models{Features: arts.Features}
	// Only assign non-nil pointers so the nil checks in NewFromModels hold.
	if arts.Classifier != nil {
		m.Classifier = arts.Classifier
	}
	if arts.Regressor != nil {
		m.Regressor = arts.Regressor
	}
	if arts.Labels != nil {
		m.Decoder = arts.Labels
	}
	return NewFromModels(m, opts...)
}

// NewFromModels builds an Adapter from arbitrary model implementations.
func NewFromModels(m Models, opts ...Option) (*Adapter, error) {
	switch {
	case m.Classifier == nil:
		return nil, fmt.Errorf("inference: classifier: %w", ErrModelUnavailable)
	case m.Regressor == nil:
		return nil, fmt.Errorf("inference: regressor: %w", ErrModelUnavailable)
	case m.Decoder == nil:
		return nil, fmt.Errorf("inference: label decoder: %w", ErrModelUnavailable)
	}

	order, err := feature.ResolveOrder(m.Features)
	if err != nil {
		return nil, fmt.Errorf("inference: %w: %v", ErrSchemaMismatch, err)
	}
	for name, mdl := range map[string]any{"classifier": m.Classifier, "regressor": m.Regressor} {
		if w, ok := mdl.(widther); ok && w.NumFeatures() != len(feature.Names) {
			return nil, fmt.Errorf("inference: %w: %s expects %d features, have %d",
				ErrSchemaMismatch, name, w.NumFeatures(), len(feature.Names))
		}
	}

	a := &Adapter{
		clf:     m.Classifier,
		reg:     m.Regressor,
		dec:     m.Decoder,
		clfCols: order,
		regCols: feature.CanonicalOrder(),
		logger:  slog.Default(),
		obs:     nopObserver{},
	}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// Features returns the classifier column order in effect.
func (a *Adapter) Features() []string { return a.clfCols.Names() }

// Infer classifies e and estimates its health index.
//
// A health index outside [0,100] is logged and counted but returned as is.
// A non-finite index cannot be represented downstream and is an error.
func (a *Adapter) Infer(e types.EnrichedSample) (types.InferenceResult, error) {
	start := time.Now()
	defer func() { a.obs.ObserveInference(time.Since(start)) }()

	cls, err := a.clf.Predict(feature.Vector(e, a.clfCols))
	if err != nil {
		return types.InferenceResult{}, &InferenceError{Stage: "classify", Err: err}
	}
	label, err := a.dec.Decode(cls)
	if err != nil {
		return types.InferenceResult{}, &InferenceError{Stage: "decode", Err: err}
	}

	hi, err := a.reg.Predict(feature.Vector(e, a.regCols))
	if err != nil {
		return types.InferenceResult{}, &InferenceError{Stage: "regress", Err: err}
	}
	if !health.Plausible(hi) {
		a.obs.ImplausibleHealthIndex()
		a.logger.Warn("inference: health index outside expected range",
			"health_index", hi, "min", health.MinIndex, "max", health.MaxIndex)
		if math.IsNaN(hi) || math.IsInf(hi, 0) {
			return types.InferenceResult{}, &InferenceError{
				Stage: "regress",
				Err:   fmt.Errorf("non-finite health index %v", hi),
			}
		}
	}

	return types.InferenceResult{
		FaultLabel:   label,
		HealthIndex:  hi,
		HealthStatus: health.StatusFor(hi),
	}, nil
}
