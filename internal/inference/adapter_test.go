package inference

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faulttwin/faulttwin/internal/feature"
	"github.com/faulttwin/faulttwin/internal/model"
	"github.com/faulttwin/faulttwin/internal/record"
	"github.com/faulttwin/faulttwin/pkg/types"
)

// --- stubs ---

type stubClassifier struct {
	class int
	err   error
	got   []float64
}

func (s *stubClassifier) Predict(x []float64) (int, error) {
	s.got = append([]float64(nil), x...)
	return s.class, s.err
}

type stubRegressor struct {
	value float64
	err   error
	got   []float64
}

func (s *stubRegressor) Predict(x []float64) (float64, error) {
	s.got = append([]float64(nil), x...)
	return s.value, s.err
}

type countingObserver struct {
	inferences  int
	implausible int
}

func (o *countingObserver) ObserveInference(time.Duration) { o.inferences++ }
func (o *countingObserver) ImplausibleHealthIndex()        { o.implausible++ }

var testLabels = model.Labels{"Normal Condition", "Overvoltage"}

func newAdapter(t *testing.T, clf *stubClassifier, reg *stubRegressor, opts ...Option) *Adapter {
	t.Helper()
	a, err := NewFromModels(Models{
		Classifier: clf,
		Regressor:  reg,
		Decoder:    testLabels,
		Features:   feature.Names,
	}, opts...)
	require.NoError(t, err)
	return a
}

func parseEnrich(t *testing.T, line string) types.EnrichedSample {
	t.Helper()
	s, err := record.Parse(line)
	require.NoError(t, err)
	return feature.Enrich(s)
}

// --- construction ---

func TestNewFromModels_SchemaMismatch(t *testing.T) {
	tests := map[string][]string{
		"missing power": {"Current", "Voltage", "Temperature"},
		"unknown name":  {"Current", "Voltage", "Temp", "Power"},
		"duplicate":     {"Current", "Voltage", "Voltage", "Power"},
		"nil":           nil,
	}
	for name, features := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewFromModels(Models{
				Classifier: &stubClassifier{},
				Regressor:  &stubRegressor{},
				Decoder:    testLabels,
				Features:   features,
			})
			assert.ErrorIs(t, err, ErrSchemaMismatch)
		})
	}
}

func TestNewFromModels_ModelUnavailable(t *testing.T) {
	_, err := NewFromModels(Models{Regressor: &stubRegressor{}, Decoder: testLabels, Features: feature.Names})
	assert.ErrorIs(t, err, ErrModelUnavailable)

	_, err = NewFromModels(Models{Classifier: &stubClassifier{}, Decoder: testLabels, Features: feature.Names})
	assert.ErrorIs(t, err, ErrModelUnavailable)

	_, err = NewFromModels(Models{Classifier: &stubClassifier{}, Regressor: &stubRegressor{}, Features: feature.Names})
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

type narrowRegressor struct{ stubRegressor }

func (narrowRegressor) NumFeatures() int { return 3 }

func TestNewFromModels_RegressorWidthMismatch(t *testing.T) {
	_, err := NewFromModels(Models{
		Classifier: &stubClassifier{},
		Regressor:  &narrowRegressor{},
		Decoder:    testLabels,
		Features:   feature.Names,
	})
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	assert.ErrorContains(t, err, "regressor expects 3 features")
}

func TestNew_NilArtifacts(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrModelUnavailable)

	_, err = New(&model.Artifacts{Features: feature.Names})
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

// --- Infer ---

func TestInfer_NormalSample(t *testing.T) {
	clf := &stubClassifier{class: 0}
	reg := &stubRegressor{value: 90.0}
	a := newAdapter(t, clf, reg)

	e := parseEnrich(t, "0.30,220.0,35.0")
	assert.InDelta(t, 66.0, e.Power, 1e-9)

	res, err := a.Infer(e)
	require.NoError(t, err)
	assert.Equal(t, types.InferenceResult{
		FaultLabel:   "Normal Condition",
		HealthIndex:  90.0,
		HealthStatus: types.Healthy,
	}, res)
}

func TestInfer_OvervoltageSample(t *testing.T) {
	a := newAdapter(t, &stubClassifier{class: 1}, &stubRegressor{value: 45.0})

	res, err := a.Infer(parseEnrich(t, "0.50,250.0,35.0"))
	require.NoError(t, err)
	assert.Equal(t, "Overvoltage", res.FaultLabel)
	assert.Equal(t, types.Faulty, res.HealthStatus)
}

func TestInfer_FeatureOrder(t *testing.T) {
	clf := &stubClassifier{}
	reg := &stubRegressor{value: 70}
	a, err := NewFromModels(Models{
		Classifier: clf,
		Regressor:  reg,
		Decoder:    testLabels,
		Features:   []string{"power", " Temperature ", "CURRENT", "voltage"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Power", "Temperature", "Current", "Voltage"}, a.Features())

	e := types.EnrichedSample{SensorSample: types.SensorSample{Current: 1, Voltage: 2, Temperature: 3}, Power: 4}
	_, err = a.Infer(e)
	require.NoError(t, err)

	assert.Equal(t, []float64{4, 3, 1, 2}, clf.got, "classifier sees its training order")
	assert.Equal(t, []float64{1, 2, 3, 4}, reg.got, "regressor sees canonical order")
}

func TestInfer_ModelErrors(t *testing.T) {
	boom := errors.New("shape mismatch")

	t.Run("classifier", func(t *testing.T) {
		a := newAdapter(t, &stubClassifier{err: boom}, &stubRegressor{value: 90})
		_, err := a.Infer(types.EnrichedSample{})
		var ie *InferenceError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "classify", ie.Stage)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("unknown class", func(t *testing.T) {
		a := newAdapter(t, &stubClassifier{class: 7}, &stubRegressor{value: 90})
		_, err := a.Infer(types.EnrichedSample{})
		var ie *InferenceError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "decode", ie.Stage)
	})

	t.Run("regressor", func(t *testing.T) {
		a := newAdapter(t, &stubClassifier{}, &stubRegressor{err: boom})
		_, err := a.Infer(types.EnrichedSample{})
		var ie *InferenceError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "regress", ie.Stage)
	})
}

func TestInfer_ImplausibleHealthIndex(t *testing.T) {
	obs := &countingObserver{}
	a := newAdapter(t, &stubClassifier{}, &stubRegressor{value: 104.5}, WithObserver(obs))

	res, err := a.Infer(types.EnrichedSample{})
	require.NoError(t, err, "out-of-range index is a warning, not a failure")
	assert.Equal(t, 104.5, res.HealthIndex, "never clipped")
	assert.Equal(t, types.Healthy, res.HealthStatus)
	assert.Equal(t, 1, obs.implausible)
	assert.Equal(t, 1, obs.inferences)
}

func TestInfer_NonFiniteHealthIndex(t *testing.T) {
	obs := &countingObserver{}
	a := newAdapter(t, &stubClassifier{}, &stubRegressor{value: math.NaN()}, WithObserver(obs))

	_, err := a.Infer(types.EnrichedSample{})
	var ie *InferenceError
	assert.ErrorAs(t, err, &ie)
	assert.Equal(t, 1, obs.implausible)
}

func TestNew_WithArtifacts(t *testing.T) {
	arts, err := model.LoadArtifacts(model.Files{Dir: "../model/testdata"})
	require.NoError(t, err)
	a, err := New(arts)
	require.NoError(t, err)

	res, err := a.Infer(parseEnrich(t, "0.50,250.0,35.0"))
	require.NoError(t, err)
	assert.Equal(t, "Overvoltage", res.FaultLabel)
	assert.InDelta(t, 29.0, res.HealthIndex, 1e-9)
	assert.Equal(t, types.Faulty, res.HealthStatus)
}
