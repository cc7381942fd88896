package model

import (
	"fmt"
	"math"
)

// Artifact kinds.
const (
	KindClassifier = "random_forest_classifier"
	KindRegressor  = "random_forest_regressor"
)

// Node is one decision or leaf node in a tree's flat node array.
type Node struct {
	// Feature is the input column tested at this node; negative for a leaf.
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`

	// Value is the leaf payload: class counts or probabilities for a
	// classifier, a single prediction for a regressor.
	Value []float64 `json:"value,omitempty"`
}

// Tree is a single decision tree. Node 0 is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is the serialised form shared by both model kinds.
type Forest struct {
	Kind      string `json:"kind"`
	NFeatures int    `json:"n_features"`
	NClasses  int    `json:"n_classes,omitempty"`
	Trees     []Tree `json:"trees"`
}

// leaf walks t for x and returns the reached leaf.
func (t *Tree) leaf(x []float64) *Node {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// validate checks structural invariants. Child indexes must point strictly
// forward, which rules out cycles.
func (f *Forest) validate(kind string) error {
	if f.Kind != kind {
		return fmt.Errorf("kind %q, want %q", f.Kind, kind)
	}
	if f.NFeatures <= 0 {
		return fmt.Errorf("n_features must be positive, got %d", f.NFeatures)
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("no trees")
	}
	wantValues := 1
	if kind == KindClassifier {
		if f.NClasses < 1 {
			return fmt.Errorf("n_classes must be positive, got %d", f.NClasses)
		}
		wantValues = f.NClasses
	}

	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d: no nodes", ti)
		}
		for ni, n := range t.Nodes {
			if n.Feature < 0 {
				if len(n.Value) != wantValues {
					return fmt.Errorf("tree %d node %d: leaf has %d values, want %d", ti, ni, len(n.Value), wantValues)
				}
				for _, v := range n.Value {
					if math.IsNaN(v) || math.IsInf(v, 0) {
						return fmt.Errorf("tree %d node %d: non-finite leaf value", ti, ni)
					}
				}
				continue
			}
			if n.Feature >= f.NFeatures {
				return fmt.Errorf("tree %d node %d: feature %d out of range [0,%d)", ti, ni, n.Feature, f.NFeatures)
			}
			if math.IsNaN(n.Threshold) {
				return fmt.Errorf("tree %d node %d: NaN threshold", ti, ni)
			}
			for _, c := range [2]int{n.Left, n.Right} {
				if c <= ni || c >= len(t.Nodes) {
					return fmt.Errorf("tree %d node %d: child %d out of range", ti, ni, c)
				}
			}
		}
	}
	return nil
}

func checkShape(x []float64, want int) error {
	if len(x) != want {
		return fmt.Errorf("model: got %d features, want %d", len(x), want)
	}
	return nil
}

// ForestClassifier predicts a class index.
type ForestClassifier struct {
	f Forest
}

// NewForestClassifier validates f and wraps it for evaluation.
func NewForestClassifier(f Forest) (*ForestClassifier, error) {
	if err := f.validate(KindClassifier); err != nil {
		return nil, fmt.Errorf("model: classifier: %w", err)
	}
	return &ForestClassifier{f: f}, nil
}

// NumFeatures returns the expected input width.
func (c *ForestClassifier) NumFeatures() int { return c.f.NFeatures }

// NumTrees returns the ensemble size.
func (c *ForestClassifier) NumTrees() int { return len(c.f.Trees) }

// NumClasses returns the number of classes the forest votes over.
func (c *ForestClassifier) NumClasses() int { return c.f.NClasses }

// Predict returns the class index with the highest averaged probability.
// Ties go to the lowest index.
func (c *ForestClassifier) Predict(x []float64) (int, error) {
	if err := checkShape(x, c.f.NFeatures); err != nil {
		return 0, err
	}
	votes := make([]float64, c.f.NClasses)
	for i := range c.f.Trees {
		leaf := c.f.Trees[i].leaf(x)
		var total float64
		for _, v := range leaf.Value {
			total += v
		}
		if total <= 0 {
			continue
		}
		for k, v := range leaf.Value {
			votes[k] += v / total
		}
	}
	best := 0
	for k := 1; k < len(votes); k++ {
		if votes[k] > votes[best] {
			best = k
		}
	}
	return best, nil
}

// ForestRegressor predicts a continuous value.
type ForestRegressor struct {
	f Forest
}

// NewForestRegressor validates f and wraps it for evaluation.
func NewForestRegressor(f Forest) (*ForestRegressor, error) {
	if err := f.validate(KindRegressor); err != nil {
		return nil, fmt.Errorf("model: regressor: %w", err)
	}
	return &ForestRegressor{f: f}, nil
}

// NumFeatures returns the expected input width.
func (r *ForestRegressor) NumFeatures() int { return r.f.NFeatures }

// NumTrees returns the ensemble size.
func (r *ForestRegressor) NumTrees() int { return len(r.f.Trees) }

// Predict returns the mean leaf value across trees.
func (r *ForestRegressor) Predict(x []float64) (float64, error) {
	if err := checkShape(x, r.f.NFeatures); err != nil {
		return 0, err
	}
	var sum float64
	for i := range r.f.Trees {
		sum += r.f.Trees[i].leaf(x).Value[0]
	}
	return sum / float64(len(r.f.Trees)), nil
}

// Labels maps class indexes to fault labels.
type Labels []string

// Decode returns the label for class index i.
func (l Labels) Decode(i int) (string, error) {
	if i < 0 || i >= len(l) {
		return "", fmt.Errorf("model: class index %d outside label set of %d", i, len(l))
	}
	return l[i], nil
}
