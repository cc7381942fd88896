package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Default artifact file names inside the model directory.
const (
	DefaultClassifierFile = "classifier.json"
	DefaultRegressorFile  = "regressor.json"
	DefaultLabelsFile     = "labels.json"
	DefaultFeaturesFile   = "features.json"
)

// Files names the artifact files. Relative names resolve against Dir.
type Files struct {
	Dir        string
	Classifier string
	Regressor  string
	Labels     string
	Features   string
}

func (f Files) path(name, def string) string {
	if name == "" {
		name = def
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(f.Dir, name)
}

// Artifacts is the full set of loaded models. It is immutable once returned.
type Artifacts struct {
	Classifier *ForestClassifier
	Regressor  *ForestRegressor
	Labels     Labels

	// Features is the column order the classifier was trained with, as
	// recorded at training time. It is validated by the inference adapter.
	Features []string
}

// LoadArtifacts reads and validates every artifact. Any missing or
// inconsistent file is an error; there is no partial result.
func LoadArtifacts(files Files) (*Artifacts, error) {
	var cf, rf Forest
	var labels Labels
	var features []string

	if err := readJSON(files.path(files.Classifier, DefaultClassifierFile), &cf); err != nil {
		return nil, err
	}
	if err := readJSON(files.path(files.Regressor, DefaultRegressorFile), &rf); err != nil {
		return nil, err
	}
	if err := readJSON(files.path(files.Labels, DefaultLabelsFile), &labels); err != nil {
		return nil, err
	}
	if err := readJSON(files.path(files.Features, DefaultFeaturesFile), &features); err != nil {
		return nil, err
	}

	clf, err := NewForestClassifier(cf)
	if err != nil {
		return nil, err
	}
	reg, err := NewForestRegressor(rf)
	if err != nil {
		return nil, err
	}
	if len(labels) != clf.NumClasses() {
		return nil, fmt.Errorf("model: %d labels for %d classes", len(labels), clf.NumClasses())
	}
	if len(features) != clf.NumFeatures() {
		return nil, fmt.Errorf("model: %d feature names for a %d-feature classifier", len(features), clf.NumFeatures())
	}
	if reg.NumFeatures() != len(features) {
		return nil, fmt.Errorf("model: %d-feature regressor does not match %d feature names", reg.NumFeatures(), len(features))
	}

	return &Artifacts{
		Classifier: clf,
		Regressor:  reg,
		Labels:     labels,
		Features:   features,
	}, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("model: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("model: parse %s: %w", path, err)
	}
	return nil
}
