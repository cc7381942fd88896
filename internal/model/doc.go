// Package model loads and evaluates the pretrained artifacts used by the
// inference adapter.
//
// forest.go holds the tree-ensemble evaluators. Artifacts are exported from
// scikit-learn random forests into a small JSON layout (one flat node array
// per tree, leaves marked by feature < 0, left branch taken when
// x[feature] <= threshold). Classification sums the normalised leaf class
// distributions of every tree and takes the argmax; regression averages the
// leaf values.
//
// load.go reads the artifact directory once at startup and validates every
// structural invariant up front, so evaluation never has to.
package model
