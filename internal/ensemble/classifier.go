// Package ensemble loads pre-trained classifier artifacts and blends
// their probabilities into one swing score. Training happens elsewhere;
// this package only consumes serialized models.
package ensemble

import (
	"math"

	"github.com/pkg/errors"
)

// Classifier is the capability contract every loaded model satisfies:
// it declares the feature order it expects and scores an aligned vector.
type Classifier interface {
	Name() string
	FeatureNames() []string
	PredictProba(x []float64) float64
}

// modelArtifact is the on-disk JSON layout shared by all model types.
type modelArtifact struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"` // "logreg" or "gbdt"
	Features []string `json:"features"`

	// logreg
	Coef      []float64 `json:"coef,omitempty"`
	Intercept float64   `json:"intercept,omitempty"`

	// gbdt
	BaseScore float64    `json:"base_score,omitempty"`
	Trees     []treeSpec `json:"trees,omitempty"`
}

type treeSpec struct {
	Nodes []treeNode `json:"nodes"`
}

// treeNode is one node of a binary decision tree. Feature < 0 marks a
// leaf whose Value is the raw margin contribution.
type treeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// logregClassifier is a serialized logistic regression.
type logregClassifier struct {
	name     string
	features []string
	coef     []float64
	bias     float64
}

func (c *logregClassifier) Name() string           { return c.name }
func (c *logregClassifier) FeatureNames() []string { return c.features }

func (c *logregClassifier) PredictProba(x []float64) float64 {
	z := c.bias
	for i, w := range c.coef {
		if i < len(x) {
			z += w * x[i]
		}
	}
	return sigmoid(z)
}

// gbdtClassifier is a serialized gradient-boosted tree ensemble with a
// logistic link, the export format shared by the xgb/lgb/rf artifacts.
type gbdtClassifier struct {
	name      string
	features  []string
	baseScore float64
	trees     []treeSpec
}

func (c *gbdtClassifier) Name() string           { return c.name }
func (c *gbdtClassifier) FeatureNames() []string { return c.features }

func (c *gbdtClassifier) PredictProba(x []float64) float64 {
	margin := c.baseScore
	for _, tree := range c.trees {
		margin += evalTree(tree, x)
	}
	return sigmoid(margin)
}

func evalTree(tree treeSpec, x []float64) float64 {
	if len(tree.Nodes) == 0 {
		return 0
	}
	idx := 0
	for step := 0; step < len(tree.Nodes); step++ {
		node := tree.Nodes[idx]
		if node.Feature < 0 {
			return node.Value
		}
		v := 0.0
		if node.Feature < len(x) {
			v = x[node.Feature]
		}
		if v < node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
		if idx < 0 || idx >= len(tree.Nodes) {
			return 0
		}
	}
	return 0
}

// newClassifier materializes an artifact into a Classifier. A model that
// declares no feature order of its own is assigned the directory's shared
// feature list.
func newClassifier(a modelArtifact, fallbackFeatures []string) (Classifier, error) {
	if a.Name == "" {
		return nil, errors.New("model artifact has no name")
	}
	if len(a.Features) == 0 {
		a.Features = fallbackFeatures
	}
	if len(a.Features) == 0 {
		return nil, errors.Errorf("model %s declares no features and no shared feature list exists", a.Name)
	}
	switch a.Type {
	case "logreg":
		if len(a.Coef) != len(a.Features) {
			return nil, errors.Errorf("model %s: %d coefficients for %d features", a.Name, len(a.Coef), len(a.Features))
		}
		return &logregClassifier{
			name:     a.Name,
			features: a.Features,
			coef:     a.Coef,
			bias:     a.Intercept,
		}, nil
	case "gbdt":
		if len(a.Trees) == 0 {
			return nil, errors.Errorf("model %s has no trees", a.Name)
		}
		return &gbdtClassifier{
			name:      a.Name,
			features:  a.Features,
			baseScore: a.BaseScore,
			trees:     a.Trees,
		}, nil
	default:
		return nil, errors.Errorf("model %s: unknown type %q", a.Name, a.Type)
	}
}

// Scaler applies the optional standard scaling the models were trained
// with, keyed by feature name.
type Scaler struct {
	Features []string  `json:"features"`
	Mean     []float64 `json:"mean"`
	Scale    []float64 `json:"scale"`
}

// Apply returns scaled values for the named features. Features the scaler
// does not know pass through unchanged.
func (s *Scaler) Apply(values map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(values))
	for k, v := range values {
		out[k] = v
	}
	for i, name := range s.Features {
		if i >= len(s.Mean) || i >= len(s.Scale) {
			break
		}
		v, ok := out[name]
		if !ok {
			v = 0
		}
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[name] = (v - s.Mean[i]) / scale
	}
	return out
}
