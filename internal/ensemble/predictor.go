package ensemble

import (
	"github.com/pkg/errors"

	"github.com/betbot/swingfeed/internal/domain"
)

// Predictor blends the probabilities of the loaded classifiers into one
// swing score using fixed convex weights.
type Predictor struct {
	classifiers []Classifier
	scaler      *Scaler
	weights     map[string]float64
}

// NewPredictor wires loaded artifacts to the configured blend weights.
// Weights are configuration: models without a configured weight split the
// unassigned remainder evenly; with no weights at all, the blend is a
// plain average.
func NewPredictor(art *Artifacts, weights map[string]float64) (*Predictor, error) {
	if art == nil || len(art.Classifiers) == 0 {
		return nil, errors.New("predictor needs at least one classifier")
	}

	resolved := make(map[string]float64, len(art.Classifiers))
	var assigned float64
	var unweighted []string
	for _, c := range art.Classifiers {
		if w, ok := weights[c.Name()]; ok {
			resolved[c.Name()] = w
			assigned += w
		} else {
			unweighted = append(unweighted, c.Name())
		}
	}
	if len(unweighted) > 0 {
		remainder := 1.0 - assigned
		if remainder < 0 {
			remainder = 0
		}
		share := remainder / float64(len(unweighted))
		for _, name := range unweighted {
			resolved[name] = share
		}
	}

	return &Predictor{
		classifiers: art.Classifiers,
		scaler:      art.Scaler,
		weights:     resolved,
	}, nil
}

// Predict scores one feature vector. Each classifier's input is re-aligned
// to its declared feature order, absent features filled with 0.0; column
// order mismatch between vector and model is the bug class this prevents.
// Returns the blended probability and the raw per-model probabilities.
func (p *Predictor) Predict(fv domain.FeatureVector) (float64, map[string]float64, error) {
	if len(p.classifiers) == 0 {
		return 0, nil, errors.New("no classifiers loaded")
	}

	values := fv.Values
	if p.scaler != nil {
		values = p.scaler.Apply(values)
	}

	perModel := make(map[string]float64, len(p.classifiers))
	var weighted, totalWeight float64
	for _, c := range p.classifiers {
		x := alignVector(values, c.FeatureNames())
		prob := clamp01(c.PredictProba(x))
		perModel[c.Name()] = prob

		w := p.weights[c.Name()]
		weighted += w * prob
		totalWeight += w
	}

	if totalWeight <= 0 {
		// degenerate configuration, fall back to a plain average
		var sum float64
		for _, prob := range perModel {
			sum += prob
		}
		return sum / float64(len(perModel)), perModel, nil
	}
	return weighted / totalWeight, perModel, nil
}

// ModelNames lists the loaded classifiers.
func (p *Predictor) ModelNames() []string {
	names := make([]string, 0, len(p.classifiers))
	for _, c := range p.classifiers {
		names = append(names, c.Name())
	}
	return names
}

func alignVector(values map[string]float64, order []string) []float64 {
	x := make([]float64, len(order))
	for i, name := range order {
		x[i] = values[name] // zero for absent features
	}
	return x
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
