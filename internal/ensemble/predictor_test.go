package ensemble

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/betbot/swingfeed/internal/domain"
)

// stubClassifier returns a fixed probability and records the vector it
// was handed.
type stubClassifier struct {
	name     string
	features []string
	prob     float64
	lastX    []float64
}

func (s *stubClassifier) Name() string           { return s.name }
func (s *stubClassifier) FeatureNames() []string { return s.features }
func (s *stubClassifier) PredictProba(x []float64) float64 {
	s.lastX = x
	return s.prob
}

func stubs(prob float64, names ...string) *Artifacts {
	art := &Artifacts{}
	for _, n := range names {
		art.Classifiers = append(art.Classifiers, &stubClassifier{
			name:     n,
			features: []string{"wp"},
			prob:     prob,
		})
	}
	return art
}

var referenceWeights = map[string]float64{
	"xgb": 0.35,
	"lgb": 0.35,
	"rf":  0.20,
	"lr":  0.10,
}

func TestBlendAgreeingModels(t *testing.T) {
	p, err := NewPredictor(stubs(0.8, "xgb", "lgb", "rf", "lr"), referenceWeights)
	require.NoError(t, err)

	blended, perModel, err := p.Predict(domain.FeatureVector{Values: map[string]float64{"wp": 0.5}})
	require.NoError(t, err)
	require.InDelta(t, 0.8, blended, 1e-15)
	require.Len(t, perModel, 4)
	for name, prob := range perModel {
		require.InDelta(t, 0.8, prob, 1e-15, "model %s", name)
	}
}

func TestBlendIsWeightedSum(t *testing.T) {
	art := &Artifacts{Classifiers: []Classifier{
		&stubClassifier{name: "xgb", features: []string{"wp"}, prob: 1.0},
		&stubClassifier{name: "lgb", features: []string{"wp"}, prob: 0.0},
		&stubClassifier{name: "rf", features: []string{"wp"}, prob: 0.5},
		&stubClassifier{name: "lr", features: []string{"wp"}, prob: 0.5},
	}}
	p, err := NewPredictor(art, referenceWeights)
	require.NoError(t, err)

	blended, _, err := p.Predict(domain.FeatureVector{Values: map[string]float64{"wp": 0.5}})
	require.NoError(t, err)
	want := 0.35*1.0 + 0.35*0.0 + 0.20*0.5 + 0.10*0.5
	require.InDelta(t, want, blended, 1e-15)
}

func TestUnweightedModelsShareRemainder(t *testing.T) {
	art := &Artifacts{Classifiers: []Classifier{
		&stubClassifier{name: "xgb", features: []string{"wp"}, prob: 1.0},
		&stubClassifier{name: "extra_a", features: []string{"wp"}, prob: 0.0},
		&stubClassifier{name: "extra_b", features: []string{"wp"}, prob: 0.0},
	}}
	p, err := NewPredictor(art, map[string]float64{"xgb": 0.5})
	require.NoError(t, err)

	// remainder 0.5 splits evenly across the two unweighted models
	blended, _, err := p.Predict(domain.FeatureVector{Values: map[string]float64{"wp": 0.5}})
	require.NoError(t, err)
	require.InDelta(t, 0.5, blended, 1e-15)
}

func TestNoWeightsFallsBackToAverage(t *testing.T) {
	art := &Artifacts{Classifiers: []Classifier{
		&stubClassifier{name: "a", features: []string{"wp"}, prob: 0.2},
		&stubClassifier{name: "b", features: []string{"wp"}, prob: 0.6},
	}}
	p, err := NewPredictor(art, nil)
	require.NoError(t, err)

	blended, _, err := p.Predict(domain.FeatureVector{Values: map[string]float64{"wp": 0.5}})
	require.NoError(t, err)
	require.InDelta(t, 0.4, blended, 1e-15)
}

func TestPredictAlignsPerModelOrder(t *testing.T) {
	clf := &stubClassifier{
		name:     "xgb",
		features: []string{"ydstogo", "down", "missing_col"},
		prob:     0.5,
	}
	p, err := NewPredictor(&Artifacts{Classifiers: []Classifier{clf}}, nil)
	require.NoError(t, err)

	_, _, err = p.Predict(domain.FeatureVector{Values: map[string]float64{
		"down":    3,
		"ydstogo": 7,
	}})
	require.NoError(t, err)
	// vector follows the model's declared order, absent columns fill 0
	require.Equal(t, []float64{7, 3, 0}, clf.lastX)
}

func TestPredictClampsOutOfRangeProbabilities(t *testing.T) {
	art := &Artifacts{Classifiers: []Classifier{
		&stubClassifier{name: "a", features: []string{"wp"}, prob: 1.7},
	}}
	p, err := NewPredictor(art, nil)
	require.NoError(t, err)

	blended, perModel, err := p.Predict(domain.FeatureVector{Values: map[string]float64{"wp": 0.5}})
	require.NoError(t, err)
	require.InDelta(t, 1.0, blended, 1e-15)
	require.InDelta(t, 1.0, perModel["a"], 1e-15)
}

func TestNewPredictorRequiresClassifiers(t *testing.T) {
	_, err := NewPredictor(&Artifacts{}, nil)
	require.Error(t, err)
	_, err = NewPredictor(nil, nil)
	require.Error(t, err)
}

func TestScalerAppliesByName(t *testing.T) {
	s := &Scaler{
		Features: []string{"wp"},
		Mean:     []float64{0.5},
		Scale:    []float64{0.1},
	}
	out := s.Apply(map[string]float64{"wp": 0.7, "down": 3})
	require.InDelta(t, 2.0, out["wp"], 1e-12)
	// unknown features pass through untouched
	require.InDelta(t, 3.0, out["down"], 1e-12)
}

func TestLoadArtifactsMissingDirIsFatal(t *testing.T) {
	_, err := LoadArtifacts(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestLoadArtifactsEmptyDirIsFatal(t *testing.T) {
	_, err := LoadArtifacts(t.TempDir())
	require.Error(t, err)
}

func TestLoadArtifactsRoundTrip(t *testing.T) {
	dir := t.TempDir()

	logreg := `{"type":"logreg","features":["wp"],"coef":[0],"intercept":0}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lr.model.json"), []byte(logreg), 0o644))

	gbdt := `{
		"type":"gbdt","features":["wp"],"base_score":0,
		"trees":[{"nodes":[
			{"feature":0,"threshold":0.5,"left":1,"right":2},
			{"feature":-1,"value":-2},
			{"feature":-1,"value":2}
		]}]
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "xgb.model.json"), []byte(gbdt), 0o644))

	// broken artifacts are skipped, not fatal
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.model.json"), []byte("{"), 0o644))

	art, err := LoadArtifacts(dir)
	require.NoError(t, err)
	require.Len(t, art.Classifiers, 2)

	byName := make(map[string]Classifier)
	for _, c := range art.Classifiers {
		byName[c.Name()] = c
	}

	// zero coefficients: logistic regression sits exactly at the midpoint
	require.InDelta(t, 0.5, byName["lr"].PredictProba([]float64{0.3}), 1e-15)

	// tree splits on wp at 0.5 with a +/-2 margin
	low := byName["xgb"].PredictProba([]float64{0.2})
	high := byName["xgb"].PredictProba([]float64{0.8})
	require.InDelta(t, 1/(1+math.Exp(2)), low, 1e-12)
	require.InDelta(t, 1/(1+math.Exp(-2)), high, 1e-12)
}

func TestLoadArtifactsSharedFeatureListBacksBareModels(t *testing.T) {
	dir := t.TempDir()

	// the model carries no feature order; the directory's shared list is it
	names := `["down","ydstogo","wp"]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feature_names.json"), []byte(names), 0o644))
	logreg := `{"type":"logreg","coef":[0,0,1],"intercept":0}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lr.model.json"), []byte(logreg), 0o644))

	art, err := LoadArtifacts(dir)
	require.NoError(t, err)
	require.Len(t, art.Classifiers, 1)
	require.Equal(t, []string{"down", "ydstogo", "wp"}, art.Classifiers[0].FeatureNames())
}

func TestLoadArtifactsBareModelWithoutSharedListIsSkipped(t *testing.T) {
	dir := t.TempDir()
	logreg := `{"type":"logreg","coef":[1],"intercept":0}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lr.model.json"), []byte(logreg), 0o644))

	_, err := LoadArtifacts(dir)
	require.Error(t, err)
}
