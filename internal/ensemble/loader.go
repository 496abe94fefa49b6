package ensemble

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "ensemble")

const (
	modelSuffix      = ".model.json"
	scalerFile       = "scaler.json"
	featureNamesFile = "feature_names.json"
)

// Artifacts is the content of a model directory.
type Artifacts struct {
	Classifiers  []Classifier
	Scaler       *Scaler  // nil when the directory carries none
	FeatureNames []string // nil when the directory carries none
}

// LoadArtifacts reads every usable artifact from dir. A missing directory
// or a directory with zero usable classifiers is a fatal startup error:
// the process must not serve predictions without models.
func LoadArtifacts(dir string) (*Artifacts, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "models directory %s", dir)
	}

	// first pass picks up the shared artifacts so the serialized feature
	// list can back models that declare no feature order of their own
	art := &Artifacts{}
	var specs []modelArtifact
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(dir, name)

		switch {
		case name == scalerFile:
			var s Scaler
			if err := readJSON(path, &s); err != nil {
				log.Warnf("skipping unreadable scaler %s: %v", name, err)
				continue
			}
			art.Scaler = &s

		case name == featureNamesFile:
			var names []string
			if err := readJSON(path, &names); err != nil {
				log.Warnf("skipping unreadable feature list %s: %v", name, err)
				continue
			}
			art.FeatureNames = names

		case strings.HasSuffix(name, modelSuffix):
			var spec modelArtifact
			if err := readJSON(path, &spec); err != nil {
				log.Warnf("skipping unreadable model %s: %v", name, err)
				continue
			}
			if spec.Name == "" {
				spec.Name = strings.TrimSuffix(name, modelSuffix)
			}
			specs = append(specs, spec)
		}
	}

	for _, spec := range specs {
		clf, err := newClassifier(spec, art.FeatureNames)
		if err != nil {
			log.Warnf("skipping model %s: %v", spec.Name, err)
			continue
		}
		art.Classifiers = append(art.Classifiers, clf)
	}

	if len(art.Classifiers) == 0 {
		return nil, errors.Errorf("no usable classifiers in %s", dir)
	}

	log.Infof("loaded %d classifiers from %s (scaler=%v)", len(art.Classifiers), dir, art.Scaler != nil)
	return art, nil
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
