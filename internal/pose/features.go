package pose

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKind is returned when an exercise identifier is not recognized.
var ErrUnknownKind = errors.New("unknown exercise kind")

// Kind identifies an exercise. It selects the detector, the feature layout and the model file.
type Kind string

const (
	BicepCurl Kind = "bicep_curl"
	Squat     Kind = "squat"
	Lunge     Kind = "lunge"
	Plank     Kind = "plank"
)

// Kinds lists every supported exercise in display order.
func Kinds() []Kind {
	return []Kind{BicepCurl, Squat, Lunge, Plank}
}

// ParseKind resolves a user-supplied identifier. It accepts "bicep-curl",
// "Bicep Curl" and similar spellings.
func ParseKind(s string) (Kind, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	for _, k := range Kinds() {
		if string(k) == norm {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// featureJoints is the ordered joint layout of each exercise's feature vector.
// Classifier models are trained against exactly this ordering.
var featureJoints = map[Kind][]Joint{
	BicepCurl: {
		Nose,
		LeftShoulder, RightShoulder,
		LeftElbow, RightElbow,
		LeftWrist, RightWrist,
		LeftHip, RightHip,
	},
	Squat: {
		LeftShoulder, RightShoulder,
		LeftHip, RightHip,
		LeftKnee, RightKnee,
		LeftAnkle, RightAnkle,
	},
	Lunge: {
		LeftShoulder, RightShoulder,
		LeftHip, RightHip,
		LeftKnee, RightKnee,
		LeftAnkle, RightAnkle,
	},
	Plank: {
		LeftShoulder, RightShoulder,
		LeftElbow, RightElbow,
		LeftWrist, RightWrist,
		LeftHip, RightHip,
		LeftKnee, RightKnee,
		LeftAnkle, RightAnkle,
	},
}

// FeatureLength returns the length of the vector ExtractFeatures produces for k,
// or 0 for an unknown kind.
func FeatureLength(k Kind) int {
	return 2 * len(featureJoints[k])
}

// ExtractFeatures flattens the kind's joints into x,y pairs. It reports false
// if k is unknown or any required joint is missing.
func ExtractFeatures(k Kind, s LandmarkSet) ([]float64, bool) {
	joints, ok := featureJoints[k]
	if !ok {
		return nil, false
	}

	features := make([]float64, 0, 2*len(joints))
	for _, j := range joints {
		p, ok := s.Point(j)
		if !ok {
			return nil, false
		}
		features = append(features, p.X, p.Y)
	}
	return features, true
}
