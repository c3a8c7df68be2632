package classifier

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alignify/formcoach/internal/pose"
)

// modelExts are tried in order for each directory.
var modelExts = []string{".onnx", ".tflite"}

// Resolve finds the model file for kind. A downloaded copy in cacheDir wins over
// the default shipped in bundledDir. Either directory may be empty.
func Resolve(cacheDir, bundledDir string, kind pose.Kind) (string, error) {
	for _, dir := range []string{cacheDir, bundledDir} {
		if dir == "" {
			continue
		}
		for _, ext := range modelExts {
			path := filepath.Join(dir, string(kind)+ext)
			if info, err := os.Stat(path); err == nil && !info.IsDir() && info.Size() > 0 {
				return path, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no model for %s", ErrUnavailable, kind)
}

// Open resolves and loads the model for kind with the input size its feature
// extractor produces.
func Open(cacheDir, bundledDir string, kind pose.Kind) (*Model, error) {
	path, err := Resolve(cacheDir, bundledDir, kind)
	if err != nil {
		return nil, err
	}
	return Load(path, pose.FeatureLength(kind))
}
