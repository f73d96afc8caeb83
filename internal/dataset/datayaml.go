// Package dataset prepares a downloaded detection dataset for training:
// archive extraction and data.yaml handling.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DataFile is the name of the dataset descriptor inside an export.
const DataFile = "data.yaml"

// DataConfig is the subset of data.yaml the trainer reads. Unknown keys
// (roboflow metadata and the like) are preserved through Extra.
type DataConfig struct {
	Train string         `yaml:"train"`
	Val   string         `yaml:"val"`
	Test  string         `yaml:"test,omitempty"`
	NC    int            `yaml:"nc"`
	Names Names          `yaml:"names"`
	Extra map[string]any `yaml:",inline"`
}

// ReadDataConfig parses a data.yaml file.
func ReadDataConfig(path string) (*DataConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var dc DataConfig
	if err := yaml.Unmarshal(raw, &dc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if dc.NC == 0 {
		dc.NC = len(dc.Names)
	}
	if dc.NC != len(dc.Names) {
		return nil, fmt.Errorf("%s declares nc=%d but lists %d names", path, dc.NC, len(dc.Names))
	}
	return &dc, nil
}

// Write stores the config as yaml at path. Names are written in list form.
func (dc *DataConfig) Write(path string) error {
	out := map[string]any{}
	for k, v := range dc.Extra {
		out[k] = v
	}
	out["train"] = dc.Train
	out["val"] = dc.Val
	if dc.Test != "" {
		out["test"] = dc.Test
	}
	out["nc"] = dc.NC
	out["names"] = dc.Names.Sorted()

	raw, err := yaml.Marshal(out)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}

// Absolutize rewrites the split paths relative to root. Exports from the
// hosted service point at "../train/images", which only resolves when the
// trainer runs from inside the dataset directory.
func (dc *DataConfig) Absolutize(root string) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	fix := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		candidate := filepath.Join(root, p)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		// "../train/images" style: resolve against the root itself.
		return filepath.Join(root, filepath.Base(filepath.Dir(p)), filepath.Base(p))
	}
	dc.Train = fix(dc.Train)
	dc.Val = fix(dc.Val)
	dc.Test = fix(dc.Test)
	return nil
}

// PrepareDataFile absolutizes the split paths of root/data.yaml in place
// and returns the file's path.
func PrepareDataFile(root string) (string, *DataConfig, error) {
	path := filepath.Join(root, DataFile)
	dc, err := ReadDataConfig(path)
	if err != nil {
		return "", nil, err
	}
	if err := dc.Absolutize(root); err != nil {
		return "", nil, err
	}
	if err := dc.Write(path); err != nil {
		return "", nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, dc, nil
}
