package dataset

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Names is the class index to class name mapping of a dataset.
type Names map[int]string

// UnmarshalYAML accepts both the list form (`names: [a, b]`) used by
// YOLOv5 exports and the map form (`names: {0: a, 1: b}`) used by YOLOv8.
func (n *Names) UnmarshalYAML(value *yaml.Node) error {
	out := make(Names)
	switch value.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		for i, name := range list {
			out[i] = name
		}
	case yaml.MappingNode:
		var m map[int]string
		if err := value.Decode(&m); err != nil {
			return err
		}
		for i, name := range m {
			out[i] = name
		}
	default:
		return fmt.Errorf("names: unsupported yaml node kind %d", value.Kind)
	}
	*n = out
	return nil
}

// Sorted returns the names ordered by class index.
func (n Names) Sorted() []string {
	idx := make([]int, 0, len(n))
	for i := range n {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		out = append(out, n[i])
	}
	return out
}

// LoadNames reads the class names from a data.yaml file.
func LoadNames(path string) (Names, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var cfg struct {
		Names Names `yaml:"names"`
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(cfg.Names) == 0 {
		return nil, fmt.Errorf("no class names in %s", path)
	}
	return cfg.Names, nil
}
