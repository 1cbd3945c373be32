package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadSetupFile decodes a setup.yaml's RingBuffer and Functions sections,
// preserving their declaration order.
func LoadSetupFile(path string) (*SetupFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: opening setup file: %w", err)
	}
	defer f.Close()

	var sf SetupFile
	if err := yaml.NewDecoder(f).Decode(&sf); err != nil {
		return nil, fmt.Errorf("config: parsing setup file %s: %w", path, err)
	}
	if len(sf.RingBuffers) == 0 {
		return nil, fmt.Errorf("config: setup file %s declares no ring buffers", path)
	}
	if len(sf.Workers) == 0 {
		log.Printf("config: setup file %s declares no worker functions", path)
	}
	return &sf, nil
}

// UnmarshalYAML decodes the top-level RingBuffer and Functions sequences
// directly off their YAML nodes so declaration order survives — Go map
// decoding gives no such guarantee, and RB_k/Fkt_k naming depends on it.
func (sf *SetupFile) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("config: setup file must be a mapping with RingBuffer and Functions sections")
	}

	var ringBufferNode, functionsNode *yaml.Node
	for i := 0; i+1 < len(node.Content); i += 2 {
		switch node.Content[i].Value {
		case "RingBuffer":
			ringBufferNode = node.Content[i+1]
		case "Functions":
			functionsNode = node.Content[i+1]
		}
	}
	if ringBufferNode == nil {
		return fmt.Errorf("config: setup file missing RingBuffer section")
	}
	if functionsNode == nil {
		return fmt.Errorf("config: setup file missing Functions section")
	}
	if ringBufferNode.Kind != yaml.SequenceNode {
		return fmt.Errorf("config: RingBuffer section must be a list")
	}
	if functionsNode.Kind != yaml.SequenceNode {
		return fmt.Errorf("config: Functions section must be a list")
	}

	for _, item := range ringBufferNode.Content {
		name, valueNode, err := decodeSingleKeyMap(item)
		if err != nil {
			return fmt.Errorf("config: RingBuffer entry: %w", err)
		}
		var spec RingBufferSpec
		if err := valueNode.Decode(&spec); err != nil {
			return fmt.Errorf("config: RingBuffer %q: %w", name, err)
		}
		sf.RingBuffers = append(sf.RingBuffers, RingBufferEntry{Name: name, Spec: spec})
	}

	if len(functionsNode.Content) == 0 {
		return fmt.Errorf("config: Functions section must declare at least Fkt_main")
	}

	mainName, mainValueNode, err := decodeSingleKeyMap(functionsNode.Content[0])
	if err != nil {
		return fmt.Errorf("config: Functions[0] (Fkt_main): %w", err)
	}
	if mainName != "Fkt_main" {
		return fmt.Errorf("config: Functions[0] must be Fkt_main, got %q", mainName)
	}
	if err := mainValueNode.Decode(&sf.Main); err != nil {
		return fmt.Errorf("config: Fkt_main: %w", err)
	}

	for _, item := range functionsNode.Content[1:] {
		name, valueNode, err := decodeSingleKeyMap(item)
		if err != nil {
			return fmt.Errorf("config: Functions entry: %w", err)
		}
		var spec WorkerSpec
		if err := valueNode.Decode(&spec); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
		sf.Workers = append(sf.Workers, WorkerEntry{Name: name, Spec: spec})
	}

	return nil
}

// UnmarshalYAML decodes a data_type value: either a bare scalar string, or
// a mapping whose values are [field_name, type_name] pairs, read directly
// off node.Content to preserve field declaration order.
func (d *DataTypeSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		d.Scalar = node.Value
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			valueNode := node.Content[i+1]
			var pair []string
			if err := valueNode.Decode(&pair); err != nil {
				return fmt.Errorf("config: data_type field %q: %w", node.Content[i].Value, err)
			}
			if len(pair) != 2 {
				return fmt.Errorf("config: data_type field %q must be a [field_name, type_name] pair", node.Content[i].Value)
			}
			d.Fields = append(d.Fields, FieldSpec{Name: pair[0], Type: pair[1]})
		}
		return nil
	default:
		return fmt.Errorf("config: data_type must be a scalar type name or a field mapping")
	}
}

func decodeSingleKeyMap(node *yaml.Node) (key string, value *yaml.Node, err error) {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return "", nil, fmt.Errorf("expected a single-key mapping")
	}
	return node.Content[0].Value, node.Content[1], nil
}

// LoadCommonConfig decodes a common per-worker config file into a mapping
// keyed by callable name (the CLI also reads an optional "hooks" section
// from it).
func LoadCommonConfig(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: opening common config: %w", err)
	}
	defer f.Close()

	var out map[string]any
	if err := yaml.NewDecoder(f).Decode(&out); err != nil {
		return nil, fmt.Errorf("config: parsing common config %s: %w", path, err)
	}
	return out, nil
}

// ResolveWorkerConfig resolves one worker's configuration dictionary: a
// per-worker config file takes precedence; absent that, the common
// config's section keyed by the worker's callable name; absent both, an
// empty dictionary with a logged warning (matching run_daq.py's behavior
// rather than failing the run over a missing, optional config section).
func ResolveWorkerConfig(entry WorkerEntry, common map[string]any) (map[string]any, error) {
	if entry.Spec.ConfigFile != "" {
		f, err := os.Open(entry.Spec.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("config: opening config for %s: %w", entry.Name, err)
		}
		defer f.Close()
		var out map[string]any
		if err := yaml.NewDecoder(f).Decode(&out); err != nil {
			return nil, fmt.Errorf("config: parsing config for %s: %w", entry.Name, err)
		}
		return out, nil
	}

	if section, ok := common[entry.Spec.FktName]; ok {
		if m, ok := section.(map[string]any); ok {
			return m, nil
		}
	}

	log.Printf("config: no configuration found for callable %q (worker %s)", entry.Spec.FktName, entry.Name)
	return map[string]any{}, nil
}

// CopyFile copies src into destDir, preserving its base name, and returns
// the destination path. Used to mirror every referenced config file into
// the run's output directory before workers start.
func CopyFile(src, destDir string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("config: copying %s: %w", src, err)
	}
	defer in.Close()

	dest := filepath.Join(destDir, filepath.Base(src))
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return "", fmt.Errorf("config: copying %s: %w", src, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return "", fmt.Errorf("config: copying %s: %w", src, err)
	}
	return dest, nil
}
