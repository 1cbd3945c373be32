package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleSetup = `
RingBuffer:
  - RB_1:
      number_of_slots: 4
      channel_per_slot: 1
      data_type: float
  - RB_2:
      number_of_slots: 4
      channel_per_slot: 1
      data_type:
        timestamp: [timestamp, float64]
        value: [value, float32]

Functions:
  - Fkt_main:
      runtime: 10
  - Fkt_1:
      file_name: generator
      fkt_name: generate
      num_process: 1
      RB_assign:
        RB_1: write
  - Fkt_2:
      file_name: sink
      fkt_name: consume
      num_process: 1
      RB_assign:
        RB_1: read
        RB_2: write
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadSetupFileOrdering(t *testing.T) {
	path := writeTemp(t, "setup.yaml", sampleSetup)

	sf, err := LoadSetupFile(path)
	if err != nil {
		t.Fatalf("LoadSetupFile error: %v", err)
	}

	if len(sf.RingBuffers) != 2 {
		t.Fatalf("expected 2 ring buffers, got %d", len(sf.RingBuffers))
	}
	if sf.RingBuffers[0].Name != "RB_1" || sf.RingBuffers[1].Name != "RB_2" {
		t.Fatalf("ring buffer declaration order not preserved: %v", sf.RingBuffers)
	}
	if sf.RingBuffers[0].Spec.DataType.IsRecord() {
		t.Fatalf("RB_1 should be a scalar data type")
	}
	if !sf.RingBuffers[1].Spec.DataType.IsRecord() {
		t.Fatalf("RB_2 should be a record data type")
	}

	fields := sf.RingBuffers[1].Spec.DataType.Fields
	if len(fields) != 2 || fields[0].Name != "timestamp" || fields[1].Name != "value" {
		t.Fatalf("record field declaration order not preserved: %v", fields)
	}

	if sf.Main.Runtime != 10 {
		t.Fatalf("expected Fkt_main runtime 10, got %v", sf.Main.Runtime)
	}

	if len(sf.Workers) != 2 {
		t.Fatalf("expected 2 workers, got %d", len(sf.Workers))
	}
	if sf.Workers[0].Name != "Fkt_1" || sf.Workers[1].Name != "Fkt_2" {
		t.Fatalf("worker declaration order not preserved: %v", sf.Workers)
	}
	if !sf.Workers[1].Spec.HasSource() {
		t.Fatalf("Fkt_2 reads RB_1, expected HasSource true")
	}
	if sf.Workers[0].Spec.HasSource() {
		t.Fatalf("Fkt_1 only writes, expected HasSource false")
	}
}

func TestLoadSetupFileRejectsMissingRingBuffer(t *testing.T) {
	path := writeTemp(t, "setup.yaml", "Functions:\n  - Fkt_main: {}\n")
	if _, err := LoadSetupFile(path); err == nil {
		t.Fatalf("expected error for missing RingBuffer section")
	}
}

func TestLoadSetupFileRejectsWrongFirstFunction(t *testing.T) {
	content := `
RingBuffer:
  - RB_1: {number_of_slots: 2, channel_per_slot: 1, data_type: float}
Functions:
  - Fkt_1:
      file_name: generator
      fkt_name: generate
`
	path := writeTemp(t, "setup.yaml", content)
	if _, err := LoadSetupFile(path); err == nil {
		t.Fatalf("expected error when Functions[0] is not Fkt_main")
	}
}

func TestResolveWorkerConfigPerWorkerFile(t *testing.T) {
	cfgPath := writeTemp(t, "worker.yaml", "threshold: 3\n")
	entry := WorkerEntry{Name: "Fkt_1", Spec: WorkerSpec{FktName: "generate", ConfigFile: cfgPath}}

	cfg, err := ResolveWorkerConfig(entry, nil)
	if err != nil {
		t.Fatalf("ResolveWorkerConfig error: %v", err)
	}
	if cfg["threshold"] != 3 {
		t.Fatalf("expected threshold 3 from per-worker file, got %v", cfg["threshold"])
	}
}

func TestResolveWorkerConfigCommonSection(t *testing.T) {
	common := map[string]any{
		"generate": map[string]any{"rate_hz": 100},
	}
	entry := WorkerEntry{Name: "Fkt_1", Spec: WorkerSpec{FktName: "generate"}}

	cfg, err := ResolveWorkerConfig(entry, common)
	if err != nil {
		t.Fatalf("ResolveWorkerConfig error: %v", err)
	}
	if cfg["rate_hz"] != 100 {
		t.Fatalf("expected rate_hz 100 from common section, got %v", cfg["rate_hz"])
	}
}

func TestResolveWorkerConfigFallsBackToEmpty(t *testing.T) {
	entry := WorkerEntry{Name: "Fkt_1", Spec: WorkerSpec{FktName: "unknown"}}

	cfg, err := ResolveWorkerConfig(entry, map[string]any{})
	if err != nil {
		t.Fatalf("ResolveWorkerConfig error: %v", err)
	}
	if len(cfg) != 0 {
		t.Fatalf("expected empty config fallback, got %v", cfg)
	}
}

func TestCopyFile(t *testing.T) {
	src := writeTemp(t, "source.yaml", "a: 1\n")
	destDir := t.TempDir()

	dest, err := CopyFile(src, destDir)
	if err != nil {
		t.Fatalf("CopyFile error: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading copied file: %v", err)
	}
	if string(data) != "a: 1\n" {
		t.Fatalf("copied content mismatch: %q", data)
	}
}

func TestApplyDefaultsSetsNumProcess(t *testing.T) {
	sf := &SetupFile{Workers: []WorkerEntry{{Name: "Fkt_1", Spec: WorkerSpec{}}}}
	ApplyDefaults(sf)
	if sf.Workers[0].Spec.NumProcess != 1 {
		t.Fatalf("expected default NumProcess 1, got %d", sf.Workers[0].Spec.NumProcess)
	}
}
