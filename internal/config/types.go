package config

import "fmt"

// RingBufferSpec is one `RB_k: {...}` entry from the setup file's
// RingBuffer section.
type RingBufferSpec struct {
	NumSlots       int          `yaml:"number_of_slots"`
	ChannelPerSlot int          `yaml:"channel_per_slot"`
	DataType       DataTypeSpec `yaml:"data_type"`
}

// RingBufferEntry pairs a buffer's declared name (e.g. "RB_1") with its
// spec, in setup-file declaration order.
type RingBufferEntry struct {
	Name string
	Spec RingBufferSpec
}

// FieldSpec is one [field_name, type_name] pair of a heterogeneous record
// data_type mapping.
type FieldSpec struct {
	Name string
	Type string
}

// DataTypeSpec is a ring buffer's data_type: either a bare scalar type
// name, or an ordered mapping of named fields. Field order matters (it
// determines byte offsets), so this type decodes the mapping form directly
// off the YAML node's Content rather than through a Go map, which gives no
// order guarantee.
type DataTypeSpec struct {
	Scalar string
	Fields []FieldSpec
}

// IsRecord reports whether this data_type names a heterogeneous record
// rather than a bare scalar.
func (d DataTypeSpec) IsRecord() bool { return len(d.Fields) > 0 }

// MainSpec is the Fkt_main entry: optional runtime and optional common
// config file path.
type MainSpec struct {
	Runtime    float64 `yaml:"runtime"`
	ConfigFile string  `yaml:"config_file"`
}

// WorkerSpec is one `Fkt_k: {...}` entry from the setup file's Functions
// section (entries after Fkt_main).
type WorkerSpec struct {
	FileName   string            `yaml:"file_name"`
	FktName    string            `yaml:"fkt_name"`
	NumProcess int               `yaml:"num_process"`
	RBAssign   map[string]string `yaml:"RB_assign"`
	ConfigFile string            `yaml:"config_file"`

	// RequiresExternalShutdown opts a sourceless worker (no read or observe
	// assignment) out of the setup-time rejection spec.md §9 calls for:
	// such a worker relies entirely on its own ctx.Done() handling to
	// terminate, since it will never see EndOfStream.
	RequiresExternalShutdown bool `yaml:"requires_external_shutdown"`
}

// HasSource reports whether this worker reads from, or observes, at least
// one buffer — i.e. whether it has a natural EndOfStream-driven exit.
func (w WorkerSpec) HasSource() bool {
	for _, role := range w.RBAssign {
		if role == "read" || role == "observe" {
			return true
		}
	}
	return false
}

// WorkerEntry pairs a worker's declared name (e.g. "Fkt_1") with its spec,
// in setup-file declaration order.
type WorkerEntry struct {
	Name string
	Spec WorkerSpec
}

// SetupFile is the fully-decoded declarative topology: the RingBuffer and
// Functions sections of a setup.yaml, in declaration order.
type SetupFile struct {
	RingBuffers []RingBufferEntry
	Main        MainSpec
	Workers     []WorkerEntry
}

// Hooks is the optional set of pre-setup / post-start / post-stop shell
// commands a setup file's common config may define under a "hooks" section.
type Hooks struct {
	PreSetup  []string `yaml:"pre_setup"`
	PostStart []string `yaml:"post_start"`
	PostStop  []string `yaml:"post_stop"`
}

func (f FieldSpec) String() string {
	return fmt.Sprintf("%s:%s", f.Name, f.Type)
}
