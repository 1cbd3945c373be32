package daqctl

import (
	"github.com/nick/ringdaq/internal/config"
	"github.com/nick/ringdaq/internal/layout"
)

// buildLayout lowers a ring buffer's declared data_type into a slot
// Layout. A record data_type ignores channel_per_slot (its shape is fixed
// by its field list); a scalar data_type repeats the scalar channel_per_slot
// times per slot.
func buildLayout(spec config.RingBufferSpec) (*layout.Layout, error) {
	if spec.DataType.IsRecord() {
		fields := make([]layout.Field, 0, len(spec.DataType.Fields))
		for _, f := range spec.DataType.Fields {
			k, err := layout.ParseKind(f.Type)
			if err != nil {
				return nil, err
			}
			fields = append(fields, layout.Field{Name: f.Name, Kind: k})
		}
		return layout.NewRecord(fields)
	}

	k, err := layout.ParseKind(spec.DataType.Scalar)
	if err != nil {
		return nil, err
	}
	return layout.NewScalar(k, spec.ChannelPerSlot)
}
