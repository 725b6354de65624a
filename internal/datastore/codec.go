package datastore

import "fmt"

// Codec marshals the package's message types with the protobuf wire format.
// It registers under the name "proto" so peers see a standard
// application/grpc+proto content subtype.
type Codec struct{}

func (Codec) Name() string { return "proto" }

func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(message)
	if !ok {
		return nil, fmt.Errorf("datastore codec: cannot marshal %T", v)
	}
	return m.marshalWire(nil), nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(message)
	if !ok {
		return fmt.Errorf("datastore codec: cannot unmarshal into %T", v)
	}
	if err := m.unmarshalWire(data); err != nil {
		return fmt.Errorf("datastore codec: %T: %w", v, err)
	}
	return nil
}
