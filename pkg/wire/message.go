package wire

// MapAssignment is the payload of a "map" command: one input pair handed
// to a worker.
type MapAssignment struct {
	Key   any `cbor:"1,keyasint"`
	Value any `cbor:"2,keyasint"`
}

// ReduceAssignment is the payload of a "reduce" command: one intermediate
// key and the full, ordered list of values aggregated for it.
type ReduceAssignment struct {
	Key    any   `cbor:"1,keyasint"`
	Values []any `cbor:"2,keyasint"`
}

// MapResult is the payload of a "mapdone" command. Output maps each
// intermediate key produced by the map invocation to its list of values;
// a nil Output means the mapper emitted nothing for this input.
type MapResult struct {
	Key    any         `cbor:"1,keyasint"`
	Output map[any]any `cbor:"2,keyasint,omitempty"`
}

// ReduceResult is the payload of a "reducedone" command. Present
// distinguishes a reducer that legitimately returned a value from one that
// returned "drop this key"; Value alone cannot, since a reducer's
// present value may itself be nil-shaped in the user's domain.
type ReduceResult struct {
	Key     any  `cbor:"1,keyasint"`
	Value   any  `cbor:"2,keyasint"`
	Present bool `cbor:"3,keyasint"`
}

// EncodeMapAssignment encodes a map assignment payload.
func EncodeMapAssignment(key, value any) ([]byte, error) {
	return Marshal(&MapAssignment{Key: key, Value: value})
}

// DecodeMapAssignment decodes a map assignment payload.
func DecodeMapAssignment(data []byte) (*MapAssignment, error) {
	var m MapAssignment
	if err := Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m.Key = NormalizeValue(m.Key)
	m.Value = NormalizeValue(m.Value)
	return &m, nil
}

// EncodeReduceAssignment encodes a reduce assignment payload.
func EncodeReduceAssignment(key any, values []any) ([]byte, error) {
	return Marshal(&ReduceAssignment{Key: key, Values: values})
}

// DecodeReduceAssignment decodes a reduce assignment payload.
func DecodeReduceAssignment(data []byte) (*ReduceAssignment, error) {
	var r ReduceAssignment
	if err := Unmarshal(data, &r); err != nil {
		return nil, err
	}
	r.Key = NormalizeValue(r.Key)
	for i, v := range r.Values {
		r.Values[i] = NormalizeValue(v)
	}
	return &r, nil
}

// mapOutputToWire converts a Go-native map[any][]any (the shape Mapper
// implementations produce) into the CBOR-friendly map[any]any this
// message uses on the wire (CBOR cannot tag a map's value type per key).
func mapOutputToWire(output map[any][]any) map[any]any {
	if output == nil {
		return nil
	}
	wire := make(map[any]any, len(output))
	for k, v := range output {
		wire[k] = v
	}
	return wire
}

func mapOutputFromWire(wire map[any]any) map[any][]any {
	if wire == nil {
		return nil
	}
	out := make(map[any][]any, len(wire))
	for k, v := range wire {
		switch vs := v.(type) {
		case []any:
			out[k] = vs
		case nil:
			out[k] = nil
		default:
			out[k] = []any{vs}
		}
	}
	return out
}

// EncodeMapResult encodes a mapdone payload.
func EncodeMapResult(key any, output map[any][]any) ([]byte, error) {
	return Marshal(&MapResult{Key: key, Output: mapOutputToWire(output)})
}

// DecodeMapResult decodes a mapdone payload.
func DecodeMapResult(data []byte) (key any, output map[any][]any, err error) {
	var m MapResult
	if err := Unmarshal(data, &m); err != nil {
		return nil, nil, err
	}
	return NormalizeValue(m.Key), mapOutputFromWire(normalizeMap(m.Output)), nil
}

// EncodeReduceResult encodes a reducedone payload. present=false means
// the reducer omitted this key from the results.
func EncodeReduceResult(key, value any, present bool) ([]byte, error) {
	return Marshal(&ReduceResult{Key: key, Value: value, Present: present})
}

// DecodeReduceResult decodes a reducedone payload.
func DecodeReduceResult(data []byte) (key, value any, present bool, err error) {
	var r ReduceResult
	if err := Unmarshal(data, &r); err != nil {
		return nil, nil, false, err
	}
	return NormalizeValue(r.Key), NormalizeValue(r.Value), r.Present, nil
}
