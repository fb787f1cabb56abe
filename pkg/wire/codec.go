package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder mode for frame payloads.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for frame payloads.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to build CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to build CBOR decoder mode: %v", err))
	}
}

// Marshal encodes v to CBOR bytes. v may hold arbitrary nested maps,
// slices, and scalars, the payload model described in the package doc.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// NormalizeValue recanonicalizes CBOR's decode-time type choices back
// into the integer type this system standardizes on. fxamacker/cbor
// decodes any non-negative CBOR integer into an interface{} target as
// uint64, never int64, so an int64(1) emitted by a Mapper becomes
// uint64(1) the instant it crosses the wire; left alone, every later
// consumer of a decoded value (a Reducer, a Writer) would need to
// handle both types for what is conceptually one. Recurses into []any
// and map[any]any since a decoded value may be a nested container.
//
// The package's own Decode* functions call this automatically; callers
// decoding raw CBOR documents directly with Unmarshal (as CBORWriter's
// consumers might, reading a results file back) should call it too.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case uint64:
		return int64(x)
	case []any:
		for i, e := range x {
			x[i] = NormalizeValue(e)
		}
		return x
	case map[any]any:
		return normalizeMap(x)
	default:
		return v
	}
}

// normalizeMap applies NormalizeValue to every key and value of m,
// building a new map since a key's normalized form may differ from the
// one it was decoded under.
func normalizeMap(m map[any]any) map[any]any {
	if m == nil {
		return nil
	}
	out := make(map[any]any, len(m))
	for k, v := range m {
		out[NormalizeValue(k)] = NormalizeValue(v)
	}
	return out
}
