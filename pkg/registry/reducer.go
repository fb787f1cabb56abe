package registry

import "fmt"

// Reducer combines all values shuffled to one key into at most one
// output value. Returning present=false drops the key from the job's
// results entirely, distinct from returning a legitimate zero value.
type Reducer interface {
	Reduce(key any, values []any) (value any, present bool, err error)
}

// Reducers is the registry of available Reducer implementations.
var Reducers = NewRegistry[Reducer]()

// IdentityReducer passes the full list of shuffled values through
// unchanged as the result.
type IdentityReducer struct{}

// Reduce implements Reducer.
func (IdentityReducer) Reduce(_ any, values []any) (any, bool, error) {
	return values, true, nil
}

// SumReducer adds up its values, which must each be int64 or float64.
// The result is int64 if every value was an int64, float64 otherwise.
type SumReducer struct{}

// Reduce implements Reducer.
func (SumReducer) Reduce(key any, values []any) (any, bool, error) {
	var sumInt int64
	var sumFloat float64
	allInt := true

	for _, v := range values {
		switch n := v.(type) {
		case int64:
			sumInt += n
			sumFloat += float64(n)
		case int:
			sumInt += int64(n)
			sumFloat += float64(n)
		case float64:
			allInt = false
			sumFloat += n
		default:
			return nil, false, fmt.Errorf("registry: SumReducer: value %v for key %v is not numeric", v, key)
		}
	}

	if allInt {
		return sumInt, true, nil
	}
	return sumFloat, true, nil
}

// FirstValueReducer keeps the first shuffled value and discards the
// rest.
type FirstValueReducer struct{}

// Reduce implements Reducer.
func (FirstValueReducer) Reduce(_ any, values []any) (any, bool, error) {
	if len(values) == 0 {
		return nil, false, nil
	}
	return values[0], true, nil
}

// DropAllReducer discards every key, producing no results at all. Useful
// for jobs run only for their side effects during the map phase.
type DropAllReducer struct{}

// Reduce implements Reducer.
func (DropAllReducer) Reduce(any, []any) (any, bool, error) {
	return nil, false, nil
}

// RejectReducer fails the job if it is ever invoked; wiring it in is a
// way to assert a given key should never reach the reduce phase.
type RejectReducer struct{}

// Reduce implements Reducer.
func (RejectReducer) Reduce(key any, _ []any) (any, bool, error) {
	return nil, false, fmt.Errorf("registry: RejectReducer: key %v reached reduce", key)
}

func init() {
	Reducers.RegisterDefault("identity", func() Reducer { return IdentityReducer{} })
	Reducers.Register("sum", func() Reducer { return SumReducer{} })
	Reducers.Register("first", func() Reducer { return FirstValueReducer{} })
	Reducers.Register("drop", func() Reducer { return DropAllReducer{} })
	Reducers.Register("reject", func() Reducer { return RejectReducer{} })
}
