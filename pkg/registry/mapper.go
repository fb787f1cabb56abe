package registry

import (
	"fmt"
	"strings"
)

// KV is one key/value pair emitted by a Mapper.
type KV struct {
	Key   any
	Value any
}

// Mapper transforms one input key/value pair into zero or more
// intermediate key/value pairs.
type Mapper interface {
	Map(key, value any) ([]KV, error)
}

// Mappers is the registry of available Mapper implementations.
var Mappers = NewRegistry[Mapper]()

// IdentityMapper emits its input pair unchanged.
type IdentityMapper struct{}

// Map implements Mapper.
func (IdentityMapper) Map(key, value any) ([]KV, error) {
	return []KV{{Key: key, Value: value}}, nil
}

// SplitWordsMapper expects value to be a string and emits (word, int64(1))
// for each whitespace-separated word, the canonical word-count mapper.
type SplitWordsMapper struct{}

// Map implements Mapper.
func (SplitWordsMapper) Map(key, value any) ([]KV, error) {
	line, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("registry: SplitWordsMapper: value for key %v is %T, not string", key, value)
	}

	words := strings.Fields(line)
	kvs := make([]KV, 0, len(words))
	for _, w := range words {
		kvs = append(kvs, KV{Key: w, Value: int64(1)})
	}
	return kvs, nil
}

func init() {
	Mappers.RegisterDefault("identity", func() Mapper { return IdentityMapper{} })
	Mappers.Register("split", func() Mapper { return SplitWordsMapper{} })
}
