// Package registry defines the pluggable Mapper, Reducer, Reader, and
// Writer interfaces a job implements, and the name-to-factory registries
// a coordinator/worker binary uses to select them from a flag.
//
// Registering a type makes it selectable by name from the command line:
// Mappers.Register("wordcount", func() Mapper { return &wordCountMapper{} })
// lets --mapper=wordcount pick it at startup. A handful of generic
// built-ins (IdentityMapper, SumReducer, a glob-based Reader, ...) are
// registered by this package itself and are always available.
package registry
