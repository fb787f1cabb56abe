// Package worker implements the worker side of the wire protocol: connect
// with a bounded retry budget, perform the symmetric handshake, then serve
// map/reduce assignments sequentially against a configured Mapper and
// Reducer until the coordinator sends disconnect.
package worker
