// Package wire defines the command framing and payload encoding used
// between a coordinator and its workers.
//
// A frame is a single command line of the form "NAME:ARG\n". ARG is either
// an inline string argument (challenge and auth), the decimal byte length
// of an immediately following length-mode payload, or empty. Payloads are
// encoded with CBOR (RFC 8949) so arbitrary nested keys/values, produced by
// user Mapper/Reducer code, round-trip without a bespoke reflection layer.
//
// # Command frames
//
//	NAME:ARG\n
//	NAME ∈ {challenge, auth, disconnect, map, reduce, mapdone, reducedone}
//
// # Authentication gating
//
// Before a connection's Handshake completes, only challenge, auth, and
// disconnect may be exchanged, and their ARG is always treated as an
// inline string, never as a payload length: the unauthenticated dispatch
// path never switches into length mode. See Dispatcher for the full
// state machine.
package wire
