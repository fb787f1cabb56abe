// Package transport provides the coordinator/worker connection layer: a
// plain TCP Conn that speaks the dual line-mode/length-mode framing the
// wire protocol relies on, plus thin Dial/Listen helpers that assign each
// connection a unique ID and an optional protocol logger hook.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│      CBOR payloads             │
//	├────────────────────────────────┤
//	│  line-mode / length-mode frames│
//	├────────────────────────────────┤
//	│              TCP                │
//	└────────────────────────────────┘
//
// There is no TLS layer here: connections authenticate with the
// HMAC-SHA1 challenge/response exchange in pkg/auth, not certificates,
// so a transport.Conn is deliberately just a framed TCP socket.
package transport
