// Package auth implements the HMAC-SHA1 challenge/response handshake
// shared by coordinator and worker connections.
//
// The handshake is symmetric: each side generates a nonce and challenges
// the other, and each side independently verifies the response it
// receives. A connection's overall Authenticated() state only becomes
// true once this side has verified the peer's response to its own
// (outbound) challenge and has answered the peer's (inbound) challenge.
// See Handshake.
package auth
