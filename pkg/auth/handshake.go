package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"sync"
)

// NonceSize is the number of random bytes in a challenge nonce, before
// hex encoding.
const NonceSize = 20

// ErrNoOutstandingChallenge indicates an auth response arrived for a
// handshake that never issued (or already consumed) a challenge.
var ErrNoOutstandingChallenge = errors.New("auth: no outstanding challenge")

// ErrAuthMismatch indicates the peer's response did not match the
// expected HMAC of the nonce this side issued.
var ErrAuthMismatch = errors.New("auth: response does not match challenge")

// Handshake drives one connection's side of the mutual HMAC-SHA1
// challenge/response exchange described in the wire protocol. Both the
// coordinator and the worker use the same type: each side issues a
// challenge, responds to the peer's challenge, and verifies the peer's
// response to its own. Authenticated only reports true once both halves
// have completed, matching, in effect, "once a connection's auth
// becomes done it stays so until close".
type Handshake struct {
	secret []byte

	mu              sync.Mutex
	outstandingHex  []byte // ASCII hex of the nonce we challenged the peer with, awaiting Verify
	verifiedPeer    bool
	respondedToPeer bool
}

// New creates a Handshake using the given shared secret.
func New(secret []byte) *Handshake {
	return &Handshake{secret: append([]byte(nil), secret...)}
}

// Challenge generates a fresh nonce, remembers it for a later Verify
// call, and returns its hex encoding, the inline argument for a
// "challenge:<hex>" frame.
func (h *Handshake) Challenge() (string, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	hexNonce := hex.EncodeToString(nonce)

	h.mu.Lock()
	h.outstandingHex = []byte(hexNonce)
	h.mu.Unlock()

	return hexNonce, nil
}

// Respond computes this side's HMAC-SHA1 response to a challenge nonce
// received from the peer (its hex encoding, the tail of a received
// "challenge:<hex>" frame) and marks this side as having answered the
// peer's challenge. The returned hex string is the inline argument for
// an "auth:<hex>" frame.
//
// The HMAC is computed over the nonce's ASCII hex bytes, not the decoded
// binary nonce. Both endpoints must agree on this, and hex bytes is
// what the wire actually carries.
func (h *Handshake) Respond(challengeHex string) string {
	mac := hmac.New(sha1.New, h.secret)
	mac.Write([]byte(challengeHex))
	resp := hex.EncodeToString(mac.Sum(nil))

	h.mu.Lock()
	h.respondedToPeer = true
	h.mu.Unlock()

	return resp
}

// Verify checks a received "auth:<hex>" response against the nonce this
// side most recently challenged the peer with. On success it marks this
// side as having verified the peer and clears the outstanding nonce so a
// stray duplicate response cannot be replayed.
func (h *Handshake) Verify(responseHex string) error {
	h.mu.Lock()
	nonce := h.outstandingHex
	h.mu.Unlock()

	if nonce == nil {
		return ErrNoOutstandingChallenge
	}

	mac := hmac.New(sha1.New, h.secret)
	mac.Write(nonce)
	want := mac.Sum(nil)

	got, err := hex.DecodeString(responseHex)
	if err != nil || !hmac.Equal(got, want) {
		return ErrAuthMismatch
	}

	h.mu.Lock()
	h.verifiedPeer = true
	h.outstandingHex = nil
	h.mu.Unlock()

	return nil
}

// Authenticated reports whether this side has both verified the peer's
// response to its own challenge and responded to the peer's challenge.
// No map/reduce frame may be sent until Authenticated returns true.
func (h *Handshake) Authenticated() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.verifiedPeer && h.respondedToPeer
}
