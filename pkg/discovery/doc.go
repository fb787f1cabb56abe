// Package discovery advertises and browses for a coordinator over mDNS
// using github.com/enbility/zeroconf/v3, so a worker started without an
// explicit address can find the coordinator on the local network. This is
// additive convenience: mrd-worker uses it only when its address is left
// at the default 127.0.0.1, and the mrd launcher never uses it.
package discovery
