// Package coordinator implements the coordinator side of the wire
// protocol: one Channel per accepted connection driving the HMAC
// handshake then a command loop against a shared task.Manager, and a
// Listener that accepts connections, owns the datasource and the
// manager, and invokes the configured Writer once the job finishes.
package coordinator
