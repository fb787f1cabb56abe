// Package connection provides the fixed-interval, elapsed-time-bounded
// retry policy a worker uses when connecting to a coordinator: Budget
// waits a constant interval between attempts and gives up once a total
// timeout has elapsed, matching a worker's "reconnect every N seconds
// until connected or until --timeout seconds have passed, then give up"
// contract.
package connection
