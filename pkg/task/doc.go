// Package task implements the coordinator's task manager: the state
// machine that turns a datasource into a stream of map assignments,
// shuffles the intermediate results into a stream of reduce assignments,
// and tolerates worker loss by reassigning the oldest outstanding
// assignment whenever a worker asks for more work.
//
// States: START → MAPPING → REDUCING → FINISHED. There is no heartbeat;
// a crashed worker's task is simply handed to the next caller once the
// phase's iterator is exhausted, chosen as the least-recently-assigned
// outstanding key.
//
// Manager serializes every operation onto one internal goroutine behind
// a request channel, the Go equivalent of the single-threaded event
// loop the state machine's "exactly one mutation in flight" invariant
// assumes. Callers never need their own locking around a Manager.
package task
