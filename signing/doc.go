// Package signing implements the asynchronous, per-user single-flight message
// signing pipeline.
//
// A Coordinator accepts at most one outstanding message per user and moves it
// through Pending, InFlight and Signed. A Dispatcher processes accepted messages
// on a bounded pool of goroutines, and a Hub delivers the single completion
// event of each submission to the client that subscribed to its ticket, parking
// it if the client has not connected yet.
//
// Different users never wait on each other: locks are held only around map
// updates, never while signing.
package signing
