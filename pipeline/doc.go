// Package pipeline is the top-level orchestrator: it seals outgoing
// messages and routes them to either a live peer transport or the
// spillway offline-delivery layer, polls spillway for inbound messages,
// opens them via seal or nexus, and dispatches delivered plaintexts to a
// single registered event sink.
//
// Public operations submit work to a bounded worker pool and return
// immediately; results and inbound events are delivered through
// callbacks rather than blocking the caller, per the async/callback
// boundary this system is built around.
package pipeline
