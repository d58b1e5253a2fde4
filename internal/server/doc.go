// Package server is the orchestrator: it wires the cache, audio device,
// audio handler, event bus and network listener together and runs the
// main loop that dequeues wire messages, dispatches them against the
// scene, and republishes the most-recently-modified audio unit to
// observers.
package server
