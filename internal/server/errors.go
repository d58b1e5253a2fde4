package server

// ComponentServer tags errors originating from the main orchestrator,
// as opposed to the subsystems it wires together.
const ComponentServer = "server"
