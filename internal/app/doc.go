// Package app contains the core application logic. It wires the flow
// description, the operation modules and the runtime together, decoupled
// from any specific entrypoint like a CLI or server.
package app
