// Package app contains the core application logic. It wires the manifest
// loader, the registry and the dependency graph to the warehouse, and
// exposes one method per command, decoupled from any specific entrypoint
// like a CLI or server.
package app
