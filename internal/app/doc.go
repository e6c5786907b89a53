// Package app contains the core application logic. It wires the workflow
// loader, the catalogs and the existence checkers into a planning run,
// decoupled from any specific entrypoint like a CLI.
package app
