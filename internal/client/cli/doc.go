// Package cli provides the interactive companion command-line client.
//
// It wires configuration, the local sqlite store, the device link services
// and an interactive REPL that keeps working while the radio link comes and
// goes. Typical flow: dial the node, start the background watchers, and
// execute user commands against the link.
//
// Key features:
//   - Node queries: identity, firmware, clock, battery
//   - Contact mirror: incremental sync, listing, export/import
//   - Messaging: direct and channel sends with delivery tracking
//   - Remote administration: login and status of repeater nodes
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
// See App, StartLinkStatusWatcher, and runREPL for details.
package cli
