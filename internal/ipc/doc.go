// Package ipc exposes daemon control over JSON-RPC Unix sockets and ships
// the matching client used by the CLI.
//
// The server embeds the daemon and key manager; the client decorates calls
// with a short dial timeout so CLI commands fail fast when the daemon is
// offline.
package ipc
