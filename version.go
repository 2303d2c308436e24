// Package hybridexec dispatches build actions to a local runner, a remote
// worker, or both, and settles on one authoritative result.
package hybridexec

// Version is the release version reported by the CLI and the worker.
const Version = "0.1.0"
