// Package bridge multiplexes logical async generation requests over a
// small number of opaque native model handles. It is structured into small
// files by concern:
//
//   - bridge.go: core Bridge type, constructor, event pump, model-level API.
//   - config.go: Config and package defaults.
//   - registry.go: session id -> native handle mapping and release lifecycle.
//   - reqid.go: wrapping 31-bit request id allocator.
//   - router.go: broadcast event bus with per-subscription filters.
//   - session.go: per-request generation state machine and fragment queue.
//   - admission.go: per-handle queueing, single in-flight generation.
//   - multimodal.go: media extraction and native attach calls.
//   - structured.go: schema-validated generation with a bounded retry budget.
//   - chat.go: blocking and streaming chat surfaces.
//   - prompt.go: transcript flattening.
//   - errors.go: error types and helpers (IsNotFound, IsAborted, ...).
//   - events.go: lifecycle event publisher.
//   - metrics.go: prometheus counters.
//   - status_report.go: status projection.
//
// The native runtime is reached only through the engine.Engine boundary;
// the concurrency rules live here: at most one in-flight generation per
// handle, one subscription set per (handle, requestID), and every
// subscription removed on every exit path.
package bridge
