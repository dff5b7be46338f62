// Package frakt implements the backend abstraction core of a cross-platform
// HTTP/1.1-HTTP/2 client: a single async request/response pipeline that
// marshals a uniform Request into one of several platform-native HTTP
// engines and reassembles each engine's callback output into a uniform
// streaming Response.
//
// The package exposes the value model (Request, Response, Header, Body,
// Cookie, Error), the Engine contract every platform adapter implements,
// and the shared concurrency primitives (body channel, progress state,
// cancellation) those adapters are built on. Engine adapters themselves
// live under internal/engine/* and are selected at build time by platform
// build tags.
//
// Fluent client builders, example programs, and wire-level HTTP/TLS
// implementation are explicitly out of scope; see SPEC_FULL.md.
package frakt
