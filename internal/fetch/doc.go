// Package fetch owns download coordination.
//
// Ownership boundary:
// - the URL -> download table and its dedup/force-restart rules
// - the cooperative event loop driving diagnostic-stream readiness
// - trust-key confirmation for downloaded feeds
//
// Everything in the coordinator runs on the loop goroutine; the only
// threads live inside the transport and the loop's stream watchers.
package fetch
