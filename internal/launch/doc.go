// Package launch owns the last stage: binding application and execution.
//
// Ownership boundary:
// - environment binding application for a resolved selection set
// - entry-point/override/wrapper command-line computation
// - live exec (non-returning) and isolated test-mode runs
package launch
