// Package feed owns the interface/implementation data model.
//
// Ownership boundary:
// - interface feed document shape
// - implementation, requirement, and binding variants
// - stability, architecture, and version ordering primitives
package feed
