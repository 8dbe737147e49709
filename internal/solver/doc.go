// Package solver owns implementation selection.
//
// Ownership boundary:
// - selection policy (stability floor, architecture, prefer-cached)
// - deterministic candidate ranking
// - recursive requirement closure into a selection set
package solver
