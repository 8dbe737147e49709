// Package selections owns the resolved interface -> implementation set.
//
// Ownership boundary:
// - selection-set shape and closure invariant
// - XML persist/replay of a resolved set without re-solving
package selections
