// Package trust owns the key trust database and feed signature checking.
//
// Ownership boundary:
// - fingerprint -> trusted-domain store with change notification
// - trust-domain derivation from interface URIs
// - OpenPGP verification of downloaded feeds against a local keyring
package trust
