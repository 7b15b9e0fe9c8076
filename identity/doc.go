// Package identity implements Anchor, the signed identity record each
// party owns: key generation from a mnemonic, canonical serialization,
// self-signing and verification, and password-wrapped persistence of the
// private keys at rest.
//
// Example:
//
//	id, err := identity.GenerateFromMnemonic(mnemonic, "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := identity.SaveEncrypted(id, "/path/to/identity.dnak", "correct horse battery staple"); err != nil {
//	    log.Fatal(err)
//	}
//	loaded, err := identity.LoadEncrypted("/path/to/identity.dnak", "correct horse battery staple")
package identity
